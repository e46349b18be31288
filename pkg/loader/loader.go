// Package loader reads Type and object documents in JSON or YAML from files,
// an fs.FS or HTTP, and watches Type files for changes.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Option customises a Loader.
type Option func(*Loader)

// WithFileSystem serves SourceFromFS locations from files.
func WithFileSystem(files fs.FS) Option {
	return func(l *Loader) {
		l.fs = files
	}
}

// WithHTTPClient enables URL sources through client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.http = client
	}
}

// WithHTTPFallback enables URL sources through a default client with the
// given timeout.
func WithHTTPFallback(timeout time.Duration) Option {
	return func(l *Loader) {
		if l.http == nil {
			l.http = &http.Client{}
		}
		l.timeout = timeout
	}
}

// WithChecker validates every loaded Type against the field kinds known to
// checker.
func WithChecker(checker model.KindChecker) Option {
	return func(l *Loader) {
		l.checker = checker
	}
}

// WithWatchDelay sets the quiet period Watch waits before reloading.
func WithWatchDelay(delay time.Duration) Option {
	return func(l *Loader) {
		l.delay = delay
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) {
		l.logger = logging.OrNop(logger)
	}
}

// Loader resolves Sources to decoded documents.
type Loader struct {
	fs      fs.FS
	http    *http.Client
	timeout time.Duration
	checker model.KindChecker
	delay   time.Duration
	logger  logging.Logger
}

func New(options ...Option) *Loader {
	l := &Loader{
		delay:  100 * time.Millisecond,
		logger: logging.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Read returns the raw bytes behind src.
func (l *Loader) Read(ctx context.Context, src Source) ([]byte, error) {
	if src == nil {
		return nil, fmt.Errorf("loader: source is nil")
	}
	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		data, err = readFile(ctx, src.Location())
	case SourceKindFS:
		data, err = readFS(ctx, l.fs, src.Location())
	case SourceKindURL:
		data, err = readHTTP(ctx, l.http, src.Location(), l.timeout)
	default:
		err = fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}
	return data, nil
}

// LoadType reads one Type. With a checker set, a Type failing validation is
// returned together with its model.ValidationErrors.
func (l *Loader) LoadType(ctx context.Context, src Source) (model.Type, error) {
	data, err := l.Read(ctx, src)
	if err != nil {
		return model.Type{}, err
	}
	var t model.Type
	if err := Decode(data, &t); err != nil {
		return model.Type{}, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}
	return t, l.check(src, t)
}

// LoadTypes reads a list of Types, a {"types": [...]} document or a single
// Type.
func (l *Loader) LoadTypes(ctx context.Context, src Source) ([]model.Type, error) {
	data, err := l.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	raw, err := ToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}

	var types []model.Type
	switch {
	case raw[0] == '[':
		err = json.Unmarshal(raw, &types)
	default:
		var wrapped struct {
			Types []model.Type `json:"types"`
		}
		if err = json.Unmarshal(raw, &wrapped); err == nil && wrapped.Types != nil {
			types = wrapped.Types
			break
		}
		var single model.Type
		err = json.Unmarshal(raw, &single)
		types = []model.Type{single}
	}
	if err != nil {
		return nil, fmt.Errorf("loader: %s: decode: %w", src.Location(), err)
	}
	for _, t := range types {
		if err := l.check(src, t); err != nil {
			return types, err
		}
	}
	return types, nil
}

// LoadObject reads one object document.
func (l *Loader) LoadObject(ctx context.Context, src Source) (model.Object, error) {
	data, err := l.Read(ctx, src)
	if err != nil {
		return model.Object{}, err
	}
	var obj model.Object
	if err := Decode(data, &obj); err != nil {
		return model.Object{}, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}
	return obj, nil
}

func (l *Loader) check(src Source, t model.Type) error {
	if l.checker == nil {
		return nil
	}
	if errs := t.Validate(l.checker); len(errs) > 0 {
		return fmt.Errorf("loader: %s: type %q: %w", src.Location(), t.Name, errs)
	}
	return nil
}
