// Package jsonview serialises the RenderResult of a compiled form.
package jsonview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/render"
)

// Document is the payload written by Render.
type Document struct {
	Result     form.RenderResult   `json:"result"`
	Errors     map[string][]string `json:"errors,omitempty"`
	FormErrors []string            `json:"form_errors,omitempty"`
}

// Option configures the renderer.
type Option func(*Renderer)

// WithIndent pretty-prints the output with the given indent.
func WithIndent(indent string) Option {
	return func(r *Renderer) {
		r.indent = indent
	}
}

// Renderer implements render.Renderer.
type Renderer struct {
	indent string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer.
func New(options ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Renderer) Name() string { return "json" }

func (r *Renderer) ContentType() string { return "application/json" }

// Render writes the form result narrowed to opts.Subset. Errors whose path
// was filtered out are kept as form errors.
func (r *Renderer) Render(ctx context.Context, f *form.Form, opts render.RenderOptions) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("jsonview: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.New("jsonview: form is required")
	}

	doc := Document{Result: f.Result()}
	render.ApplySubset(&doc.Result, opts.Subset)

	visible := make(map[string]bool)
	for _, path := range render.FormPaths(f) {
		visible[path] = true
	}
	kept := make(map[string]bool)
	for _, field := range doc.Result.Fields {
		kept[field.Name] = true
	}
	for _, section := range doc.Result.Sections {
		kept[section.Name] = true
		for _, name := range section.Fields {
			kept[name] = true
		}
	}

	formErrors := append([]string(nil), opts.FormErrors...)
	for path, messages := range opts.Errors {
		if visible[path] && kept[rootName(path)] {
			if doc.Errors == nil {
				doc.Errors = make(map[string][]string)
			}
			doc.Errors[path] = append(doc.Errors[path], messages...)
			continue
		}
		formErrors = append(formErrors, messages...)
	}
	doc.FormErrors = render.MergeFormErrors(nil, formErrors...)

	var (
		data []byte
		err  error
	)
	if r.indent != "" {
		data, err = json.MarshalIndent(doc, "", r.indent)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("jsonview: encode: %w", err)
	}
	return data, nil
}

// rootName maps row and reference paths to their section or field name.
func rootName(path string) string {
	root, _, _ := strings.Cut(path, ".")
	return root
}
