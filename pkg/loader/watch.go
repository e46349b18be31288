package loader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/task"
)

// Watch loads the Type at path, then reloads it after every change and hands
// each result to fn. Events are collapsed over the watch delay. The parent
// directory is watched so editors that replace the file are followed. Watch
// blocks until ctx is done and then returns nil.
func (l *Loader) Watch(ctx context.Context, path string, fn func(model.Type, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("loader: watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("loader: watch %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("loader: watch %s: %w", path, err)
	}

	src := SourceFromFile(abs)
	reload := func(ctx context.Context) error {
		t, err := l.LoadType(ctx, src)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(t, err)
		return nil
	}
	if err := reload(ctx); err != nil {
		return nil
	}

	debouncer := task.NewDebouncer(l.delay)
	defer debouncer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			l.logger.Debugf("loader: %s changed (%s)", abs, event.Op)
			debouncer.Trigger(ctx, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warnf("loader: watch %s: %v", abs, err)
		}
	}
}
