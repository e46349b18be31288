package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/task"
)

// NameStatus is the outcome of one name check. Err is context.Canceled for
// superseded checks.
type NameStatus struct {
	Name      string
	Available bool
	Err       error
}

// NameChecker asks the backend whether a Type name is free. It is advisory:
// the server decides at save time.
type NameChecker struct {
	backend   Backend
	debouncer *task.Debouncer
}

// NewNameChecker returns a checker debounced by delay; non-positive delays
// use task.DefaultDelay.
func NewNameChecker(backend Backend, delay time.Duration) *NameChecker {
	return &NameChecker{backend: backend, debouncer: task.NewDebouncer(delay)}
}

// Check schedules a check of name, ignoring the Type with id exclude. The
// channel receives exactly one status.
func (c *NameChecker) Check(ctx context.Context, name string, exclude int) <-chan NameStatus {
	out := make(chan NameStatus, 1)
	name = strings.TrimSpace(name)
	if c == nil {
		out <- NameStatus{Name: name, Err: ErrNoBackend}
		close(out)
		return out
	}

	var available atomic.Bool
	done := c.debouncer.Trigger(ctx, func(ctx context.Context) error {
		ok, err := c.available(ctx, name, exclude)
		available.Store(ok)
		return err
	})
	go func() {
		err := <-done
		status := NameStatus{Name: name, Err: err}
		if err == nil {
			status.Available = available.Load()
		}
		out <- status
		close(out)
	}()
	return out
}

// Stop cancels a pending check.
func (c *NameChecker) Stop() {
	if c == nil {
		return
	}
	c.debouncer.Stop()
}

func (c *NameChecker) available(ctx context.Context, name string, exclude int) (bool, error) {
	if !model.ValidName(name) {
		return false, nil
	}
	if c.backend == nil {
		return false, ErrNoBackend
	}
	filter, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return false, fmt.Errorf("builder: name filter: %w", err)
	}
	page, err := c.backend.ListTypes(ctx, model.ListParams{Filter: string(filter), Limit: 2})
	if err != nil {
		return false, fmt.Errorf("builder: check name %q: %w", name, err)
	}
	for _, t := range page.Results {
		if t.Name == name && t.PublicID != exclude {
			return false, nil
		}
	}
	return true, nil
}
