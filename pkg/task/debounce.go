// Package task schedules cancellable background work tied to the lifetime of
// an owning component.
package task

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the suppression window used for name checks and searches.
const DefaultDelay = 500 * time.Millisecond

// Debouncer runs only the last of a burst of calls, once the burst has been
// quiet for the configured delay. A newer call cancels the context of the
// call it supersedes, including one that already started running.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	seq     uint64
	stopped bool
}

// NewDebouncer returns a debouncer with the given window. Non-positive
// delays fall back to DefaultDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Delay returns the suppression window.
func (d *Debouncer) Delay() time.Duration {
	if d == nil {
		return 0
	}
	return d.delay
}

// Trigger schedules fn after the window. The returned channel receives the
// result of fn, or ctx's error (context.Canceled when superseded) if fn never
// ran. It is always closed after one value.
func (d *Debouncer) Trigger(ctx context.Context, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	if d == nil || fn == nil {
		done <- nil
		close(done)
		return done
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		done <- context.Canceled
		close(done)
		return done
	}
	d.resetLocked()
	d.seq++
	seq := d.seq
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			done <- err
			close(done)
		})
	}
	d.timer = time.AfterFunc(d.delay, func() {
		defer cancel()
		d.mu.Lock()
		current := d.seq == seq && !d.stopped
		d.mu.Unlock()
		if !current || runCtx.Err() != nil {
			finish(context.Canceled)
			return
		}
		finish(fn(runCtx))
	})
	d.mu.Unlock()

	go func() {
		<-runCtx.Done()
		finish(runCtx.Err())
	}()
	return done
}

// Stop cancels any pending or running call. Later Triggers are rejected.
func (d *Debouncer) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.resetLocked()
}

func (d *Debouncer) resetLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
