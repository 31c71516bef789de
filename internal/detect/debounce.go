package detect

import (
	"sync"
	"time"
)

// Debouncer delivers only the most recent value passed to Trigger, once the
// input has been quiet for the configured interval. Deliveries never overlap, and a value superseded while an earlier delivery
// was still running is dropped.
type Debouncer[T any] struct {
	// deliver is held for the whole call to fn.
	deliver  sync.Mutex
	mu       sync.Mutex
	interval time.Duration
	fn       func(T)
	timer    *time.Timer
	gen      uint64
	stopped  bool
}

func NewDebouncer[T any](interval time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{interval: interval, fn: fn}
}

// Trigger cancels any pending delivery and schedules v.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.cancelLocked()
	gen := d.gen
	d.timer = time.AfterFunc(d.interval, func() { d.fire(gen, v) })
}

// Cancel drops the pending delivery, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending delivery and ignores all later triggers.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer[T]) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// A timer that already fired but has not taken the lock yet sees a stale
	// generation and drops its value.
	d.gen++
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn(v)
}
