package persistence

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one flush after an idle
// window. One pending timer per debouncer, reset on every trigger; an
// explicit FlushNow drains the pending write on shutdown so the last
// in-flight edit is not lost.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	flush   func()
	timer   *time.Timer
	pending bool
	stopped bool
}

func NewDebouncer(window time.Duration, flush func()) *Debouncer {
	return &Debouncer{window: window, flush: flush}
}

// Trigger schedules a flush after the idle window, cancelling and
// rescheduling any pending one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.flush()
}

// FlushNow runs the pending flush synchronously, if any.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
	d.mu.Unlock()

	d.flush()
}

// Stop drains the pending flush and refuses further triggers. Used on
// shutdown.
func (d *Debouncer) Stop() {
	d.FlushNow()

	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
}
