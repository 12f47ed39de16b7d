// Package debounce coalesces bursts of signals into one trailing call.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period used when a zero window is given.
const DefaultWindow = 500 * time.Millisecond

// Debouncer calls fn once the window has elapsed with no new Trigger.
// Every Trigger re-arms the timer.
type Debouncer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
	fired   int64
}

// New creates a Debouncer. fn runs on its own goroutine.
func New(window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{window: window, fn: fn}
}

// Trigger records a signal and (re)starts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// Stop cancels any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Fired returns how many times fn has been called.
func (d *Debouncer) Fired() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired
}

// fire runs fn unless a newer Trigger superseded this timer after it had
// already expired.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.fired++
	d.mu.Unlock()

	d.fn()
}
