package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var calls atomic.Int64
	d := New(50*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	// Still inside the window measured from the last trigger.
	if got := calls.Load(); got != 0 {
		t.Fatalf("calls = %d before window elapsed, want 0", got)
	}

	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if d.Fired() != 1 {
		t.Errorf("Fired() = %d, want 1", d.Fired())
	}
}

func TestDebouncer_FiresAfterLastSignal(t *testing.T) {
	fired := make(chan time.Time, 2)
	window := 60 * time.Millisecond
	d := New(window, func() { fired <- time.Now() })
	defer d.Stop()

	d.Trigger()
	time.Sleep(30 * time.Millisecond)
	last := time.Now()
	d.Trigger()

	select {
	case at := <-fired:
		if elapsed := at.Sub(last); elapsed < window {
			t.Errorf("fired %v after last trigger, want >= %v", elapsed, window)
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer never fired")
	}
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	var calls atomic.Int64
	d := New(20*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(80 * time.Millisecond)
	d.Trigger()
	d.Trigger()
	time.Sleep(80 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls atomic.Int64
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d after Stop, want 0", got)
	}
}

func TestNew_DefaultWindow(t *testing.T) {
	d := New(0, func() {})
	if d.window != DefaultWindow {
		t.Errorf("window = %v, want %v", d.window, DefaultWindow)
	}
}
