package devicetest

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerRunsOnlyLatest(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var got atomic.Value
	var runs atomic.Int32
	for _, v := range []string{"a", "b", "c"} {
		v := v
		d.Trigger(func() {
			runs.Add(1)
			got.Store(v)
		})
	}
	time.Sleep(80 * time.Millisecond)
	if runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", runs.Load())
	}
	if got.Load() != "c" {
		t.Errorf("expected latest function to run, got %v", got.Load())
	}
	if d.Pending() {
		t.Error("nothing should be pending after firing")
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var runs atomic.Int32
	d.Trigger(func() { runs.Add(1) })
	if !d.Pending() {
		t.Fatal("expected a pending function")
	}
	d.Cancel()
	time.Sleep(40 * time.Millisecond)
	if runs.Load() != 0 {
		t.Errorf("cancelled function ran %d times", runs.Load())
	}
}

func TestDebouncerSeparateWindows(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)
	var runs atomic.Int32
	d.Trigger(func() { runs.Add(1) })
	time.Sleep(30 * time.Millisecond)
	d.Trigger(func() { runs.Add(1) })
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != 2 {
		t.Errorf("expected 2 runs for triggers outside the window, got %d", runs.Load())
	}
}
