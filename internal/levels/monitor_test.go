package levels

import (
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	level float64
	calls atomic.Int64
}

func (s *countingSource) VolumeLevel() float64 {
	s.calls.Add(1)
	return s.level
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMonitorPublishesLevel(t *testing.T) {
	src := &countingSource{level: 0.42}
	m := New(5*time.Millisecond, nil)
	m.Start(src)
	defer m.Stop()

	waitFor(t, func() bool { return m.Level() == 0.42 })
}

func TestMonitorStopHaltsSampling(t *testing.T) {
	src := &countingSource{level: 0.3}
	m := New(2*time.Millisecond, nil)
	m.Start(src)
	waitFor(t, func() bool { return src.calls.Load() > 0 })

	m.Stop()
	after := src.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if got := src.calls.Load(); got != after {
		t.Errorf("expected no samples after Stop, got %d more", got-after)
	}
	if m.Level() != 0 {
		t.Errorf("expected level reset to 0, got %f", m.Level())
	}
	if m.Running() {
		t.Error("expected monitor to be stopped")
	}
}

func TestMonitorReplaceRunsOneSampler(t *testing.T) {
	first := &countingSource{level: 0.1}
	second := &countingSource{level: 0.9}
	m := New(2*time.Millisecond, nil)

	m.Start(first)
	waitFor(t, func() bool { return first.calls.Load() > 0 })
	m.Start(second)
	firstAfter := first.calls.Load()

	waitFor(t, func() bool { return second.calls.Load() > 3 })
	if got := first.calls.Load(); got != firstAfter {
		t.Errorf("old sampler still running: %d extra calls", got-firstAfter)
	}
	if m.Starts() != 2 {
		t.Errorf("expected 2 sampler starts, got %d", m.Starts())
	}
	m.Stop()
}

func TestMonitorCallback(t *testing.T) {
	var got atomic.Uint64
	m := New(2*time.Millisecond, func(v float64) { got.Store(math.Float64bits(v)) })
	m.Start(&countingSource{level: 1.7})
	defer m.Stop()

	waitFor(t, func() bool { return math.Float64frombits(got.Load()) == 1 })
}

func TestStopWithoutStart(t *testing.T) {
	m := New(0, nil)
	m.Stop()
	m.Start(nil)
	if m.Running() {
		t.Error("nil source should not start a sampler")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{3, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
