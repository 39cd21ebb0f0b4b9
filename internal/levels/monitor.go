// Package levels samples a live microphone handle for the input meter.
package levels

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the sampling period of the input meter.
const DefaultInterval = 100 * time.Millisecond

// Source reports an instantaneous input level.
type Source interface {
	VolumeLevel() float64
}

// Monitor polls one Source at a fixed interval. At most one sampler runs at
// a time, and Stop does not return until it has exited, so a released
// handle is never sampled.
type Monitor struct {
	interval time.Duration
	onLevel  func(float64)

	mu       sync.Mutex
	stop     chan struct{}
	loopDone chan struct{}
	starts   int

	level uint64 // atomic float64 bits
}

// New creates a Monitor. A non-positive interval uses DefaultInterval.
// onLevel, if non-nil, is called from the sampling goroutine on every tick.
func New(interval time.Duration, onLevel func(float64)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{interval: interval, onLevel: onLevel}
}

// Start begins sampling src, stopping any previous sampler first.
func (m *Monitor) Start(src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	if src == nil {
		return
	}

	m.stop = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.starts++
	go m.loop(src, m.stop, m.loopDone)
}

// Stop halts sampling and resets the published level to zero.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if m.stop != nil {
		close(m.stop)
		<-m.loopDone
		m.stop = nil
		m.loopDone = nil
	}
	atomic.StoreUint64(&m.level, math.Float64bits(0))
}

// Running reports whether a sampler is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// Starts returns how many samplers have been started.
func (m *Monitor) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Level returns the most recent sample in [0, 1].
func (m *Monitor) Level() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.level))
}

func (m *Monitor) loop(src Source, stop, loopDone chan struct{}) {
	defer close(loopDone)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		// Re-check so a tick racing with Stop never reaches the source.
		select {
		case <-stop:
			return
		default:
		}

		v := Clamp(src.VolumeLevel())
		atomic.StoreUint64(&m.level, math.Float64bits(v))
		if m.onLevel != nil {
			m.onLevel(v)
		}
	}
}

// Clamp normalizes v into [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
