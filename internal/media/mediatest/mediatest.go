// Package mediatest provides a scriptable in-memory media.Provider for tests.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Danondso/precall/internal/media"
)

// Event is one observed provider or track call, e.g. "create camera cam-1",
// "stop t3", "close t3".
type Event string

// Provider is a fake media.Provider. The zero value is not usable; call New.
type Provider struct {
	mu        sync.Mutex
	devices   []media.Device
	listErr   error
	defaults  map[media.Kind]string
	failures  map[media.Kind][]error
	levels    map[string]float64
	events    []Event
	creates   map[media.Kind][]string
	live      map[media.Kind]int
	maxLive   map[media.Kind]int
	nextID    int
	listCalls int
	watchers  map[int]func()
	nextWatch int
	tracks    []*Track
}

// New returns a fake provider exposing devices.
func New(devices ...media.Device) *Provider {
	return &Provider{
		devices:  devices,
		defaults: make(map[media.Kind]string),
		failures: make(map[media.Kind][]error),
		levels:   make(map[string]float64),
		creates:  make(map[media.Kind][]string),
		live:     make(map[media.Kind]int),
		maxLive:  make(map[media.Kind]int),
		watchers: make(map[int]func()),
	}
}

// SetDevices replaces the enumerated devices.
func (p *Provider) SetDevices(devices ...media.Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devices
}

// SetListError makes ListDevices fail.
func (p *Provider) SetListError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// SetDefault sets the device an unconstrained acquisition of kind opens.
func (p *Provider) SetDefault(kind media.Kind, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults[kind] = id
}

// FailNext queues errors returned by the next constrained acquisitions of
// kind. A nil entry lets that attempt succeed.
func (p *Provider) FailNext(kind media.Kind, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[kind] = append(p.failures[kind], errs...)
}

// SetLevel sets the volume level reported by microphone tracks for id.
func (p *Provider) SetLevel(id string, level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[id] = level
}

// Events returns a copy of every observed call in order.
func (p *Provider) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Creates returns the device ids of constrained acquisitions for kind,
// including failed attempts. Default-discovery acquisitions are excluded.
func (p *Provider) Creates(kind media.Kind) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.creates[kind]))
	copy(out, p.creates[kind])
	return out
}

// Live returns the number of unclosed tracks of kind.
func (p *Provider) Live(kind media.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live[kind]
}

// MaxLive returns the highest number of simultaneously unclosed tracks of
// kind observed so far.
func (p *Provider) MaxLive(kind media.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxLive[kind]
}

// ListCalls returns how many times ListDevices ran.
func (p *Provider) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

// Tracks returns every track created so far.
func (p *Provider) Tracks() []*Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// TriggerDeviceChange invokes every hot-plug subscriber synchronously.
func (p *Provider) TriggerDeviceChange() {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.watchers))
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Watchers returns the number of active hot-plug subscriptions.
func (p *Provider) Watchers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

func (p *Provider) ListDevices(_ context.Context) ([]media.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	p.events = append(p.events, "list")
	if p.listErr != nil {
		return nil, p.listErr
	}
	out := make([]media.Device, len(p.devices))
	copy(out, p.devices)
	return out, nil
}

func (p *Provider) CreateCameraTrack(_ context.Context, c media.Constraints) (media.VideoTrack, error) {
	t, err := p.create(media.Camera, c)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Provider) CreateMicrophoneTrack(_ context.Context, c media.Constraints) (media.AudioTrack, error) {
	t, err := p.create(media.Microphone, c)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Provider) OnDeviceChange(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
	}
}

func (p *Provider) create(kind media.Kind, c media.Constraints) (*Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := c.DeviceID
	if id == "" {
		id = p.defaults[kind]
		if id == "" {
			for _, d := range p.devices {
				if d.Kind == kind {
					id = d.ID
					break
				}
			}
		}
		p.events = append(p.events, Event(fmt.Sprintf("create %s default", kind)))
	} else {
		p.creates[kind] = append(p.creates[kind], id)
		p.events = append(p.events, Event(fmt.Sprintf("create %s %s", kind, id)))
		if q := p.failures[kind]; len(q) > 0 {
			err := q[0]
			p.failures[kind] = q[1:]
			if err != nil {
				return nil, err
			}
		}
	}
	if id == "" {
		return nil, &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: kind}
	}

	label := ""
	for _, d := range p.devices {
		if d.Kind == kind && d.ID == id {
			label = d.Label
		}
	}

	p.nextID++
	t := &Track{
		provider: p,
		id:       fmt.Sprintf("t%d", p.nextID),
		kind:     kind,
		settings: media.Settings{DeviceID: id, Label: label},
	}
	p.tracks = append(p.tracks, t)
	p.live[kind]++
	if p.live[kind] > p.maxLive[kind] {
		p.maxLive[kind] = p.live[kind]
	}
	return t, nil
}

// Track is a fake track implementing both media.VideoTrack and
// media.AudioTrack.
type Track struct {
	provider   *Provider
	id         string
	kind       media.Kind
	settings   media.Settings
	stopped    atomic.Bool
	closed     atomic.Bool
	levelCalls atomic.Int64
	levelAfter atomic.Int64
	playErrMu  sync.Mutex
	playErrs   []error
}

func (t *Track) ID() string               { return t.id }
func (t *Track) Kind() media.Kind         { return t.kind }
func (t *Track) Settings() media.Settings { return t.settings }

// Stopped reports whether Stop was called.
func (t *Track) Stopped() bool { return t.stopped.Load() }

// Closed reports whether Close was called.
func (t *Track) Closed() bool { return t.closed.Load() }

// LevelCalls returns how many times VolumeLevel was called.
func (t *Track) LevelCalls() int64 { return t.levelCalls.Load() }

// LevelCallsAfterClose returns VolumeLevel calls made after Close.
func (t *Track) LevelCallsAfterClose() int64 { return t.levelAfter.Load() }

// FailPlay queues errors for the next Play calls.
func (t *Track) FailPlay(errs ...error) {
	t.playErrMu.Lock()
	defer t.playErrMu.Unlock()
	t.playErrs = append(t.playErrs, errs...)
}

func (t *Track) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	t.provider.record(Event("stop " + t.id))
}

func (t *Track) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.provider.mu.Lock()
	t.provider.live[t.kind]--
	t.provider.events = append(t.provider.events, Event("close "+t.id))
	t.provider.mu.Unlock()
	return nil
}

func (t *Track) Play(s media.Surface) error {
	if t.closed.Load() {
		return errors.New("play on closed track")
	}
	t.playErrMu.Lock()
	var err error
	if len(t.playErrs) > 0 {
		err = t.playErrs[0]
		t.playErrs = t.playErrs[1:]
	}
	t.playErrMu.Unlock()
	if err != nil {
		return err
	}
	if s != nil {
		return s.Show(t)
	}
	return nil
}

func (t *Track) VolumeLevel() float64 {
	t.levelCalls.Add(1)
	if t.closed.Load() {
		t.levelAfter.Add(1)
	}
	t.provider.mu.Lock()
	defer t.provider.mu.Unlock()
	return t.provider.levels[t.settings.DeviceID]
}

func (p *Provider) record(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// Surface is a fake preview surface that can fail its first Show calls.
type Surface struct {
	mu      sync.Mutex
	fails   int
	showing string
	shows   int
	clears  int
}

// NewSurface returns a surface whose first fails Show calls return an error.
func NewSurface(fails int) *Surface {
	return &Surface{fails: fails}
}

func (s *Surface) Show(t media.VideoTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows++
	if s.fails > 0 {
		s.fails--
		return errors.New("surface not ready")
	}
	s.showing = t.Settings().DeviceID
	return nil
}

func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.showing = ""
}

// Showing returns the device id currently rendered, or "".
func (s *Surface) Showing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showing
}

// Shows returns how many times Show was called.
func (s *Surface) Shows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shows
}
