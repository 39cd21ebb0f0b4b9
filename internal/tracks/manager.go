// Package tracks owns every live camera and microphone handle.
package tracks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Danondso/precall/internal/levels"
	"github.com/Danondso/precall/internal/media"
)

// DefaultAttachRetryDelay is how long Attach waits before its single retry.
const DefaultAttachRetryDelay = 200 * time.Millisecond

// Registry holds at most one live handle per kind.
type Registry struct {
	Video   media.VideoTrack
	Audio   media.AudioTrack
	Surface media.Surface
}

// Manager acquires, attaches and releases hardware handles. A new
// acquisition always stops and closes the previous handle of the same kind
// before the provider is asked for another one.
type Manager struct {
	provider         media.Provider
	monitor          *levels.Monitor
	attachRetryDelay time.Duration
	logger           *log.Logger

	videoMu sync.Mutex // serializes camera hardware calls
	audioMu sync.Mutex // serializes microphone hardware calls

	mu  sync.Mutex
	reg Registry
}

// NewManager creates a Manager. monitor may be nil, in which case audio
// attach does not sample levels.
func NewManager(provider media.Provider, monitor *levels.Monitor, attachRetryDelay time.Duration, logger *log.Logger) *Manager {
	if attachRetryDelay < 0 {
		attachRetryDelay = DefaultAttachRetryDelay
	}
	return &Manager{
		provider:         provider,
		monitor:          monitor,
		attachRetryDelay: attachRetryDelay,
		logger:           logger,
	}
}

func (m *Manager) kindLock(kind media.Kind) *sync.Mutex {
	if kind == media.Camera {
		return &m.videoMu
	}
	return &m.audioMu
}

// AcquireVideo opens the camera with the given id ("" = platform default),
// releasing any live camera handle first.
func (m *Manager) AcquireVideo(ctx context.Context, deviceID string) (media.VideoTrack, error) {
	m.videoMu.Lock()
	defer m.videoMu.Unlock()

	m.releaseKindLocked(media.Camera)
	m.logf("camera acquire: device=%q", deviceID)
	t, err := m.provider.CreateCameraTrack(ctx, media.Constraints{DeviceID: deviceID})
	if err != nil {
		return nil, media.AsDeviceError(err, media.Camera, deviceID)
	}

	m.mu.Lock()
	m.reg.Video = t
	m.mu.Unlock()
	m.logf("camera acquired: track=%s device=%q", t.ID(), t.Settings().DeviceID)
	return t, nil
}

// AcquireAudio opens the microphone with the given id ("" = platform
// default), releasing any live microphone handle first.
func (m *Manager) AcquireAudio(ctx context.Context, deviceID string) (media.AudioTrack, error) {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()

	m.releaseKindLocked(media.Microphone)
	m.logf("microphone acquire: device=%q", deviceID)
	t, err := m.provider.CreateMicrophoneTrack(ctx, media.Constraints{DeviceID: deviceID})
	if err != nil {
		return nil, media.AsDeviceError(err, media.Microphone, deviceID)
	}

	m.mu.Lock()
	m.reg.Audio = t
	m.mu.Unlock()
	m.logf("microphone acquired: track=%s device=%q", t.ID(), t.Settings().DeviceID)
	return t, nil
}

// DiscoverDefault opens a throwaway unconstrained handle of kind to learn
// which device the platform treats as default, then releases it. Any live
// handle of kind is released first.
func (m *Manager) DiscoverDefault(ctx context.Context, kind media.Kind) (string, error) {
	lk := m.kindLock(kind)
	lk.Lock()
	defer lk.Unlock()

	m.releaseKindLocked(kind)

	var t media.Track
	switch kind {
	case media.Camera:
		vt, err := m.provider.CreateCameraTrack(ctx, media.Constraints{})
		if err != nil {
			return "", media.AsDeviceError(err, kind, "")
		}
		t = vt
	case media.Microphone:
		at, err := m.provider.CreateMicrophoneTrack(ctx, media.Constraints{})
		if err != nil {
			return "", media.AsDeviceError(err, kind, "")
		}
		t = at
	default:
		return "", fmt.Errorf("no default discovery for %s", kind)
	}
	id := t.Settings().DeviceID
	t.Stop()
	if err := t.Close(); err != nil {
		m.logf("%s default probe close: %v", kind, err)
	}
	m.logf("%s platform default: %q", kind, id)
	return id, nil
}

// Attach renders a video handle into surface, retrying once after a short
// delay because the surface may not be ready yet. For an audio handle it
// starts level sampling and surface is ignored.
func (m *Manager) Attach(ctx context.Context, t media.Track, surface media.Surface) error {
	if t == nil {
		return &media.DeviceError{Kind: media.ErrAttachFailed, Device: media.Camera, Err: fmt.Errorf("nil track")}
	}
	kind := t.Kind()
	id := t.Settings().DeviceID

	lk := m.kindLock(kind)
	lk.Lock()
	defer lk.Unlock()

	if !m.isCurrent(t) {
		return &media.DeviceError{Kind: media.ErrAttachFailed, Device: kind, DeviceID: id, Err: fmt.Errorf("track %s already released", t.ID())}
	}

	switch kind {
	case media.Microphone:
		at, ok := t.(media.AudioTrack)
		if !ok {
			return fmt.Errorf("microphone track %s has no volume level", t.ID())
		}
		if m.monitor != nil {
			m.monitor.Start(at)
		}
		return nil

	case media.Camera:
		vt, ok := t.(media.VideoTrack)
		if !ok {
			return fmt.Errorf("camera track %s cannot play", t.ID())
		}
		err := vt.Play(surface)
		if err != nil {
			m.logf("camera attach failed, retrying in %s: %v", m.attachRetryDelay, err)
			if serr := sleep(ctx, m.attachRetryDelay); serr != nil {
				return &media.DeviceError{Kind: media.ErrAttachFailed, Device: kind, DeviceID: id, Err: serr}
			}
			err = vt.Play(surface)
		}
		if err != nil {
			return &media.DeviceError{Kind: media.ErrAttachFailed, Device: kind, DeviceID: id, Err: err}
		}
		m.mu.Lock()
		m.reg.Surface = surface
		m.mu.Unlock()
		return nil
	}
	return fmt.Errorf("cannot attach %s track", kind)
}

func (m *Manager) isCurrent(t media.Track) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch t.Kind() {
	case media.Camera:
		return m.reg.Video != nil && m.reg.Video.ID() == t.ID()
	case media.Microphone:
		return m.reg.Audio != nil && m.reg.Audio.ID() == t.ID()
	}
	return false
}

// ReleaseTrack releases t if it is the live handle of its kind. Nil and
// already-released handles are ignored.
func (m *Manager) ReleaseTrack(t media.Track) {
	if t == nil {
		return
	}
	lk := m.kindLock(t.Kind())
	lk.Lock()
	defer lk.Unlock()
	if m.isCurrent(t) {
		m.releaseKindLocked(t.Kind())
	}
}

// Release stops and closes the live handle of kind, if any.
func (m *Manager) Release(kind media.Kind) {
	if kind == media.Speaker {
		return
	}
	lk := m.kindLock(kind)
	lk.Lock()
	defer lk.Unlock()
	m.releaseKindLocked(kind)
}

// ReleaseAll releases every live handle.
func (m *Manager) ReleaseAll() {
	m.Release(media.Camera)
	m.Release(media.Microphone)
}

// releaseKindLocked requires the kind lock.
func (m *Manager) releaseKindLocked(kind media.Kind) {
	m.mu.Lock()
	var t media.Track
	var surface media.Surface
	switch kind {
	case media.Camera:
		if m.reg.Video != nil {
			t = m.reg.Video
		}
		surface = m.reg.Surface
		m.reg.Video = nil
		m.reg.Surface = nil
	case media.Microphone:
		if m.reg.Audio != nil {
			t = m.reg.Audio
		}
		m.reg.Audio = nil
	}
	m.mu.Unlock()

	if kind == media.Microphone && m.monitor != nil {
		// The sampler must be gone before its handle is.
		m.monitor.Stop()
	}
	if surface != nil {
		surface.Clear()
	}
	if t == nil {
		return
	}
	t.Stop()
	if err := t.Close(); err != nil {
		m.logf("%s release: track=%s close: %v", kind, t.ID(), err)
		return
	}
	m.logf("%s released: track=%s", kind, t.ID())
}

// Current returns a copy of the registry.
func (m *Manager) Current() Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg
}

// Live returns the number of live handles of kind (0 or 1).
func (m *Manager) Live(kind media.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case media.Camera:
		if m.reg.Video != nil {
			return 1
		}
	case media.Microphone:
		if m.reg.Audio != nil {
			return 1
		}
	}
	return 0
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
