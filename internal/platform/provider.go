// Package platform is the host-hardware media.Provider: PortAudio for
// microphones and speakers, V4L2 for cameras and udev for hot-plug.
// Call InitAudio before New.
package platform

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/Danondso/precall/internal/media"
)

// hotplugQuiet coalesces the burst of udev events a single plug produces.
const hotplugQuiet = 250 * time.Millisecond

// cameraPaths locates V4L2 nodes; tests point it at a fake tree.
type cameraPaths struct {
	sysfs string
	byID  string
	dev   string
}

// Provider implements media.Provider on the local machine.
type Provider struct {
	logger *log.Logger
	paths  cameraPaths

	mu          sync.Mutex
	watchers    map[int]func()
	nextWatch   int
	stopHotplug func()
	coalesce    *time.Timer
	audioStale  bool
}

// New creates a Provider.
func New(logger *log.Logger) *Provider {
	return &Provider{
		logger:   logger,
		paths:    defaultCameraPaths(),
		watchers: make(map[int]func()),
	}
}

// ListDevices enumerates cameras, microphones and speakers. After a
// hot-plug event PortAudio is re-initialized first, since it only scans
// hardware at initialization. Callers release every stream beforehand.
func (p *Provider) ListDevices(_ context.Context) ([]media.Device, error) {
	p.mu.Lock()
	stale := p.audioStale
	p.audioStale = false
	p.mu.Unlock()
	if stale {
		p.reinitAudio()
	}

	cams, err := listCameras(p.paths)
	if err != nil {
		// A broken camera tree must not hide the audio devices.
		p.logf("enumerate: cameras: %v", err)
	}
	audio, err := listAudio()
	if err != nil {
		return nil, classify(err, media.Microphone, "")
	}
	return append(cams, audio...), nil
}

func (p *Provider) reinitAudio() {
	p.logf("portaudio: re-initializing after device change")
	if err := portaudio.Terminate(); err != nil {
		p.logf("portaudio: terminate: %v", err)
	}
	if err := InitAudio(); err != nil {
		p.logf("portaudio: initialize: %v", err)
	}
}

// CreateCameraTrack opens the camera c.DeviceID, or the first camera when
// it is empty.
func (p *Provider) CreateCameraTrack(_ context.Context, c media.Constraints) (media.VideoTrack, error) {
	cams, err := listCameras(p.paths)
	if err != nil {
		return nil, classify(err, media.Camera, c.DeviceID)
	}
	id := c.DeviceID
	label := ""
	if id == "" {
		if len(cams) == 0 {
			return nil, &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: media.Camera}
		}
		id = cams[0].ID
	}
	for _, d := range cams {
		if d.ID == id {
			label = d.Label
		}
	}

	t, err := openCamera(id, label)
	if err != nil {
		return nil, classify(err, media.Camera, id)
	}
	p.logf("camera: opened %s", id)
	return t, nil
}

// CreateMicrophoneTrack opens an input stream on c.DeviceID, or the
// default input when it is empty.
func (p *Provider) CreateMicrophoneTrack(_ context.Context, c media.Constraints) (media.AudioTrack, error) {
	dev, err := findInput(c.DeviceID)
	if err != nil {
		return nil, classify(err, media.Microphone, c.DeviceID)
	}
	label := micLabel(dev.Name, defaultSourceDescription())
	t, err := openMicrophone(dev, label)
	if err != nil {
		return nil, classify(err, media.Microphone, c.DeviceID)
	}
	p.logf("microphone: opened %s at %.0fHz", t.settings.DeviceID, t.settings.SampleRate)
	return t, nil
}

// DefaultDeviceID returns the id the platform routes to by default for
// kind, or "" when it has none. The first camera stands in as the camera
// default.
func (p *Provider) DefaultDeviceID(kind media.Kind) string {
	if kind == media.Camera {
		cams, err := listCameras(p.paths)
		if err != nil || len(cams) == 0 {
			return ""
		}
		return cams[0].ID
	}
	return defaultAudioID(kind)
}

// OnDeviceChange subscribes fn to hot-plug notifications. The udev
// listener runs while at least one subscriber exists.
func (p *Provider) OnDeviceChange(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = fn
	if p.stopHotplug == nil {
		stop, err := startHotplug(p.logger, p.deviceEvent)
		if err != nil {
			p.logf("hotplug: unavailable, use refresh instead: %v", err)
		} else {
			p.stopHotplug = stop
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(id) })
	}
}

func (p *Provider) unsubscribe(id int) {
	p.mu.Lock()
	delete(p.watchers, id)
	var stop func()
	if len(p.watchers) == 0 {
		stop = p.stopHotplug
		p.stopHotplug = nil
		if p.coalesce != nil {
			p.coalesce.Stop()
			p.coalesce = nil
		}
	}
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// deviceEvent restarts the quiet window; subscribers run once it elapses.
func (p *Provider) deviceEvent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioStale = true
	if p.coalesce != nil {
		p.coalesce.Stop()
	}
	p.coalesce = time.AfterFunc(hotplugQuiet, p.notifyWatchers)
}

func (p *Provider) notifyWatchers() {
	p.mu.Lock()
	p.coalesce = nil
	fns := make([]func(), 0, len(p.watchers))
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *Provider) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
