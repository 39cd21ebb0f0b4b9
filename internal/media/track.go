package media

import "context"

// Constraints selects the hardware a new track should open. An empty
// DeviceID asks the platform for its default device.
type Constraints struct {
	DeviceID string
}

// Settings describes what a live track actually opened.
type Settings struct {
	DeviceID   string
	Label      string
	SampleRate float64 // audio only
}

// Track is a live, hardware-backed handle.
type Track interface {
	ID() string
	Kind() Kind
	Settings() Settings
	// Stop halts the underlying stream. Safe to call more than once.
	Stop()
	// Close releases the hardware handle. Safe to call more than once.
	Close() error
}

// VideoTrack is a live camera handle.
type VideoTrack interface {
	Track
	// Play renders the track into surface.
	Play(surface Surface) error
}

// AudioTrack is a live microphone handle.
type AudioTrack interface {
	Track
	// VolumeLevel returns the instantaneous input level in [0, 1].
	VolumeLevel() float64
}

// Surface is where a video preview is rendered.
type Surface interface {
	Show(track VideoTrack) error
	Clear()
}

// Provider is the platform media device capability.
type Provider interface {
	ListDevices(ctx context.Context) ([]Device, error)
	CreateCameraTrack(ctx context.Context, c Constraints) (VideoTrack, error)
	CreateMicrophoneTrack(ctx context.Context, c Constraints) (AudioTrack, error)
	// OnDeviceChange registers fn for hot-plug notifications and returns a
	// function that cancels the subscription.
	OnDeviceChange(fn func()) (cancel func())
}
