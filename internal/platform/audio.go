package platform

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	"github.com/Danondso/precall/internal/media"
)

// audioDeviceID builds a stable id from the host API and device name.
// PortAudio indices change whenever devices come and go.
func audioDeviceID(hostAPI, name string) string {
	if hostAPI == "" {
		return name
	}
	return hostAPI + ":" + name
}

func hostAPIName(d *portaudio.DeviceInfo) string {
	if d == nil || d.HostApi == nil {
		return ""
	}
	return d.HostApi.Name
}

// isDefaultAlias reports whether name is a sound server's routing alias
// rather than real hardware.
func isDefaultAlias(name string) bool {
	switch name {
	case "default", "pulse", "pipewire", "sysdefault":
		return true
	}
	return false
}

// micLabel labels the sound server's default-routing device after the
// source it currently routes to, so the selector can recognize it.
func micLabel(name, defaultSource string) string {
	if name == "default" && defaultSource != "" {
		return "Default - " + defaultSource
	}
	return name
}

func listAudio() ([]media.Device, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	defaultSource := defaultSourceDescription()

	var out []media.Device
	for _, d := range devs {
		id := audioDeviceID(hostAPIName(d), d.Name)
		if d.MaxInputChannels > 0 {
			out = append(out, media.Device{ID: id, Label: micLabel(d.Name, defaultSource), Kind: media.Microphone})
		}
		if d.MaxOutputChannels > 0 && !isDefaultAlias(d.Name) {
			out = append(out, media.Device{ID: id, Label: d.Name, Kind: media.Speaker})
		}
	}
	return out, nil
}

// findInput resolves a microphone id. An empty id is the default input.
func findInput(id string) (*portaudio.DeviceInfo, error) {
	if id == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		if dev == nil || dev.MaxInputChannels < 1 {
			return nil, &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: media.Microphone, Err: errors.New("no default input device")}
		}
		return dev, nil
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 && audioDeviceID(hostAPIName(d), d.Name) == id {
			return d, nil
		}
	}
	return nil, &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: media.Microphone, DeviceID: id, Err: errors.New("input device not found")}
}

// DefaultOutputRate returns the default output device's native sample
// rate, or 0 when it is unknown.
func DefaultOutputRate() int {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil || dev == nil {
		return 0
	}
	return int(dev.DefaultSampleRate)
}

// microphoneTrack is a live PortAudio input stream. The read loop publishes
// the RMS of every ~100ms chunk.
type microphoneTrack struct {
	id       string
	settings media.Settings
	stream   *portaudio.Stream

	done     chan struct{} // closed when readLoop should exit
	loopDone chan struct{} // closed when readLoop has exited

	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error

	level uint64 // atomic float64 bits
}

func openMicrophone(dev *portaudio.DeviceInfo, label string) (*microphoneTrack, error) {
	channels := dev.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		channels = 1
	}

	sampleRate := dev.DefaultSampleRate
	framesPerBuffer := int(sampleRate / 10) // ~100ms chunks
	inputBuf := make([]int16, framesPerBuffer*channels)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, &inputBuf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	t := &microphoneTrack{
		id: uuid.NewString(),
		settings: media.Settings{
			DeviceID:   audioDeviceID(hostAPIName(dev), dev.Name),
			Label:      label,
			SampleRate: sampleRate,
		},
		stream:   stream,
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go t.readLoop(inputBuf, channels)
	return t, nil
}

func (t *microphoneTrack) readLoop(inputBuf []int16, channels int) {
	defer close(t.loopDone)
	for {
		select {
		case <-t.done:
			return
		default:
		}

		if err := t.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			return
		}
		atomic.StoreUint64(&t.level, math.Float64bits(computeRMS(inputBuf, channels)))
	}
}

func (t *microphoneTrack) ID() string               { return t.id }
func (t *microphoneTrack) Kind() media.Kind         { return media.Microphone }
func (t *microphoneTrack) Settings() media.Settings { return t.settings }

func (t *microphoneTrack) VolumeLevel() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.level))
}

func (t *microphoneTrack) Stop() {
	t.stopOnce.Do(func() {
		// The read loop must exit before the stream stops, or Read races
		// with Stop inside PortAudio.
		close(t.done)
		<-t.loopDone
		_ = t.stream.Stop()
		atomic.StoreUint64(&t.level, math.Float64bits(0))
	})
}

func (t *microphoneTrack) Close() error {
	t.Stop()
	t.closeOnce.Do(func() {
		t.closeErr = t.stream.Close()
	})
	return t.closeErr
}

// computeRMS computes the root-mean-square of int16 samples normalized to [0.0, 1.0].
// For stereo input, averages the two channels before computing.
func computeRMS(buf []int16, channels int) float64 {
	if len(buf) == 0 || channels < 1 {
		return 0
	}
	var sum float64
	n := len(buf) / channels
	if n == 0 {
		return 0
	}
	for i := 0; i+channels-1 < len(buf); i += channels {
		var v float64
		if channels == 2 {
			v = float64(int32(buf[i])+int32(buf[i+1])) / 2.0
		} else {
			v = float64(buf[i])
		}
		v /= 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func defaultAudioID(kind media.Kind) string {
	var (
		dev *portaudio.DeviceInfo
		err error
	)
	switch kind {
	case media.Microphone:
		dev, err = portaudio.DefaultInputDevice()
	case media.Speaker:
		dev, err = portaudio.DefaultOutputDevice()
	default:
		return ""
	}
	if err != nil || dev == nil {
		return ""
	}
	return audioDeviceID(hostAPIName(dev), dev.Name)
}
