// Package probe plays a short test tone so the user can confirm their
// speakers work. Output devices cannot be verified programmatically.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	beepwav "github.com/gopxl/beep/wav"

	"github.com/Danondso/precall/internal/media"
)

// Output is the audio output path used for playback. Init succeeds at
// most once per process; later plays reuse the open output.
type Output interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	// Resume wakes an output the platform left suspended.
	Resume() error
	Play(s beep.Streamer)
	Suspend() error
	Clear()
}

// speakerOutput plays through beep's default output device.
type speakerOutput struct{}

func (speakerOutput) Init(sr beep.SampleRate, bufferSize int) error {
	return speaker.Init(sr, bufferSize)
}

func (speakerOutput) Resume() error { return speaker.Resume() }

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }

func (speakerOutput) Suspend() error { return speaker.Suspend() }

func (speakerOutput) Clear() { speaker.Clear() }

// Player synthesizes and plays the test tone. The output is initialized on
// the first successful play, resumed for each play and suspended after it.
type Player struct {
	tone       Tone
	outputRate int
	out        Output
	logger     *log.Logger

	mu       sync.Mutex // one playback at a time
	initRate beep.SampleRate
}

// New creates a Player for the default output. outputRate is the output
// device's native sample rate; 0 plays at the tone's own rate.
func New(tone Tone, outputRate int, logger *log.Logger) *Player {
	return NewWithOutput(tone, outputRate, speakerOutput{}, logger)
}

// NewWithOutput creates a Player that plays through out.
func NewWithOutput(tone Tone, outputRate int, out Output, logger *log.Logger) *Player {
	if tone.SampleRate <= 0 {
		tone.SampleRate = DefaultTone().SampleRate
	}
	return &Player{tone: tone, outputRate: outputRate, out: out, logger: logger}
}

// Render returns the tone as WAV bytes at the playback sample rate.
func (p *Player) Render() ([]byte, error) {
	samples := Synthesize(p.tone)
	if len(samples) == 0 {
		return nil, fmt.Errorf("tone has no samples")
	}
	rate := p.tone.SampleRate
	if p.outputRate > 0 && p.outputRate != rate {
		resampled, err := Resample(samples, float64(rate), float64(p.outputRate))
		if err != nil {
			return nil, fmt.Errorf("resample tone: %w", err)
		}
		samples = resampled
		rate = p.outputRate
	}
	return EncodeWAV(samples, rate)
}

// WriteTone writes the rendered tone to w.
func (p *Player) WriteTone(w io.Writer) error {
	data, err := p.Render()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// PlayTestTone plays the tone and blocks until playback finishes or ctx is
// done. Output failures are returned as tone_playback_failed.
func (p *Player) PlayTestTone(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Render()
	if err != nil {
		return p.fail(err)
	}
	streamer, format, err := beepwav.Decode(bytes.NewReader(data))
	if err != nil {
		return p.fail(fmt.Errorf("decode tone: %w", err))
	}
	defer streamer.Close()

	if err := p.initOutput(format.SampleRate); err != nil {
		return p.fail(err)
	}
	if err := p.out.Resume(); err != nil {
		return p.fail(fmt.Errorf("resume output: %w", err))
	}
	defer p.quiesce()

	p.logf("tone playing: %.0fHz for %s at %dHz", p.tone.FrequencyHz, p.tone.Duration, int(format.SampleRate))
	done := make(chan struct{})
	p.out.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		p.logf("tone finished")
		return nil
	case <-ctx.Done():
		p.logf("tone cancelled: %v", ctx.Err())
		return ctx.Err()
	}
}

// initOutput opens the output once. A failed Init is retried on the next
// play so a speaker connected later still works.
func (p *Player) initOutput(rate beep.SampleRate) error {
	if p.initRate != 0 {
		if p.initRate != rate {
			return fmt.Errorf("output already open at %dHz, tone is %dHz", int(p.initRate), int(rate))
		}
		return nil
	}
	if err := p.out.Init(rate, rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init output: %w", err)
	}
	p.initRate = rate
	return nil
}

// quiesce drops anything still queued and suspends the output until the
// next play.
func (p *Player) quiesce() {
	p.out.Clear()
	if err := p.out.Suspend(); err != nil {
		p.logf("tone: suspend output: %v", err)
	}
}

func (p *Player) fail(err error) error {
	p.logf("tone failed: %v", err)
	return &media.DeviceError{Kind: media.ErrTonePlaybackFailed, Device: media.Speaker, Err: err}
}

func (p *Player) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
