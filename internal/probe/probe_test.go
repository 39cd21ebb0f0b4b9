package probe

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/Danondso/precall/internal/media"
)

// fakeOutput drains played streamers on a goroutine like the real mixer.
// Like beep's speaker, it refuses a second successful Init.
type fakeOutput struct {
	mu        sync.Mutex
	initErr   error
	resumeErr error
	block     bool
	open      bool
	inits     int
	resumes   int
	suspends  int
	clears    int
	rate      beep.SampleRate
	frames    int
}

func (o *fakeOutput) Init(sr beep.SampleRate, _ int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inits++
	if o.open {
		return errors.New("speaker cannot be initialized more than once")
	}
	if o.initErr != nil {
		return o.initErr
	}
	o.open = true
	o.rate = sr
	return nil
}

func (o *fakeOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumes++
	return o.resumeErr
}

func (o *fakeOutput) Play(s beep.Streamer) {
	if o.block {
		return
	}
	go func() {
		buf := make([][2]float64, 512)
		for {
			n, ok := s.Stream(buf)
			o.mu.Lock()
			o.frames += n
			o.mu.Unlock()
			if !ok {
				return
			}
		}
	}()
}

func (o *fakeOutput) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suspends++
	return nil
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
}

func TestSynthesizeLengthAndEnvelope(t *testing.T) {
	tone := Tone{FrequencyHz: 440, Duration: 500 * time.Millisecond, SampleRate: 48000, Volume: 0.5}
	samples := Synthesize(tone)
	if len(samples) != 24000 {
		t.Fatalf("expected 24000 samples, got %d", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("expected silent first sample, got %d", samples[0])
	}
	var peak int16
	for _, s := range samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 15000 || peak > 16500 {
		t.Errorf("expected peak near half scale, got %d", peak)
	}
}

func TestSynthesizeZeroCrossingsMatchFrequency(t *testing.T) {
	tone := Tone{FrequencyHz: 440, Duration: time.Second, SampleRate: 48000, Volume: 1}
	samples := Synthesize(tone)
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			crossings++
		}
	}
	// Two crossings per cycle.
	if math.Abs(float64(crossings)-880) > 10 {
		t.Errorf("expected ~880 zero crossings, got %d", crossings)
	}
}

func TestResampleOutputLength(t *testing.T) {
	input := Synthesize(Tone{FrequencyHz: 440, Duration: time.Second, SampleRate: 48000, Volume: 0.3})
	output, err := Resample(input, 48000, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedLen := 44100
	tolerance := expectedLen / 100
	if len(output) < expectedLen-tolerance || len(output) > expectedLen+tolerance {
		t.Errorf("expected ~%d samples, got %d", expectedLen, len(output))
	}
}

func TestRenderProducesWAV(t *testing.T) {
	p := NewWithOutput(DefaultTone(), 0, &fakeOutput{}, nil)
	var buf bytes.Buffer
	if err := p.WriteTone(&buf); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("expected a RIFF/WAVE file")
	}
}

func TestPlayTestToneRepeats(t *testing.T) {
	out := &fakeOutput{}
	p := NewWithOutput(Tone{FrequencyHz: 440, Duration: 50 * time.Millisecond, SampleRate: 8000, Volume: 0.5}, 0, out, nil)

	for i := 0; i < 3; i++ {
		if err := p.PlayTestTone(context.Background()); err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
	}
	if out.inits != 1 {
		t.Errorf("expected output initialized once, got %d", out.inits)
	}
	if out.resumes != 3 || out.suspends != 3 || out.clears != 3 {
		t.Errorf("expected 3 resume/suspend/clear, got %d/%d/%d", out.resumes, out.suspends, out.clears)
	}
	if out.rate != 8000 {
		t.Errorf("expected output at 8000Hz, got %d", out.rate)
	}
}

func TestPlayTestToneRetriesFailedInit(t *testing.T) {
	out := &fakeOutput{initErr: errors.New("no output device")}
	p := NewWithOutput(Tone{FrequencyHz: 440, Duration: 20 * time.Millisecond, SampleRate: 8000, Volume: 0.5}, 0, out, nil)
	if err := p.PlayTestTone(context.Background()); err == nil {
		t.Fatal("expected first play to fail")
	}
	out.mu.Lock()
	out.initErr = nil
	out.mu.Unlock()
	if err := p.PlayTestTone(context.Background()); err != nil {
		t.Fatalf("expected play after device appeared to succeed, got %v", err)
	}
	if out.inits != 2 {
		t.Errorf("expected 2 init attempts, got %d", out.inits)
	}
}

func TestPlayTestToneResamplesToOutputRate(t *testing.T) {
	out := &fakeOutput{}
	p := NewWithOutput(Tone{FrequencyHz: 440, Duration: 50 * time.Millisecond, SampleRate: 48000, Volume: 0.5}, 44100, out, nil)
	if err := p.PlayTestTone(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out.rate != 44100 {
		t.Errorf("expected output opened at 44100Hz, got %d", out.rate)
	}
}

func TestPlayTestToneInitFailure(t *testing.T) {
	out := &fakeOutput{initErr: errors.New("no output device")}
	p := NewWithOutput(DefaultTone(), 0, out, nil)
	err := p.PlayTestTone(context.Background())
	if media.KindOf(err) != media.ErrTonePlaybackFailed {
		t.Fatalf("expected tone_playback_failed, got %v", err)
	}
	if out.resumes != 0 || out.suspends != 0 {
		t.Error("output should not be touched after init failed")
	}
}

func TestPlayTestToneResumeFailure(t *testing.T) {
	out := &fakeOutput{resumeErr: errors.New("suspended")}
	p := NewWithOutput(DefaultTone(), 0, out, nil)
	err := p.PlayTestTone(context.Background())
	if media.KindOf(err) != media.ErrTonePlaybackFailed {
		t.Fatalf("expected tone_playback_failed, got %v", err)
	}
	if out.suspends != 0 {
		t.Errorf("expected no suspend after resume failure, got %d", out.suspends)
	}
}

func TestPlayTestToneCancelled(t *testing.T) {
	out := &fakeOutput{block: true}
	p := NewWithOutput(DefaultTone(), 0, out, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.PlayTestTone(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if out.clears != 1 || out.suspends != 1 {
		t.Errorf("expected output cleared and suspended after cancellation, got %d/%d", out.clears, out.suspends)
	}
}
