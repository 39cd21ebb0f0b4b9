package platform

import (
	"math"
	"testing"
)

func TestComputeRMSSilence(t *testing.T) {
	buf := make([]int16, 1024)
	if rms := computeRMS(buf, 1); rms != 0 {
		t.Errorf("expected 0 for silence, got %f", rms)
	}
}

func TestComputeRMSFullScale(t *testing.T) {
	buf := make([]int16, 1000)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = 32767
		} else {
			buf[i] = -32768
		}
	}
	rms := computeRMS(buf, 1)
	if math.Abs(rms-1.0) > 0.001 {
		t.Errorf("expected ~1.0 for full-scale square wave, got %f", rms)
	}
}

func TestComputeRMSStereoAveragesChannels(t *testing.T) {
	// Left and right cancel out, so the mono mix is silent.
	buf := []int16{10000, -10000, 10000, -10000}
	if rms := computeRMS(buf, 2); rms != 0 {
		t.Errorf("expected 0 for opposing channels, got %f", rms)
	}
}

func TestComputeRMSEmpty(t *testing.T) {
	if rms := computeRMS(nil, 1); rms != 0 {
		t.Errorf("expected 0 for empty buffer, got %f", rms)
	}
	if rms := computeRMS([]int16{1}, 0); rms != 0 {
		t.Errorf("expected 0 for zero channels, got %f", rms)
	}
}

func TestAudioDeviceID(t *testing.T) {
	if got := audioDeviceID("ALSA", "USB Mic"); got != "ALSA:USB Mic" {
		t.Errorf("got %q", got)
	}
	if got := audioDeviceID("", "USB Mic"); got != "USB Mic" {
		t.Errorf("got %q", got)
	}
	if got := hostAPIName(nil); got != "" {
		t.Errorf("expected empty host API for nil device, got %q", got)
	}
}

func TestMicLabel(t *testing.T) {
	if got := micLabel("default", "MacBook Pro Microphone"); got != "Default - MacBook Pro Microphone" {
		t.Errorf("got %q", got)
	}
	if got := micLabel("default", ""); got != "default" {
		t.Errorf("expected raw name without a source, got %q", got)
	}
	if got := micLabel("USB Mic", "MacBook Pro Microphone"); got != "USB Mic" {
		t.Errorf("expected only the alias to be relabeled, got %q", got)
	}
}

func TestIsDefaultAlias(t *testing.T) {
	for _, name := range []string{"default", "pulse", "pipewire", "sysdefault"} {
		if !isDefaultAlias(name) {
			t.Errorf("expected %q to be an alias", name)
		}
	}
	if isDefaultAlias("HDA Intel PCH: ALC257 Analog (hw:0,0)") {
		t.Error("hardware device reported as alias")
	}
}
