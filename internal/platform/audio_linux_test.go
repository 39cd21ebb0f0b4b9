//go:build linux

package platform

import "testing"

const pactlSources = `Source #48
	State: SUSPENDED
	Name: alsa_output.pci-0000_00_1f.3.analog-stereo.monitor
	Description: Monitor of Built-in Audio Analog Stereo
	Driver: PipeWire

Source #49
	State: RUNNING
	Name: alsa_input.usb-Blue_Yeti-00.analog-stereo
	Description: Yeti Stereo Microphone Analog Stereo
	Driver: PipeWire
`

func TestParseSourceDescription(t *testing.T) {
	got := parseSourceDescription(pactlSources, "alsa_input.usb-Blue_Yeti-00.analog-stereo")
	if got != "Yeti Stereo Microphone Analog Stereo" {
		t.Errorf("got %q", got)
	}
}

func TestParseSourceDescriptionMonitor(t *testing.T) {
	got := parseSourceDescription(pactlSources, "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor")
	if got != "" {
		t.Errorf("expected monitor sources to be ignored, got %q", got)
	}
}

func TestParseSourceDescriptionMissing(t *testing.T) {
	if got := parseSourceDescription(pactlSources, "nope"); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
}
