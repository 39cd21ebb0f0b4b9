package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/Danondso/precall/internal/config"
	"github.com/Danondso/precall/internal/prefs"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, s)
	}
}

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path
}

func TestToneWritesWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tone.wav")
	if _, err := runCLI(t, "tone", "--out", out); err != nil {
		t.Fatalf("tone --out: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read tone: %v", err)
	}
	if len(data) < 44 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("expected a WAV file, got %d bytes", len(data))
	}
}

func TestToneUsesConfiguredDuration(t *testing.T) {
	cfg := config.Default()
	cfg.Tone.DurationMs = 100
	cfg.Tone.SampleRate = 8000
	cfgPath := writeConfig(t, cfg)

	out := filepath.Join(t.TempDir(), "tone.wav")
	if _, err := runCLI(t, "--config", cfgPath, "tone", "--out", out); err != nil {
		t.Fatalf("tone --out: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	// 800 mono int16 samples plus the header.
	if info.Size() < 1600 || info.Size() > 1600+256 {
		t.Errorf("unexpected WAV size %d", info.Size())
	}
}

func TestPrefsEmpty(t *testing.T) {
	cfg := config.Default()
	cfg.Preferences.Path = filepath.Join(t.TempDir(), "devices.toml")
	out, err := runCLI(t, "--config", writeConfig(t, cfg), "prefs")
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	requireContains(t, out, "No saved device choices yet.")
	requireContains(t, out, cfg.Preferences.Path)
}

func TestPrefsShowsSavedRecord(t *testing.T) {
	cfg := config.Default()
	cfg.Preferences.Path = filepath.Join(t.TempDir(), "devices.toml")
	data, err := toml.Marshal(prefs.Record{CameraID: "/dev/v4l/by-id/usb-cam", MicID: "ALSA:USB Mic"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Preferences.Path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", writeConfig(t, cfg), "prefs")
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	requireContains(t, out, "/dev/v4l/by-id/usb-cam")
	requireContains(t, out, "ALSA:USB Mic")
}

func TestBadConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("theme = [not toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "--config", path, "prefs"); err == nil {
		t.Fatal("expected an error for malformed config")
	}
}

func TestTimingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Timing.DebounceMs = 50
	got := timingsFrom(cfg)
	if got.Debounce.Milliseconds() != 50 {
		t.Errorf("expected 50ms debounce, got %s", got.Debounce)
	}
	if got.RetryDelay.Milliseconds() != int64(cfg.Timing.RetryDelayMs) {
		t.Errorf("expected retry delay from config, got %s", got.RetryDelay)
	}
}

func TestToneFromConfigIgnoresInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Tone.Volume = 4
	cfg.Tone.FrequencyHz = 0
	tone := toneFrom(cfg)
	if tone.Volume != 0.5 {
		t.Errorf("expected default volume for out-of-range value, got %f", tone.Volume)
	}
	if tone.FrequencyHz != 440 {
		t.Errorf("expected default frequency, got %f", tone.FrequencyHz)
	}
}
