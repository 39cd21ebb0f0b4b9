package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Theme != "synthwave" {
		t.Errorf("expected theme synthwave, got %s", cfg.Theme)
	}
	if cfg.Timing.DebounceMs != 300 {
		t.Errorf("expected debounce 300, got %d", cfg.Timing.DebounceMs)
	}
	if cfg.Timing.RefreshDebounceMs != 500 {
		t.Errorf("expected refresh debounce 500, got %d", cfg.Timing.RefreshDebounceMs)
	}
	if cfg.Timing.RetryDelayMs != 1000 {
		t.Errorf("expected retry delay 1000, got %d", cfg.Timing.RetryDelayMs)
	}
	if cfg.Timing.AttachRetryMs != 200 {
		t.Errorf("expected attach retry 200, got %d", cfg.Timing.AttachRetryMs)
	}
	if cfg.Timing.LevelIntervalMs != 100 {
		t.Errorf("expected level interval 100, got %d", cfg.Timing.LevelIntervalMs)
	}
	if cfg.Tone.FrequencyHz != 440 {
		t.Errorf("expected 440Hz tone, got %f", cfg.Tone.FrequencyHz)
	}
	if cfg.Tone.DurationMs != 500 {
		t.Errorf("expected 500ms tone, got %d", cfg.Tone.DurationMs)
	}
	if cfg.Preferences.Path != "" {
		t.Errorf("expected empty preferences path, got %s", cfg.Preferences.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Timing.DebounceMs != 300 {
		t.Errorf("expected default debounce, got %d", cfg.Timing.DebounceMs)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
theme = "everforest"

[timing]
debounce_ms = 150
refresh_debounce_ms = 250
settle_ms = 50
retry_delay_ms = 2000
attach_retry_delay_ms = 100
level_interval_ms = 50

[tone]
frequency_hz = 880
duration_ms = 250
sample_rate = 44100
volume = 0.25

[preferences]
path = "/tmp/precall/devices.toml"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Theme != "everforest" {
		t.Errorf("expected everforest, got %s", cfg.Theme)
	}
	if cfg.Timing.DebounceMs != 150 {
		t.Errorf("expected 150, got %d", cfg.Timing.DebounceMs)
	}
	if cfg.Timing.RefreshDebounceMs != 250 {
		t.Errorf("expected 250, got %d", cfg.Timing.RefreshDebounceMs)
	}
	if cfg.Timing.SettleMs != 50 {
		t.Errorf("expected 50, got %d", cfg.Timing.SettleMs)
	}
	if cfg.Timing.RetryDelayMs != 2000 {
		t.Errorf("expected 2000, got %d", cfg.Timing.RetryDelayMs)
	}
	if cfg.Timing.AttachRetryMs != 100 {
		t.Errorf("expected 100, got %d", cfg.Timing.AttachRetryMs)
	}
	if cfg.Timing.LevelIntervalMs != 50 {
		t.Errorf("expected 50, got %d", cfg.Timing.LevelIntervalMs)
	}
	if cfg.Tone.FrequencyHz != 880 {
		t.Errorf("expected 880, got %f", cfg.Tone.FrequencyHz)
	}
	if cfg.Tone.SampleRate != 44100 {
		t.Errorf("expected 44100, got %d", cfg.Tone.SampleRate)
	}
	if cfg.Tone.Volume != 0.25 {
		t.Errorf("expected 0.25, got %f", cfg.Tone.Volume)
	}
	if cfg.Preferences.Path != "/tmp/precall/devices.toml" {
		t.Errorf("expected preferences path override, got %s", cfg.Preferences.Path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Theme = "everforest"
	cfg.Tone.FrequencyHz = 660

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}

	if loaded.Theme != "everforest" {
		t.Errorf("expected theme everforest, got %s", loaded.Theme)
	}
	if loaded.Tone.FrequencyHz != 660 {
		t.Errorf("expected 660Hz, got %f", loaded.Tone.FrequencyHz)
	}
	if loaded.Timing.DebounceMs != 300 {
		t.Errorf("expected default debounce preserved, got %d", loaded.Timing.DebounceMs)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dir", "config.toml")

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed to create nested dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist at %s: %v", path, err)
	}
}

func TestLoadCustomThemes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
theme = "bedfellow"

[[custom_theme]]
name = "bedfellow"
title = "#008585"
frame = "#74A892"
device = "#C7522A"
ready = "#74A892"
pending = "#D97706"
failed = "#C7522A"
meter = "#008585"
meter_peak = "#D97706"
background = "#1A1611"
text = "#FEF9E0"
dimmed = "#535A63"

[[custom_theme]]
name = "ocean"
title = "#0077B6"
frame = "#00B4D8"
device = "#90E0EF"
ready = "#2A9D8F"
pending = "#E9C46A"
failed = "#E63946"
meter = "#0077B6"
background = "#03045E"
text = "#CAF0F8"
dimmed = "#5C677D"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Theme != "bedfellow" {
		t.Errorf("expected theme bedfellow, got %s", cfg.Theme)
	}
	if len(cfg.CustomThemes) != 2 {
		t.Fatalf("expected 2 custom themes, got %d", len(cfg.CustomThemes))
	}
	if cfg.CustomThemes[0].Meter != "#008585" || cfg.CustomThemes[0].MeterPeak != "#D97706" {
		t.Errorf("expected meter colors, got %s/%s", cfg.CustomThemes[0].Meter, cfg.CustomThemes[0].MeterPeak)
	}
	if cfg.CustomThemes[1].MeterPeak != "" {
		t.Errorf("expected unset meter_peak, got %s", cfg.CustomThemes[1].MeterPeak)
	}
	if cfg.CustomThemes[1].Name != "ocean" {
		t.Errorf("expected second custom theme name ocean, got %s", cfg.CustomThemes[1].Name)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[timing]
debounce_ms = 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timing.DebounceMs != 10 {
		t.Errorf("expected 10, got %d", cfg.Timing.DebounceMs)
	}
	// Non-overridden values should remain defaults
	if cfg.Timing.RetryDelayMs != 1000 {
		t.Errorf("expected default retry delay, got %d", cfg.Timing.RetryDelayMs)
	}
	if cfg.Tone.SampleRate != 48000 {
		t.Errorf("expected default sample rate, got %d", cfg.Tone.SampleRate)
	}
}

func TestMs(t *testing.T) {
	tests := []struct {
		in   int
		want time.Duration
	}{
		{0, 0},
		{-5, 0},
		{300, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := Ms(tt.in); got != tt.want {
			t.Errorf("Ms(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
