package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// TimingConfig holds the engine's debounce and retry delays in milliseconds.
type TimingConfig struct {
	DebounceMs        int `toml:"debounce_ms"`
	RefreshDebounceMs int `toml:"refresh_debounce_ms"`
	SettleMs          int `toml:"settle_ms"`
	RetryDelayMs      int `toml:"retry_delay_ms"`
	AttachRetryMs     int `toml:"attach_retry_delay_ms"`
	LevelIntervalMs   int `toml:"level_interval_ms"`
}

// ToneConfig holds the speaker test tone settings.
type ToneConfig struct {
	FrequencyHz float64 `toml:"frequency_hz"`
	DurationMs  int     `toml:"duration_ms"`
	SampleRate  int     `toml:"sample_rate"`
	Volume      float64 `toml:"volume"`
}

// PreferencesConfig holds where saved device choices live.
type PreferencesConfig struct {
	Path string `toml:"path"`
}

// CustomTheme is a user-defined color palette. Colors are hex strings;
// an empty meter_peak reuses failed.
type CustomTheme struct {
	Name       string `toml:"name"`
	Title      string `toml:"title"`
	Frame      string `toml:"frame"`
	Device     string `toml:"device"`
	Ready      string `toml:"ready"`
	Pending    string `toml:"pending"`
	Failed     string `toml:"failed"`
	Meter      string `toml:"meter"`
	MeterPeak  string `toml:"meter_peak"`
	Background string `toml:"background"`
	Text       string `toml:"text"`
	Dimmed     string `toml:"dimmed"`
}

// Config is the top-level configuration.
type Config struct {
	Theme        string            `toml:"theme"`
	Timing       TimingConfig      `toml:"timing"`
	Tone         ToneConfig        `toml:"tone"`
	Preferences  PreferencesConfig `toml:"preferences"`
	CustomThemes []CustomTheme     `toml:"custom_theme"`
}

// Default returns a Config populated with all default values.
func Default() *Config {
	return &Config{
		Theme: "synthwave",
		Timing: TimingConfig{
			DebounceMs:        300,
			RefreshDebounceMs: 500,
			SettleMs:          100,
			RetryDelayMs:      1000,
			AttachRetryMs:     200,
			LevelIntervalMs:   100,
		},
		Tone: ToneConfig{
			FrequencyHz: 440,
			DurationMs:  500,
			SampleRate:  48000,
			Volume:      0.5,
		},
		Preferences: PreferencesConfig{
			Path: "",
		},
	}
}

// Ms converts a millisecond setting to a duration. Negative values are zero.
func Ms(v int) time.Duration {
	if v < 0 {
		return 0
	}
	return time.Duration(v) * time.Millisecond
}

// DefaultPath returns the default config file path (~/.config/precall/config.toml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "precall", "config.toml")
}

// Save writes the config as TOML to the given path, creating parent
// directories if needed. The write is atomic: data is written to a
// temporary file and renamed into place so a crash mid-write cannot
// corrupt the existing config.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".precall-config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads the TOML config from path. If the file does not exist,
// it returns the default config without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
