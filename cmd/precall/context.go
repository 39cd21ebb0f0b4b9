package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/mattn/go-isatty"

	"github.com/Danondso/precall/internal/config"
	"github.com/Danondso/precall/internal/devicetest"
	"github.com/Danondso/precall/internal/platform"
	"github.com/Danondso/precall/internal/prefs"
	"github.com/Danondso/precall/internal/probe"
)

type commandContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	log        *log.Logger

	audioMu sync.Mutex
	audioUp bool
}

func newCommandContext(configFlag *string, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		debugFlag:  debugFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	return config.DefaultPath()
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) debug() bool {
	return c.debugFlag != nil && *c.debugFlag
}

// logger returns the shared debug logger, discarding output unless --debug.
func (c *commandContext) logger() *log.Logger {
	c.loggerOnce.Do(func() {
		if c.debug() {
			c.log = log.New(os.Stderr, "[DEBUG] ", log.Ltime|log.Lmicroseconds)
		} else {
			c.log = log.New(io.Discard, "", 0)
		}
	})
	return c.log
}

// startAudio initializes PortAudio once per process.
func (c *commandContext) startAudio() error {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if c.audioUp {
		return nil
	}
	if err := platform.InitAudio(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	c.audioUp = true
	c.logger().Printf("portaudio: initialized")
	return nil
}

func (c *commandContext) close() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if c.audioUp {
		_ = portaudio.Terminate()
		c.audioUp = false
	}
}

func (c *commandContext) prefsStore(cfg *config.Config) *prefs.Store {
	return prefs.NewStore(cfg.Preferences.Path)
}

func timingsFrom(cfg *config.Config) devicetest.Timings {
	t := cfg.Timing
	return devicetest.Timings{
		Debounce:        config.Ms(t.DebounceMs),
		RefreshDebounce: config.Ms(t.RefreshDebounceMs),
		Settle:          config.Ms(t.SettleMs),
		RetryDelay:      config.Ms(t.RetryDelayMs),
		AttachRetry:     config.Ms(t.AttachRetryMs),
		LevelInterval:   config.Ms(t.LevelIntervalMs),
	}
}

func toneFrom(cfg *config.Config) probe.Tone {
	tone := probe.DefaultTone()
	if cfg.Tone.FrequencyHz > 0 {
		tone.FrequencyHz = cfg.Tone.FrequencyHz
	}
	if cfg.Tone.DurationMs > 0 {
		tone.Duration = config.Ms(cfg.Tone.DurationMs)
	}
	if cfg.Tone.SampleRate > 0 {
		tone.SampleRate = cfg.Tone.SampleRate
	}
	if cfg.Tone.Volume > 0 && cfg.Tone.Volume <= 1 {
		tone.Volume = cfg.Tone.Volume
	}
	return tone
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
