package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Danondso/precall/internal/devicetest"
	"github.com/Danondso/precall/internal/media"
	"github.com/Danondso/precall/internal/platform"
	"github.com/Danondso/precall/internal/probe"
	"github.com/Danondso/precall/internal/readiness"
	"github.com/Danondso/precall/internal/tui"
)

type headlessOptions struct {
	Timeout  time.Duration
	PlayTone bool
}

func (c *commandContext) engineOptions() (devicetest.Options, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return devicetest.Options{}, err
	}
	if err := c.startAudio(); err != nil {
		return devicetest.Options{}, err
	}
	logger := c.logger()
	return devicetest.Options{
		Timings: timingsFrom(cfg),
		Prefs:   c.prefsStore(cfg),
		Tone:    probe.New(toneFrom(cfg), platform.DefaultOutputRate(), logger),
		Logger:  logger,
	}, nil
}

func (c *commandContext) runInteractive(cmd *cobra.Command) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	opts, err := c.engineOptions()
	if err != nil {
		return err
	}
	logger := opts.Logger
	tui.RegisterCustomThemes(cfg.CustomThemes)

	// The program is created before the engine starts, so OnChange never
	// sees a nil program.
	var program *tea.Program
	opts.OnChange = func(snap devicetest.Snapshot) {
		program.Send(tui.SnapshotMsg{Snapshot: snap})
	}
	engine := devicetest.New(platform.New(logger), opts)
	defer engine.Close()

	model := tui.NewModel(cfg, engine, logger, c.debug())
	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	// When debug is enabled, redirect logger output into the TUI debug panel
	if c.debug() {
		logger.SetOutput(tui.NewLogWriter(program))
	}

	go func() {
		if err := engine.Start(cmd.Context()); err != nil {
			logger.Printf("enumerate: start: %v", err)
		}
	}()

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if m, ok := final.(tui.Model); ok && m.Result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), summaryLine(*m.Result))
	}
	return nil
}

func (c *commandContext) runHeadless(cmd *cobra.Command, opts headlessOptions) error {
	engineOpts, err := c.engineOptions()
	if err != nil {
		return err
	}
	return headlessCheck(cmd.Context(), cmd.OutOrStdout(), platform.New(engineOpts.Logger), engineOpts, opts)
}

// headlessCheck runs one enumeration pass and prints the outcome. It
// returns an error when the camera and microphone are not both working.
func headlessCheck(ctx context.Context, out io.Writer, provider media.Provider, engineOpts devicetest.Options, opts headlessOptions) error {
	engine := devicetest.New(provider, engineOpts)
	defer engine.Close()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("device check: %w", err)
	}
	if opts.PlayTone {
		// The speaker row reports the outcome.
		_ = engine.PlayTestTone(ctx)
	}

	snap := engine.Snapshot()
	fmt.Fprintln(out, renderReport(snap))
	if snap.Warning != "" {
		fmt.Fprintf(out, "Warning: %s\n", snap.Warning)
	}
	if !snap.CanProceed {
		return fmt.Errorf("device check failed: %w", devicetest.ErrNotReady)
	}
	res, err := engine.Complete()
	if err != nil {
		return fmt.Errorf("device check: %w", err)
	}
	fmt.Fprintln(out, summaryLine(res))
	return nil
}

func renderReport(snap devicetest.Snapshot) string {
	rows := make([][]string, 0, len(media.Kinds))
	for _, kind := range media.Kinds {
		st := snap.States[kind]
		device := "-"
		if id := snap.Selected.Of(kind); id != "" {
			device = id
			if d, ok := snap.Devices.Find(kind, id); ok {
				device = d.DisplayLabel()
			}
		}
		details := st.Message
		if st.Status == readiness.Error && st.Detail != "" {
			details += " (" + st.Detail + ")"
		}
		rows = append(rows, []string{kind.Title(), st.Status.String(), device, details})
	}
	return renderTable([]string{"Device", "Status", "Selected", "Details"}, rows)
}

func summaryLine(res devicetest.Result) string {
	if res.Skipped {
		return "Continuing without a full device check."
	}
	return "Camera and microphone are working. Device choices saved."
}
