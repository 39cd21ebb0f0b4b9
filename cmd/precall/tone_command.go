package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Danondso/precall/internal/platform"
	"github.com/Danondso/precall/internal/probe"
)

func newToneCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Play the speaker test tone, or write it as WAV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tone := toneFrom(cfg)
			logger := ctx.logger()

			if outPath != "" {
				return writeTone(probe.New(tone, 0, logger), outPath)
			}

			if err := ctx.startAudio(); err != nil {
				return err
			}
			defer ctx.close()
			player := probe.New(tone, platform.DefaultOutputRate(), logger)
			if err := player.PlayTestTone(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Played test tone. Did you hear it?")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the tone to this WAV file instead of playing it")
	return cmd
}

func writeTone(player *probe.Player, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := player.WriteTone(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
