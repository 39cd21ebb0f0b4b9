package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var debugFlag bool
	var headless bool
	var playTone bool
	var timeout time.Duration

	ctx := newCommandContext(&configFlag, &debugFlag)

	rootCmd := &cobra.Command{
		Use:           "precall",
		Short:         "Check your camera, microphone and speaker before a call",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if headless || !isTerminal(cmd.OutOrStdout()) {
				return ctx.runHeadless(cmd, headlessOptions{Timeout: timeout, PlayTone: playTone})
			}
			return ctx.runInteractive(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "Print a report instead of opening the interactive screen")
	rootCmd.Flags().BoolVar(&playTone, "tone", false, "Play the speaker test tone during a headless check")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Give up on a headless check after this long")

	rootCmd.AddCommand(newDevicesCommand(ctx))
	rootCmd.AddCommand(newToneCommand(ctx))
	rootCmd.AddCommand(newPrefsCommand(ctx))

	return rootCmd
}
