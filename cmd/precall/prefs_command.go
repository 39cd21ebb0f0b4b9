package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPrefsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show the saved device choices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := ctx.prefsStore(cfg)
			rec, err := store.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Preferences: %s\n", store.Path())
			if rec.IsEmpty() {
				fmt.Fprintln(out, "No saved device choices yet.")
				return nil
			}
			rows := [][]string{
				{"Camera", valueOr(rec.CameraID, "-")},
				{"Microphone", valueOr(rec.MicID, "-")},
				{"Speaker", valueOr(rec.SpeakerID, "-")},
			}
			fmt.Fprintln(out, renderTable([]string{"Kind", "Saved ID"}, rows))
			return nil
		},
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
