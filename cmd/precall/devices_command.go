package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Danondso/precall/internal/media"
	"github.com/Danondso/precall/internal/platform"
	"github.com/Danondso/precall/internal/prefs"
	"github.com/Danondso/precall/internal/selector"
)

type deviceLister interface {
	ListDevices(ctx context.Context) ([]media.Device, error)
	DefaultDeviceID(kind media.Kind) string
}

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List cameras, microphones and speakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := ctx.startAudio(); err != nil {
				return err
			}
			defer ctx.close()
			saved, err := ctx.prefsStore(cfg).Load()
			if err != nil {
				return err
			}
			out, err := listDevices(cmd.Context(), platform.New(ctx.logger()), saved)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// listDevices renders every enumerated device, marking the platform
// default, the device the check would pick and the saved choice.
func listDevices(ctx context.Context, lister deviceLister, saved prefs.Record) (string, error) {
	devices, err := lister.ListDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("list devices: %w", err)
	}
	list := media.Classify(devices)
	if len(devices) == 0 {
		return "No media devices found.", nil
	}

	savedID := map[media.Kind]string{
		media.Camera:     saved.CameraID,
		media.Microphone: saved.MicID,
		media.Speaker:    saved.SpeakerID,
	}

	var rows [][]string
	for _, kind := range media.Kinds {
		candidates := list.Of(kind)
		def := lister.DefaultDeviceID(kind)
		picked := pickFor(kind, candidates, def)
		for _, d := range candidates {
			rows = append(rows, []string{
				kind.Title(),
				d.DisplayLabel(),
				d.ID,
				mark(d.ID == def),
				mark(d.ID == picked),
				mark(d.ID == savedID[kind]),
			})
		}
	}
	return renderTable([]string{"Kind", "Name", "ID", "Default", "Preferred", "Saved"}, rows), nil
}

func pickFor(kind media.Kind, candidates []media.Device, platformDefault string) string {
	switch kind {
	case media.Camera:
		return selector.PickDefaultCamera(candidates, platformDefault)
	case media.Microphone:
		return selector.PickPreferredMicrophone(candidates, platformDefault)
	default:
		return selector.PickDefaultSpeaker(candidates)
	}
}

func mark(v bool) string {
	if v {
		return "*"
	}
	return ""
}
