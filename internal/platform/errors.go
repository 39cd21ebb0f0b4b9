package platform

import (
	"errors"

	"github.com/gordonklaus/portaudio"
	"golang.org/x/sys/unix"

	"github.com/Danondso/precall/internal/media"
)

// classify maps OS and PortAudio failures onto the media error taxonomy.
// Errors that are already classified pass through unchanged.
func classify(err error, kind media.Kind, id string) error {
	if err == nil {
		return nil
	}
	var de *media.DeviceError
	if errors.As(err, &de) {
		return err
	}
	return &media.DeviceError{Kind: errorKind(err), Device: kind, DeviceID: id, Err: err}
}

func errorKind(err error) media.ErrorKind {
	switch {
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return media.ErrPermissionDenied
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO),
		errors.Is(err, portaudio.InvalidDevice):
		return media.ErrDeviceNotFound
	case errors.Is(err, unix.EBUSY), errors.Is(err, portaudio.DeviceUnavailable):
		return media.ErrDeviceBusy
	default:
		return media.ErrUnknown
	}
}
