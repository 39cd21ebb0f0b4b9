package media

import (
	"errors"
	"fmt"
)

// ErrorKind classifies device failures for user-facing remediation.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrPermissionDenied
	ErrDeviceNotFound
	ErrDeviceBusy
	ErrAttachFailed
	ErrTonePlaybackFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrDeviceNotFound:
		return "device_not_found"
	case ErrDeviceBusy:
		return "device_busy"
	case ErrAttachFailed:
		return "attach_failed"
	case ErrTonePlaybackFailed:
		return "tone_playback_failed"
	default:
		return "unknown"
	}
}

var remediations = map[ErrorKind]string{
	ErrPermissionDenied:   "Access was denied. Grant camera and microphone permission, then refresh.",
	ErrDeviceNotFound:     "No device was found. Connect the hardware, then refresh.",
	ErrDeviceBusy:         "The device is in use by another application. Close it, then refresh.",
	ErrAttachFailed:       "The preview could not be started. Refresh or pick another device.",
	ErrTonePlaybackFailed: "Could not play the test tone. Check audio output permissions and that a speaker is connected.",
	ErrUnknown:            "Something went wrong. Check permissions and try again.",
}

// Remediation returns the one-line fix shown next to a failed device.
func Remediation(kind ErrorKind) string {
	if r, ok := remediations[kind]; ok {
		return r
	}
	return remediations[ErrUnknown]
}

// DeviceError is returned by providers and the track manager.
type DeviceError struct {
	Kind     ErrorKind
	Device   Kind
	DeviceID string
	Err      error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Device, e.Kind)
	if e.DeviceID != "" {
		msg += fmt.Sprintf(" (%s)", e.DeviceID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Message returns the remediation text for the error. Unknown errors carry
// the underlying error text for support diagnosis.
func (e *DeviceError) Message() string {
	msg := Remediation(e.Kind)
	if e.Kind == ErrUnknown && e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

// KindOf extracts the ErrorKind of err, defaulting to ErrUnknown.
func KindOf(err error) ErrorKind {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrUnknown
}

// AsDeviceError wraps err as a *DeviceError for device kind, keeping an
// existing classification if err already carries one.
func AsDeviceError(err error, device Kind, id string) *DeviceError {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}
	return &DeviceError{Kind: ErrUnknown, Device: device, DeviceID: id, Err: err}
}
