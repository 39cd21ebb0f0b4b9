// Package media defines the device and track types shared by the device
// test engine and the platform provider that backs it.
package media

import "fmt"

// Kind is the class of a media device.
type Kind int

const (
	Camera Kind = iota
	Microphone
	Speaker
)

// Kinds lists every device kind in display order.
var Kinds = []Kind{Camera, Microphone, Speaker}

func (k Kind) String() string {
	switch k {
	case Camera:
		return "camera"
	case Microphone:
		return "microphone"
	case Speaker:
		return "speaker"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Title returns the capitalized kind name used in synthesized labels.
func (k Kind) Title() string {
	switch k {
	case Camera:
		return "Camera"
	case Microphone:
		return "Microphone"
	case Speaker:
		return "Speaker"
	default:
		return "Device"
	}
}

const shortIDLen = 8

// Device describes one enumerated piece of hardware. Devices are produced
// fresh on every enumeration; only their IDs are persisted.
type Device struct {
	ID    string
	Label string
	Kind  Kind
}

// DisplayLabel returns the device label, or "{Kind} {short-id}" when the
// platform withheld it.
func (d Device) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	id := d.ID
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	return d.Kind.Title() + " " + id
}

// DeviceList is one enumeration snapshot split by kind.
type DeviceList struct {
	Cameras     []Device
	Microphones []Device
	Speakers    []Device
}

// Classify splits a flat device listing by kind, preserving order and
// dropping duplicate IDs within a kind.
func Classify(devices []Device) DeviceList {
	var list DeviceList
	seen := make(map[Kind]map[string]bool, len(Kinds))
	for _, d := range devices {
		if seen[d.Kind] == nil {
			seen[d.Kind] = make(map[string]bool)
		}
		if seen[d.Kind][d.ID] {
			continue
		}
		seen[d.Kind][d.ID] = true
		switch d.Kind {
		case Camera:
			list.Cameras = append(list.Cameras, d)
		case Microphone:
			list.Microphones = append(list.Microphones, d)
		case Speaker:
			list.Speakers = append(list.Speakers, d)
		}
	}
	return list
}

// Of returns the devices of the given kind.
func (l DeviceList) Of(kind Kind) []Device {
	switch kind {
	case Camera:
		return l.Cameras
	case Microphone:
		return l.Microphones
	case Speaker:
		return l.Speakers
	default:
		return nil
	}
}

// Find returns the device of the given kind with the given ID.
func (l DeviceList) Find(kind Kind, id string) (Device, bool) {
	if id == "" {
		return Device{}, false
	}
	for _, d := range l.Of(kind) {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// Has reports whether a device with the given ID is enumerated for kind.
func (l DeviceList) Has(kind Kind, id string) bool {
	_, ok := l.Find(kind, id)
	return ok
}
