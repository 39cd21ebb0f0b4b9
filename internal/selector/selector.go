// Package selector picks initial devices from an enumeration snapshot.
//
// Browsers and OS audio stacks often list a paired phone's relayed
// microphone first, so microphone selection runs a short heuristic pass
// instead of taking index 0.
package selector

import (
	"regexp"
	"strings"

	"github.com/Danondso/precall/internal/media"
)

// defaultMarkers are label prefixes the OS uses to flag its default device,
// e.g. "Default - MacBook Pro Microphone". A marker only counts when a
// separator or the end of the label follows it.
var defaultMarkers = []string{
	"default",
	"standard",
	"predeterminado",
	"par défaut",
	"padrão",
	"predefinito",
	"voreinstellung",
}

var defaultMarkerPattern = markerPattern(defaultMarkers)

var (
	builtinPattern       = regexp.MustCompile(`(?i)\b(built-?in|internal|integrated|macbook|imac|laptop)\b`)
	deprioritizedPattern = regexp.MustCompile(`(?i)\b(iphone|ipad|android|pixel|galaxy|phone|tablet|airpods|buds|headset|bluetooth|continuity|hands-free)\b`)
)

// HasDefaultMarker reports whether label starts with an OS default marker.
func HasDefaultMarker(label string) bool {
	return defaultMarkerPattern.MatchString(strings.TrimSpace(label))
}

func markerPattern(markers []string) *regexp.Regexp {
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?i)^(?:` + strings.Join(quoted, "|") + `)\s*(?:[-:(\x{2013}\x{2014}]|$)`)
}

// IsBuiltin reports whether label looks like integrated hardware.
func IsBuiltin(label string) bool {
	return builtinPattern.MatchString(label)
}

// IsDeprioritized reports whether label looks like a companion device such
// as a phone, tablet or wireless headset.
func IsDeprioritized(label string) bool {
	return deprioritizedPattern.MatchString(label)
}

// PickDefaultCamera returns the platform default camera if it is listed,
// otherwise the first camera. It returns "" for an empty list.
func PickDefaultCamera(list []media.Device, platformDefaultID string) string {
	if len(list) == 0 {
		return ""
	}
	if contains(list, platformDefaultID) {
		return platformDefaultID
	}
	return list[0].ID
}

// PickPreferredMicrophone applies the microphone tie-break policy; the first
// matching rule wins:
//  1. the platform default, if listed
//  2. a label carrying an OS "default" marker
//  3. a built-in device
//  4. the first device that is not a phone/tablet/headset class peripheral
//  5. the first device
func PickPreferredMicrophone(list []media.Device, platformDefaultID string) string {
	if len(list) == 0 {
		return ""
	}
	if contains(list, platformDefaultID) {
		return platformDefaultID
	}
	for _, d := range list {
		if HasDefaultMarker(d.Label) {
			return d.ID
		}
	}
	for _, d := range list {
		if IsBuiltin(d.Label) {
			return d.ID
		}
	}
	for _, d := range list {
		if !IsDeprioritized(d.Label) {
			return d.ID
		}
	}
	return list[0].ID
}

// PickDefaultSpeaker returns the first speaker, or "" when none are listed.
func PickDefaultSpeaker(list []media.Device) string {
	if len(list) == 0 {
		return ""
	}
	return list[0].ID
}

// PickWithPreference returns preferredID when it is still enumerated,
// otherwise fallback.
func PickWithPreference(list []media.Device, preferredID, fallback string) string {
	if contains(list, preferredID) {
		return preferredID
	}
	return fallback
}

func contains(list []media.Device, id string) bool {
	if id == "" {
		return false
	}
	for _, d := range list {
		if d.ID == id {
			return true
		}
	}
	return false
}
