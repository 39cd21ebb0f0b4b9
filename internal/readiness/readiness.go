// Package readiness tracks per-device test status and the proceed gate.
package readiness

import (
	"sync"

	"github.com/Danondso/precall/internal/media"
)

// Status is the test state of one device kind.
type Status int

const (
	Testing Status = iota
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "testing"
	}
}

// State is the status of one kind plus its user-facing text.
type State struct {
	Status  Status
	Message string
	Detail  string
	// Reason classifies an Error status.
	Reason media.ErrorKind
}

// Tracker holds the state of every device kind. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	states map[media.Kind]State
}

// New returns a Tracker with every kind in Testing.
func New() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset puts every kind back into Testing.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[media.Kind]State, len(media.Kinds))
	for _, k := range media.Kinds {
		t.states[k] = State{Status: Testing, Message: "Checking..."}
	}
}

// Set records the state of kind.
func (t *Tracker) Set(kind media.Kind, status Status, message, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[kind] = State{Status: status, Message: message, Detail: detail}
}

// Restore puts back a state previously returned by Get.
func (t *Tracker) Restore(kind media.Kind, st State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[kind] = st
}

// Testing marks kind as in progress.
func (t *Tracker) Testing(kind media.Kind, message string) {
	t.Set(kind, Testing, message, "")
}

// Succeed marks kind as verified.
func (t *Tracker) Succeed(kind media.Kind, message string) {
	t.Set(kind, Success, message, "")
}

// Fail marks kind as failed with the remediation text of err.
func (t *Tracker) Fail(kind media.Kind, err error) {
	de := media.AsDeviceError(err, kind, "")
	detail := ""
	if de != nil && de.Err != nil {
		detail = de.Err.Error()
	}
	msg := media.Remediation(media.ErrUnknown)
	reason := media.ErrUnknown
	if de != nil {
		msg = de.Message()
		reason = de.Kind
	}
	t.Restore(kind, State{Status: Error, Message: msg, Detail: detail, Reason: reason})
}

// Get returns the state of kind.
func (t *Tracker) Get(kind media.Kind) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[kind]
}

// All returns a copy of every kind's state.
func (t *Tracker) All() map[media.Kind]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[media.Kind]State, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// CanProceed reports whether the camera and microphone are both verified.
// Speaker status never gates.
func (t *Tracker) CanProceed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Gate(t.states[media.Camera].Status, t.states[media.Microphone].Status)
}

// CanSkip reports whether the skip escape hatch should be offered.
func (t *Tracker) CanSkip() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[media.Camera].Status == Error || t.states[media.Microphone].Status == Error
}

// Gate is the proceed predicate.
func Gate(camera, microphone Status) bool {
	return camera == Success && microphone == Success
}
