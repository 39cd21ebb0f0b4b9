package readiness

import (
	"errors"
	"strings"
	"testing"

	"github.com/Danondso/precall/internal/media"
)

func TestInitialStateIsTesting(t *testing.T) {
	tr := New()
	for _, k := range media.Kinds {
		if got := tr.Get(k).Status; got != Testing {
			t.Errorf("%s: expected testing, got %s", k, got)
		}
	}
	if tr.CanProceed() {
		t.Error("expected gate closed while testing")
	}
}

func TestGateAllCombinations(t *testing.T) {
	all := []Status{Testing, Success, Error}
	for _, cam := range all {
		for _, mic := range all {
			for _, spk := range all {
				tr := New()
				tr.Set(media.Camera, cam, "", "")
				tr.Set(media.Microphone, mic, "", "")
				tr.Set(media.Speaker, spk, "", "")
				want := cam == Success && mic == Success
				if got := tr.CanProceed(); got != want {
					t.Errorf("cam=%s mic=%s spk=%s: CanProceed=%v, want %v", cam, mic, spk, got, want)
				}
			}
		}
	}
}

func TestCanSkipOnlyOnError(t *testing.T) {
	tr := New()
	if tr.CanSkip() {
		t.Error("skip should not be offered while testing")
	}
	tr.Fail(media.Microphone, &media.DeviceError{Kind: media.ErrDeviceBusy, Device: media.Microphone})
	if !tr.CanSkip() {
		t.Error("expected skip offered after microphone error")
	}
	tr.Reset()
	tr.Fail(media.Speaker, errors.New("no output"))
	if tr.CanSkip() {
		t.Error("speaker failures should not offer skip")
	}
}

func TestFailUsesRemediation(t *testing.T) {
	tr := New()
	tr.Fail(media.Camera, &media.DeviceError{Kind: media.ErrPermissionDenied, Device: media.Camera, Err: errors.New("EACCES")})
	st := tr.Get(media.Camera)
	if st.Status != Error {
		t.Fatalf("expected error, got %s", st.Status)
	}
	if st.Message != media.Remediation(media.ErrPermissionDenied) {
		t.Errorf("unexpected message %q", st.Message)
	}
	if st.Detail != "EACCES" {
		t.Errorf("expected raw detail, got %q", st.Detail)
	}
	if st.Reason != media.ErrPermissionDenied {
		t.Errorf("expected permission_denied reason, got %v", st.Reason)
	}

	tr.Fail(media.Microphone, errors.New("mystery"))
	if !strings.Contains(tr.Get(media.Microphone).Message, "mystery") {
		t.Errorf("expected unknown error text in message, got %q", tr.Get(media.Microphone).Message)
	}
	if r := tr.Get(media.Microphone).Reason; r != media.ErrUnknown {
		t.Errorf("expected unknown reason, got %v", r)
	}
}

func TestRestoreKeepsReason(t *testing.T) {
	tr := New()
	tr.Fail(media.Speaker, &media.DeviceError{Kind: media.ErrTonePlaybackFailed, Device: media.Speaker})
	prev := tr.Get(media.Speaker)
	tr.Testing(media.Speaker, "Playing test tone...")
	tr.Restore(media.Speaker, prev)
	if got := tr.Get(media.Speaker); got != prev {
		t.Errorf("expected %+v restored, got %+v", prev, got)
	}
}
