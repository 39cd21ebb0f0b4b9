package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Danondso/precall/internal/devicetest"
	"github.com/Danondso/precall/internal/media"
	"github.com/Danondso/precall/internal/media/mediatest"
	"github.com/Danondso/precall/internal/prefs"
)

type memPrefs struct {
	mu    sync.Mutex
	rec   prefs.Record
	saves int
}

func (p *memPrefs) Load() (prefs.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, nil
}

func (p *memPrefs) Save(partial prefs.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = p.rec.Merge(partial)
	p.saves++
	return nil
}

func testDevices() []media.Device {
	return []media.Device{
		{ID: "cam-1", Label: "Integrated Camera", Kind: media.Camera},
		{ID: "mic-1", Label: "USB Mic", Kind: media.Microphone},
		{ID: "spk-1", Label: "Speakers", Kind: media.Speaker},
	}
}

func testEngineOptions(store devicetest.PrefStore) devicetest.Options {
	return devicetest.Options{
		Timings: devicetest.Timings{
			Debounce:        10 * time.Millisecond,
			RefreshDebounce: 10 * time.Millisecond,
			Settle:          time.Millisecond,
			RetryDelay:      time.Millisecond,
			AttachRetry:     time.Millisecond,
			LevelInterval:   5 * time.Millisecond,
		},
		Prefs:  store,
		Logger: log.New(io.Discard, "", 0),
	}
}

func TestHeadlessCheckPasses(t *testing.T) {
	store := &memPrefs{}
	var out bytes.Buffer
	err := headlessCheck(context.Background(), &out, mediatest.New(testDevices()...), testEngineOptions(store), headlessOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("expected check to pass, got %v\n%s", err, out.String())
	}
	requireContains(t, out.String(), "Integrated Camera")
	requireContains(t, out.String(), "success")
	requireContains(t, out.String(), "Device choices saved.")

	rec, _ := store.Load()
	if rec.CameraID != "cam-1" || rec.MicID != "mic-1" || rec.SpeakerID != "spk-1" {
		t.Errorf("unexpected saved record: %+v", rec)
	}
}

func TestHeadlessCheckFailsWithoutCamera(t *testing.T) {
	devices := testDevices()[1:]
	var out bytes.Buffer
	err := headlessCheck(context.Background(), &out, mediatest.New(devices...), testEngineOptions(&memPrefs{}), headlessOptions{Timeout: 5 * time.Second})
	if !errors.Is(err, devicetest.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	requireContains(t, out.String(), "Warning:")
	requireContains(t, out.String(), "error")
}

func TestHeadlessToneWithoutPlayer(t *testing.T) {
	var out bytes.Buffer
	err := headlessCheck(context.Background(), &out, mediatest.New(testDevices()...), testEngineOptions(&memPrefs{}), headlessOptions{Timeout: 5 * time.Second, PlayTone: true})
	if err != nil {
		t.Fatalf("speaker failure must not close the gate: %v", err)
	}
	if !strings.Contains(out.String(), "Speaker") {
		t.Errorf("expected speaker row, got:\n%s", out.String())
	}
}

type fakeLister struct {
	devices  []media.Device
	defaults map[media.Kind]string
}

func (l fakeLister) ListDevices(context.Context) ([]media.Device, error) { return l.devices, nil }
func (l fakeLister) DefaultDeviceID(kind media.Kind) string             { return l.defaults[kind] }

func TestListDevicesMarksColumns(t *testing.T) {
	lister := fakeLister{
		devices: []media.Device{
			{ID: "cam-1", Label: "Integrated Camera", Kind: media.Camera},
			{ID: "mic-iphone", Label: "iPhone Microphone", Kind: media.Microphone},
			{ID: "mic-usb", Label: "Blue Yeti", Kind: media.Microphone},
		},
		defaults: map[media.Kind]string{media.Camera: "cam-1"},
	}
	out, err := listDevices(context.Background(), lister, prefs.Record{MicID: "mic-iphone"})
	if err != nil {
		t.Fatal(err)
	}
	marks := map[string]int{}
	for _, line := range strings.Split(out, "\n") {
		for _, id := range []string{"cam-1", "mic-iphone", "mic-usb"} {
			if strings.Contains(line, id) {
				marks[id] = strings.Count(line, "*")
			}
		}
	}
	// cam-1 is default and preferred; the phone mic is only saved because
	// the selector deprioritizes it.
	want := map[string]int{"cam-1": 2, "mic-iphone": 1, "mic-usb": 1}
	for id, n := range want {
		if marks[id] != n {
			t.Errorf("expected %d marks on %s, got %d\n%s", n, id, marks[id], out)
		}
	}
}

func TestListDevicesEmpty(t *testing.T) {
	out, err := listDevices(context.Background(), fakeLister{}, prefs.Record{})
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "No media devices found.")
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}})
	requireContains(t, out, "only")
	requireContains(t, out, "A")
	if renderTable(nil, nil) != "" {
		t.Error("expected empty output without headers")
	}
}
