// Package devicetest runs the pre-call device check. It enumerates hardware,
// picks default devices, opens and hot-swaps live handles, and derives
// whether the user may proceed.
package devicetest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Danondso/precall/internal/levels"
	"github.com/Danondso/precall/internal/media"
	"github.com/Danondso/precall/internal/prefs"
	"github.com/Danondso/precall/internal/readiness"
	"github.com/Danondso/precall/internal/selector"
	"github.com/Danondso/precall/internal/tracks"
)

var (
	ErrNotReady        = errors.New("camera and microphone are not both working")
	ErrSkipUnavailable = errors.New("skip is only available when the camera or microphone failed")
	ErrClosed          = errors.New("device test is finished")
	ErrUnknownDevice   = errors.New("device is not in the current device list")
)

// maxRetries is the number of automatic acquisition retries per kind.
const maxRetries = 1

// Timings holds the engine's delays. Non-positive fields use the defaults.
type Timings struct {
	Debounce        time.Duration // per-kind switch debounce
	RefreshDebounce time.Duration
	Settle          time.Duration // between release and re-acquire on switch
	RetryDelay      time.Duration // before the automatic acquisition retry
	AttachRetry     time.Duration
	LevelInterval   time.Duration
}

// DefaultTimings returns the production delays.
func DefaultTimings() Timings {
	return Timings{
		Debounce:        300 * time.Millisecond,
		RefreshDebounce: 500 * time.Millisecond,
		Settle:          100 * time.Millisecond,
		RetryDelay:      time.Second,
		AttachRetry:     tracks.DefaultAttachRetryDelay,
		LevelInterval:   levels.DefaultInterval,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	pick := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	return Timings{
		Debounce:        pick(t.Debounce, d.Debounce),
		RefreshDebounce: pick(t.RefreshDebounce, d.RefreshDebounce),
		Settle:          pick(t.Settle, d.Settle),
		RetryDelay:      pick(t.RetryDelay, d.RetryDelay),
		AttachRetry:     pick(t.AttachRetry, d.AttachRetry),
		LevelInterval:   pick(t.LevelInterval, d.LevelInterval),
	}
}

// PrefStore loads and merge-saves device preferences.
type PrefStore interface {
	Load() (prefs.Record, error)
	Save(partial prefs.Record) error
}

// TonePlayer plays the speaker test tone.
type TonePlayer interface {
	PlayTestTone(ctx context.Context) error
}

// Options configures an Engine. Every field is optional.
type Options struct {
	Timings Timings
	Surface media.Surface
	Prefs   PrefStore
	Tone    TonePlayer
	Logger  *log.Logger

	// OnChange receives a snapshot after every state change. It is called
	// from engine goroutines and must not block for long.
	OnChange func(Snapshot)
	// OnComplete is called once, after Complete or Skip.
	OnComplete func(Result)
}

// Selection is the chosen device id per kind.
type Selection struct {
	CameraID     string
	MicrophoneID string
	SpeakerID    string
}

// Of returns the selected id for kind.
func (s Selection) Of(kind media.Kind) string {
	switch kind {
	case media.Camera:
		return s.CameraID
	case media.Microphone:
		return s.MicrophoneID
	case media.Speaker:
		return s.SpeakerID
	}
	return ""
}

func (s *Selection) set(kind media.Kind, id string) {
	switch kind {
	case media.Camera:
		s.CameraID = id
	case media.Microphone:
		s.MicrophoneID = id
	case media.Speaker:
		s.SpeakerID = id
	}
}

func recordFor(kind media.Kind, id string) prefs.Record {
	var rec prefs.Record
	switch kind {
	case media.Camera:
		rec.CameraID = id
	case media.Microphone:
		rec.MicID = id
	case media.Speaker:
		rec.SpeakerID = id
	}
	return rec
}

// Snapshot is the state exposed to the UI.
type Snapshot struct {
	States        map[media.Kind]readiness.State
	Devices       media.DeviceList
	Selected      Selection
	Transitioning map[media.Kind]bool
	// Warning is set when a required kind has no devices at all.
	Warning    string
	CanProceed bool
	CanSkip    bool
	AudioLevel float64
	Done       bool
}

// Result is handed to OnComplete.
type Result struct {
	Selection Selection
	Skipped   bool
	States    map[media.Kind]readiness.State
}

// Engine coordinates the device check. Create one with New, call Start, and
// Close it when the screen goes away.
type Engine struct {
	provider media.Provider
	opts     Options
	timings  Timings
	monitor  *levels.Monitor
	tracks   *tracks.Manager
	tracker  *readiness.Tracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	enumMu sync.Mutex // one enumeration pass at a time
	camOp  sync.Mutex // one camera transition at a time
	micOp  sync.Mutex // one microphone transition at a time

	switchDebounce  map[media.Kind]*Debouncer
	refreshDebounce *Debouncer
	watchOnce       sync.Once

	mu            sync.Mutex
	devices       media.DeviceList
	selected      Selection
	transitioning map[media.Kind]bool
	retries       map[media.Kind]int
	warning       string
	unwatch       func()
	done          bool
	closed        bool
}

// New creates an Engine over provider.
func New(provider media.Provider, opts Options) *Engine {
	timings := opts.Timings.withDefaults()
	monitor := levels.New(timings.LevelInterval, nil)
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		provider: provider,
		opts:     opts,
		timings:  timings,
		monitor:  monitor,
		tracks:   tracks.NewManager(provider, monitor, timings.AttachRetry, opts.Logger),
		tracker:  readiness.New(),
		ctx:      ctx,
		cancel:   cancel,
		switchDebounce: map[media.Kind]*Debouncer{
			media.Camera:     NewDebouncer(timings.Debounce),
			media.Microphone: NewDebouncer(timings.Debounce),
		},
		refreshDebounce: NewDebouncer(timings.RefreshDebounce),
		transitioning:   make(map[media.Kind]bool),
		retries:         make(map[media.Kind]int),
	}
}

// Start subscribes to hot-plug notifications and runs the first
// enumeration pass. It returns once every kind has settled.
func (e *Engine) Start(ctx context.Context) error {
	if !e.enter() {
		return ErrClosed
	}
	defer e.leave()
	ctx, release := e.bind(ctx)
	defer release()

	e.watchOnce.Do(func() {
		cancel := e.provider.OnDeviceChange(e.onDeviceChange)
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			cancel()
			return
		}
		e.unwatch = cancel
		e.mu.Unlock()
	})
	e.enumerate(ctx)
	return nil
}

// Enumerate runs an enumeration pass immediately.
func (e *Engine) Enumerate(ctx context.Context) error {
	if !e.enter() {
		return ErrClosed
	}
	defer e.leave()
	ctx, release := e.bind(ctx)
	defer release()

	e.enumerate(ctx)
	return nil
}

// Refresh schedules a re-enumeration; rapid calls collapse into one.
func (e *Engine) Refresh() error {
	if e.finished() {
		return ErrClosed
	}
	e.logf("enumerate: refresh requested")
	e.refreshDebounce.Trigger(func() { e.run(e.enumerate) })
	return nil
}

func (e *Engine) onDeviceChange() {
	e.logf("hotplug: device change, re-enumerating")
	go e.run(e.enumerate)
}

func (e *Engine) enumerate(ctx context.Context) {
	e.enumMu.Lock()
	defer e.enumMu.Unlock()
	e.camOp.Lock()
	defer e.camOp.Unlock()
	e.micOp.Lock()
	defer e.micOp.Unlock()

	e.mu.Lock()
	e.retries = make(map[media.Kind]int)
	e.warning = ""
	e.mu.Unlock()
	e.tracker.Reset()
	e.notify()

	// Stale handles never survive a re-enumeration.
	e.tracks.ReleaseAll()

	list, err := e.provider.ListDevices(ctx)
	if err != nil {
		e.logf("enumerate: list devices: %v", err)
		de := media.AsDeviceError(err, media.Camera, "")
		e.tracker.Fail(media.Camera, err)
		e.tracker.Fail(media.Microphone, err)
		e.tracker.Succeed(media.Speaker, "Using the system default output")
		e.mu.Lock()
		e.devices = media.DeviceList{}
		e.warning = "Could not list media devices. " + de.Message()
		e.mu.Unlock()
		e.notify()
		return
	}

	devices := media.Classify(list)
	e.logf("enumerate: %d cameras, %d microphones, %d speakers",
		len(devices.Cameras), len(devices.Microphones), len(devices.Speakers))
	saved := e.loadPrefs()

	var sel Selection
	if len(devices.Speakers) > 0 {
		sel.SpeakerID = selector.PickWithPreference(devices.Speakers, saved.SpeakerID, selector.PickDefaultSpeaker(devices.Speakers))
		e.tracker.Succeed(media.Speaker, "Ready. Play the test tone to check your speakers")
	} else {
		e.tracker.Succeed(media.Speaker, "Using the system default output")
	}

	var warnings []string
	for _, kind := range []media.Kind{media.Camera, media.Microphone} {
		if len(devices.Of(kind)) > 0 {
			continue
		}
		e.tracker.Fail(kind, &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: kind, Err: fmt.Errorf("no %s detected", kind)})
		warnings = append(warnings, fmt.Sprintf("No %s detected.", kind))
	}
	if len(warnings) > 0 {
		warnings = append(warnings, "Connect the missing hardware and refresh.")
	}

	e.mu.Lock()
	e.devices = devices
	e.selected = sel
	e.warning = strings.Join(warnings, " ")
	e.mu.Unlock()
	e.notify()

	var wg sync.WaitGroup
	var okMu sync.Mutex
	ok := make(map[media.Kind]bool)
	for _, kind := range []media.Kind{media.Camera, media.Microphone} {
		candidates := devices.Of(kind)
		if len(candidates) == 0 {
			continue
		}
		wg.Add(1)
		go func(kind media.Kind, candidates []media.Device) {
			defer wg.Done()
			id := e.pickInitial(ctx, kind, candidates, saved)
			e.mu.Lock()
			e.selected.set(kind, id)
			e.mu.Unlock()
			up := e.bringUp(ctx, kind, id)
			okMu.Lock()
			ok[kind] = up
			okMu.Unlock()
		}(kind, candidates)
	}
	wg.Wait()

	if !ok[media.Camera] && !ok[media.Microphone] {
		return
	}
	e.mu.Lock()
	final := e.selected
	e.mu.Unlock()
	rec := prefs.Record{SpeakerID: final.SpeakerID}
	if ok[media.Camera] {
		rec.CameraID = final.CameraID
	}
	if ok[media.Microphone] {
		rec.MicID = final.MicrophoneID
	}
	e.savePrefs(rec)
}

// pickInitial prefers a saved device that is still present. Otherwise it
// learns the platform default with a throwaway handle and applies the
// selector heuristics.
func (e *Engine) pickInitial(ctx context.Context, kind media.Kind, candidates []media.Device, saved prefs.Record) string {
	savedID := saved.CameraID
	if kind == media.Microphone {
		savedID = saved.MicID
	}
	if savedID != "" {
		for _, d := range candidates {
			if d.ID == savedID {
				e.logf("%s: using saved device %q", kind, savedID)
				return savedID
			}
		}
		e.logf("%s: saved device %q is gone", kind, savedID)
	}

	platformDefault, err := e.tracks.DiscoverDefault(ctx, kind)
	if err != nil {
		e.logf("%s: default discovery failed: %v", kind, err)
	}
	var id string
	if kind == media.Camera {
		id = selector.PickDefaultCamera(candidates, platformDefault)
	} else {
		id = selector.PickPreferredMicrophone(candidates, platformDefault)
	}
	e.logf("%s: picked %q (platform default %q)", kind, id, platformDefault)
	return id
}

// bringUp acquires and attaches id, updating the kind's status. The
// caller holds the kind's op lock.
func (e *Engine) bringUp(ctx context.Context, kind media.Kind, id string) bool {
	e.tracker.Testing(kind, fmt.Sprintf("Starting %s...", kind))
	e.notify()

	t, err := e.acquireWithRetry(ctx, kind, id)
	if err != nil {
		e.logf("%s: giving up on %q: %v", kind, id, err)
		e.tracker.Fail(kind, err)
		e.notify()
		return false
	}
	if err := e.tracks.Attach(ctx, t, e.opts.Surface); err != nil {
		e.logf("%s: attach %q: %v", kind, id, err)
		e.tracks.ReleaseTrack(t)
		e.tracker.Fail(kind, err)
		e.notify()
		return false
	}

	e.tracker.Succeed(kind, fmt.Sprintf("%s working: %s", kind.Title(), e.labelOf(kind, t)))
	e.notify()
	return true
}

func (e *Engine) acquireWithRetry(ctx context.Context, kind media.Kind, id string) (media.Track, error) {
	for {
		t, err := e.acquire(ctx, kind, id)
		if err == nil {
			return t, nil
		}
		e.mu.Lock()
		retry := e.retries[kind] < maxRetries
		if retry {
			e.retries[kind]++
		}
		e.mu.Unlock()
		if !retry {
			return nil, err
		}

		e.logf("%s: acquire %q failed, retrying in %s: %v", kind, id, e.timings.RetryDelay, err)
		e.tracker.Testing(kind, "Retrying...")
		e.notify()
		if serr := sleep(ctx, e.timings.RetryDelay); serr != nil {
			return nil, err
		}
	}
}

func (e *Engine) acquire(ctx context.Context, kind media.Kind, id string) (media.Track, error) {
	switch kind {
	case media.Camera:
		t, err := e.tracks.AcquireVideo(ctx, id)
		if err != nil {
			return nil, err
		}
		return t, nil
	case media.Microphone:
		t, err := e.tracks.AcquireAudio(ctx, id)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("cannot acquire %s", kind)
}

func (e *Engine) labelOf(kind media.Kind, t media.Track) string {
	e.mu.Lock()
	d, ok := e.devices.Find(kind, t.Settings().DeviceID)
	e.mu.Unlock()
	if ok {
		return d.DisplayLabel()
	}
	return media.Device{ID: t.Settings().DeviceID, Label: t.Settings().Label, Kind: kind}.DisplayLabel()
}

// SwitchCamera hot-swaps the camera to id after the debounce window.
func (e *Engine) SwitchCamera(id string) error {
	return e.requestSwitch(media.Camera, id)
}

// SwitchMicrophone hot-swaps the microphone to id after the debounce
// window.
func (e *Engine) SwitchMicrophone(id string) error {
	return e.requestSwitch(media.Microphone, id)
}

func (e *Engine) requestSwitch(kind media.Kind, id string) error {
	e.mu.Lock()
	if e.closed || e.done {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.devices.Has(kind, id) {
		e.mu.Unlock()
		return fmt.Errorf("%s %q: %w", kind, id, ErrUnknownDevice)
	}
	e.selected.set(kind, id)
	e.mu.Unlock()

	e.logf("switch: %s -> %q requested", kind, id)
	e.notify()
	e.switchDebounce[kind].Trigger(func() {
		e.run(func(ctx context.Context) { e.runSwitch(ctx, kind, id) })
	})
	return nil
}

func (e *Engine) runSwitch(ctx context.Context, kind media.Kind, id string) {
	lk := e.opLock(kind)
	lk.Lock()
	defer lk.Unlock()

	e.mu.Lock()
	if e.done || e.closed || e.selected.Of(kind) != id {
		e.mu.Unlock()
		e.logf("switch: %s -> %q superseded", kind, id)
		return
	}
	e.transitioning[kind] = true
	e.retries[kind] = 0
	e.mu.Unlock()
	e.notify()
	defer func() {
		e.mu.Lock()
		e.transitioning[kind] = false
		e.mu.Unlock()
		e.notify()
	}()

	e.logf("switch: %s releasing current handle", kind)
	e.tracks.Release(kind)
	if err := sleep(ctx, e.timings.Settle); err != nil {
		return
	}
	if e.bringUp(ctx, kind, id) {
		e.savePrefs(recordFor(kind, id))
		e.logf("switch: %s now %q", kind, id)
	}
}

// SwitchSpeaker records the chosen output device. There is no hardware
// step; the tone test verifies it.
func (e *Engine) SwitchSpeaker(id string) error {
	e.mu.Lock()
	if e.closed || e.done {
		e.mu.Unlock()
		return ErrClosed
	}
	d, ok := e.devices.Find(media.Speaker, id)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("speaker %q: %w", id, ErrUnknownDevice)
	}
	e.selected.SpeakerID = id
	e.mu.Unlock()

	e.logf("switch: speaker -> %q", id)
	e.tracker.Succeed(media.Speaker, fmt.Sprintf("Selected %s. Play the test tone to check it", d.DisplayLabel()))
	e.savePrefs(prefs.Record{SpeakerID: id})
	e.notify()
	return nil
}

// PlayTestTone plays the speaker test tone and records the outcome.
func (e *Engine) PlayTestTone(ctx context.Context) error {
	if !e.enter() {
		return ErrClosed
	}
	defer e.leave()
	ctx, release := e.bind(ctx)
	defer release()

	if e.opts.Tone == nil {
		err := &media.DeviceError{Kind: media.ErrTonePlaybackFailed, Device: media.Speaker, Err: errors.New("no audio output configured")}
		e.tracker.Fail(media.Speaker, err)
		e.notify()
		return err
	}

	prev := e.tracker.Get(media.Speaker)
	e.tracker.Testing(media.Speaker, "Playing test tone...")
	e.notify()

	err := e.opts.Tone.PlayTestTone(ctx)
	switch {
	case err == nil:
		e.tracker.Succeed(media.Speaker, "Test tone played. Did you hear it?")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		e.tracker.Restore(media.Speaker, prev)
	default:
		e.logf("tone: %v", err)
		e.tracker.Fail(media.Speaker, err)
	}
	e.notify()
	return err
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	snap := Snapshot{
		Devices:       e.devices,
		Selected:      e.selected,
		Warning:       e.warning,
		Done:          e.done,
		Transitioning: make(map[media.Kind]bool, len(e.transitioning)),
	}
	for k, v := range e.transitioning {
		snap.Transitioning[k] = v
	}
	e.mu.Unlock()

	snap.States = e.tracker.All()
	cam := snap.States[media.Camera].Status
	mic := snap.States[media.Microphone].Status
	snap.CanProceed = readiness.Gate(cam, mic)
	snap.CanSkip = cam == readiness.Error || mic == readiness.Error
	snap.AudioLevel = e.monitor.Level()
	return snap
}

// AudioLevel returns the live microphone level in [0, 1].
func (e *Engine) AudioLevel() float64 {
	return e.monitor.Level()
}

// Live returns the number of live hardware handles of kind.
func (e *Engine) Live(kind media.Kind) int {
	return e.tracks.Live(kind)
}

// Complete confirms readiness. It persists the final selection, releases
// hardware and invokes OnComplete.
func (e *Engine) Complete() (Result, error) {
	if !e.tracker.CanProceed() {
		return Result{}, ErrNotReady
	}
	return e.finish(false)
}

// Skip leaves without a working camera or microphone. It is only allowed
// when one of them failed.
func (e *Engine) Skip() (Result, error) {
	if !e.tracker.CanSkip() {
		return Result{}, ErrSkipUnavailable
	}
	return e.finish(true)
}

func (e *Engine) finish(skipped bool) (Result, error) {
	e.mu.Lock()
	if e.closed || e.done {
		e.mu.Unlock()
		return Result{}, ErrClosed
	}
	e.done = true
	e.mu.Unlock()
	e.cancelPending()

	// Wait out any in-flight transition before releasing.
	e.camOp.Lock()
	e.micOp.Lock()
	states := e.tracker.All()
	e.mu.Lock()
	sel := e.selected
	e.mu.Unlock()
	e.tracks.ReleaseAll()
	e.micOp.Unlock()
	e.camOp.Unlock()

	rec := prefs.Record{SpeakerID: sel.SpeakerID}
	if states[media.Camera].Status == readiness.Success {
		rec.CameraID = sel.CameraID
	}
	if states[media.Microphone].Status == readiness.Success {
		rec.MicID = sel.MicrophoneID
	}
	e.savePrefs(rec)

	res := Result{Selection: sel, Skipped: skipped, States: states}
	e.logf("enumerate: finished (skipped=%v) camera=%q microphone=%q speaker=%q",
		skipped, sel.CameraID, sel.MicrophoneID, sel.SpeakerID)
	e.notify()
	if e.opts.OnComplete != nil {
		e.opts.OnComplete(res)
	}
	return res, nil
}

// Close cancels pending work, waits for in-flight operations and releases
// every handle. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	unwatch := e.unwatch
	e.unwatch = nil
	e.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	e.cancelPending()
	e.cancel()
	e.wg.Wait()
	e.tracks.ReleaseAll()
	return nil
}

func (e *Engine) cancelPending() {
	e.refreshDebounce.Cancel()
	for _, d := range e.switchDebounce {
		d.Cancel()
	}
}

func (e *Engine) opLock(kind media.Kind) *sync.Mutex {
	if kind == media.Camera {
		return &e.camOp
	}
	return &e.micOp
}

// enter registers an in-flight operation. It fails once the engine is
// finished or closed.
func (e *Engine) enter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.done {
		return false
	}
	e.wg.Add(1)
	return true
}

func (e *Engine) leave() { e.wg.Done() }

func (e *Engine) finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || e.done
}

// run executes fn as a tracked background operation.
func (e *Engine) run(fn func(context.Context)) {
	if !e.enter() {
		return
	}
	defer e.leave()
	fn(e.ctx)
}

// bind derives a context that is also cancelled by Close.
func (e *Engine) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *Engine) notify() {
	if e.opts.OnChange != nil {
		e.opts.OnChange(e.Snapshot())
	}
}

func (e *Engine) loadPrefs() prefs.Record {
	if e.opts.Prefs == nil {
		return prefs.Record{}
	}
	rec, err := e.opts.Prefs.Load()
	if err != nil {
		e.logf("prefs: load: %v", err)
		return prefs.Record{}
	}
	return rec
}

func (e *Engine) savePrefs(rec prefs.Record) {
	if e.opts.Prefs == nil || rec.IsEmpty() {
		return
	}
	if err := e.opts.Prefs.Save(rec); err != nil {
		e.logf("prefs: save: %v", err)
		return
	}
	e.logf("prefs: saved camera=%q mic=%q speaker=%q", rec.CameraID, rec.MicID, rec.SpeakerID)
}

func (e *Engine) logf(format string, args ...any) {
	if e.opts.Logger != nil {
		e.opts.Logger.Printf(format, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
