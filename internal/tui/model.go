package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Danondso/precall/internal/clipboard"
	"github.com/Danondso/precall/internal/config"
	"github.com/Danondso/precall/internal/devicetest"
	"github.com/Danondso/precall/internal/media"
	"github.com/Danondso/precall/internal/readiness"
)

// Checker is the device test engine as the screen drives it.
type Checker interface {
	Snapshot() devicetest.Snapshot
	AudioLevel() float64
	Refresh() error
	SwitchCamera(id string) error
	SwitchMicrophone(id string) error
	SwitchSpeaker(id string) error
	PlayTestTone(ctx context.Context) error
	Complete() (devicetest.Result, error)
	Skip() (devicetest.Result, error)
}

// Messages sent through the Bubble Tea update loop.

// SnapshotMsg carries fresh engine state. The engine's OnChange callback
// sends one per state change.
type SnapshotMsg struct {
	Snapshot devicetest.Snapshot
}

// FinishedMsg reports the outcome of Complete or Skip.
type FinishedMsg struct {
	Result devicetest.Result
	Err    error
}

type toneDoneMsg struct {
	Err error
}

type noticeMsg struct {
	Text string
}

type noticeTimeoutMsg struct{}

type audioLevelTickMsg struct{}

// DebugEntry is a structured debug log entry.
type DebugEntry struct {
	Time     string // e.g. "11:27:53"
	Category string // e.g. "camera", "switch", "prefs"
	Message  string
}

// DebugLogMsg carries a structured debug log entry into the TUI.
type DebugLogMsg struct {
	Entry DebugEntry
}

const maxDebugLines = 50

const toneTimeout = 5 * time.Second

// Model is the Bubble Tea model for the device test screen.
type Model struct {
	Config       *config.Config
	Engine       Checker
	Logger       *log.Logger
	DebugMode    bool
	DebugEntries []DebugEntry
	Snap         devicetest.Snapshot
	AudioLevel   float64
	Notice       string
	TonePlaying  bool
	Result       *devicetest.Result
	ThemeName    string

	copyText func(string) error
}

// NewModel creates a new TUI model over engine.
func NewModel(cfg *config.Config, engine Checker, logger *log.Logger, debug bool) Model {
	theme := LoadTheme(cfg.Theme)
	applyTheme(theme)
	m := Model{
		Config:    cfg,
		Engine:    engine,
		Logger:    logger,
		DebugMode: debug,
		ThemeName: strings.ToLower(theme.Name),
		copyText:  clipboard.CopyText,
	}
	if engine != nil {
		m.Snap = engine.Snapshot()
	}
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return audioLevelTickCmd()
}

// Update handles messages and transitions state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		m.Snap = msg.Snapshot
		return m, nil

	case audioLevelTickMsg:
		if m.Engine != nil && !m.Snap.Done {
			m.AudioLevel = m.Engine.AudioLevel()
			return m, audioLevelTickCmd()
		}
		m.AudioLevel = 0
		return m, nil

	case toneDoneMsg:
		m.TonePlaying = false
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			return m, m.setNotice(fmt.Sprintf("Test tone failed: %v", msg.Err))
		}
		return m, nil

	case FinishedMsg:
		if msg.Err != nil {
			return m, m.setNotice(msg.Err.Error())
		}
		res := msg.Result
		m.Result = &res
		return m, tea.Quit

	case noticeMsg:
		return m, m.setNotice(msg.Text)

	case noticeTimeoutMsg:
		m.Notice = ""

	case DebugLogMsg:
		m.DebugEntries = append(m.DebugEntries, msg.Entry)
		if len(m.DebugEntries) > maxDebugLines {
			m.DebugEntries = m.DebugEntries[len(m.DebugEntries)-maxDebugLines:]
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	if m.Engine == nil || m.Snap.Done {
		return m, nil
	}

	switch msg.String() {
	case "c":
		return m, m.cycleCmd(media.Camera)
	case "m":
		return m, m.cycleCmd(media.Microphone)
	case "s":
		return m, m.cycleCmd(media.Speaker)
	case "t":
		if m.TonePlaying {
			return m, nil
		}
		m.TonePlaying = true
		return m, m.toneCmd()
	case "r":
		return m, m.refreshCmd()
	case "enter":
		if !m.Snap.CanProceed {
			return m, m.setNotice("Camera and microphone must both be working to continue.")
		}
		return m, m.finishCmd(false)
	case "k":
		if !m.Snap.CanSkip {
			return m, nil
		}
		return m, m.finishCmd(true)
	case "y":
		return m, m.copyCmd()
	case "tab":
		theme := NextTheme(m.ThemeName)
		applyTheme(theme)
		m.ThemeName = strings.ToLower(theme.Name)
	}
	return m, nil
}

func (m *Model) setNotice(text string) tea.Cmd {
	m.Notice = text
	return scheduleNoticeTimeout()
}

// cycleCmd selects the next device of kind after the current selection.
// The selector is frozen while that kind is mid-switch.
func (m Model) cycleCmd(kind media.Kind) tea.Cmd {
	if m.Snap.Transitioning[kind] {
		return nil
	}
	id := nextDevice(m.Snap.Devices.Of(kind), m.Snap.Selected.Of(kind))
	if id == "" {
		return nil
	}
	engine := m.Engine
	logger := m.Logger
	return func() tea.Msg {
		var err error
		switch kind {
		case media.Camera:
			err = engine.SwitchCamera(id)
		case media.Microphone:
			err = engine.SwitchMicrophone(id)
		case media.Speaker:
			err = engine.SwitchSpeaker(id)
		}
		if err != nil {
			logger.Printf("switch: %s %s: %v", kind, id, err)
			return noticeMsg{Text: fmt.Sprintf("Could not switch %s: %v", kind, err)}
		}
		return nil
	}
}

func nextDevice(list []media.Device, current string) string {
	if len(list) == 0 {
		return ""
	}
	for i, d := range list {
		if d.ID == current {
			return list[(i+1)%len(list)].ID
		}
	}
	return list[0].ID
}

func (m Model) toneCmd() tea.Cmd {
	engine := m.Engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), toneTimeout)
		defer cancel()
		return toneDoneMsg{Err: engine.PlayTestTone(ctx)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	engine := m.Engine
	return func() tea.Msg {
		if err := engine.Refresh(); err != nil {
			return noticeMsg{Text: fmt.Sprintf("Refresh failed: %v", err)}
		}
		return noticeMsg{Text: "Refreshing devices..."}
	}
}

// finishCmd runs Complete or Skip off the update loop; both wait for
// in-flight device transitions.
func (m Model) finishCmd(skip bool) tea.Cmd {
	engine := m.Engine
	return func() tea.Msg {
		var res devicetest.Result
		var err error
		if skip {
			res, err = engine.Skip()
		} else {
			res, err = engine.Complete()
		}
		return FinishedMsg{Result: res, Err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	text := Diagnostics(m.Snap)
	copyText := m.copyText
	logger := m.Logger
	return func() tea.Msg {
		if copyText == nil {
			return nil
		}
		if err := copyText(text); err != nil {
			logger.Printf("clipboard: %v", err)
			return noticeMsg{Text: fmt.Sprintf("Copy failed: %v", err)}
		}
		return noticeMsg{Text: "Diagnostics copied to clipboard."}
	}
}

// Diagnostics renders a plain-text summary of snap for support requests.
func Diagnostics(snap devicetest.Snapshot) string {
	var b strings.Builder
	for _, kind := range media.Kinds {
		st := snap.States[kind]
		fmt.Fprintf(&b, "%s: %s", kind, st.Status)
		if id := snap.Selected.Of(kind); id != "" {
			label := id
			if d, ok := snap.Devices.Find(kind, id); ok {
				label = fmt.Sprintf("%s (%s)", d.DisplayLabel(), id)
			}
			fmt.Fprintf(&b, " [%s]", label)
		}
		if st.Message != "" {
			fmt.Fprintf(&b, " - %s", st.Message)
		}
		if st.Status == readiness.Error && st.Detail != "" {
			fmt.Fprintf(&b, " (%s)", st.Detail)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %d %s(s) enumerated\n", len(snap.Devices.Of(kind)), kind)
	}
	if snap.Warning != "" {
		fmt.Fprintf(&b, "warning: %s\n", snap.Warning)
	}
	fmt.Fprintf(&b, "can proceed: %v\n", snap.CanProceed)
	return b.String()
}

const noticeTimeout = 4 * time.Second

func scheduleNoticeTimeout() tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return noticeTimeoutMsg{}
	})
}

const audioLevelTickInterval = 100 * time.Millisecond

func audioLevelTickCmd() tea.Cmd {
	return tea.Tick(audioLevelTickInterval, func(time.Time) tea.Msg {
		return audioLevelTickMsg{}
	})
}
