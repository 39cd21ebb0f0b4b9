package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Danondso/precall/internal/media"
	"github.com/Danondso/precall/internal/readiness"
)

// Styles, set by applyTheme.
var (
	titleStyle           lipgloss.Style
	borderStyle          lipgloss.Style
	labelStyle           lipgloss.Style
	deviceStyle          lipgloss.Style
	keyStyle             lipgloss.Style
	hintStyle            lipgloss.Style
	successBadge         lipgloss.Style
	testingBadge         lipgloss.Style
	errorBadge           lipgloss.Style
	bodyStyle            lipgloss.Style
	warningStyle         lipgloss.Style
	debugTitleStyle      lipgloss.Style
	debugRuleStyle       lipgloss.Style
	debugHeaderStyle     lipgloss.Style
	debugTimeStyle       lipgloss.Style
	debugCategoryStyle   lipgloss.Style
	debugMsgStyle        lipgloss.Style
	debugSepStyle        lipgloss.Style
	meterStyle           lipgloss.Style
	meterPeakStyle       lipgloss.Style
	meterLabelStyle      lipgloss.Style
)

func init() {
	applyTheme(themes[defaultTheme])
}

// panelWidth is the total outer width of the main panel.
// borderStyle has: border (1+1) = 2, padding (2+2) = 4, total chrome = 6.
// Width() in lipgloss sets width including padding but excluding border.
const panelWidth = 80
const panelWidthForStyle = panelWidth - 2 // passed to borderStyle.Width()
const panelContentWidth = panelWidth - 6  // actual usable text area

const kindColumnWidth = 12

// View renders the TUI.
func (m Model) View() string {
	var b strings.Builder

	titleText := "  PRECALL  "
	barTotal := panelContentWidth - len(titleText)
	barLeft := barTotal / 2
	barRight := barTotal - barLeft
	title := strings.Repeat("▓", barLeft) + titleText + strings.Repeat("▓", barRight)
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Check your camera, microphone and speaker before joining."))
	b.WriteString("\n\n")

	for _, kind := range media.Kinds {
		b.WriteString(m.renderRow(kind))
		b.WriteString("\n\n")
	}

	if m.Snap.Warning != "" {
		b.WriteString(warningStyle.Width(panelContentWidth).Render("! " + m.Snap.Warning))
		b.WriteString("\n\n")
	}
	if m.Result != nil {
		b.WriteString(successBadge.Render(m.resultText()))
		b.WriteString("\n\n")
	}
	if m.Notice != "" {
		b.WriteString(bodyStyle.Width(panelContentWidth).Render(m.Notice))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderKeys())

	if m.DebugMode || len(m.DebugEntries) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.renderDebugPanel())
	}

	return borderStyle.Width(panelWidthForStyle).Render(b.String())
}

func (m Model) renderRow(kind media.Kind) string {
	st := m.Snap.States[kind]
	var b strings.Builder
	b.WriteString(labelStyle.Width(kindColumnWidth).Render(kind.Title()))
	b.WriteString(m.renderBadge(kind, st))
	if label := m.selectedLabel(kind); label != "" {
		b.WriteString(bodyStyle.Render("  "))
		b.WriteString(deviceStyle.Render(truncate(label, 40)))
	}

	if st.Message != "" {
		b.WriteString("\n")
		b.WriteString(bodyStyle.Width(kindColumnWidth).Render(""))
		b.WriteString(hintStyle.Width(panelContentWidth - kindColumnWidth).Render(st.Message))
	}
	if kind == media.Microphone && st.Status == readiness.Success {
		b.WriteString("\n")
		b.WriteString(bodyStyle.Width(kindColumnWidth).Render(""))
		b.WriteString(m.renderMeter())
	}
	return b.String()
}

func (m Model) renderBadge(kind media.Kind, st readiness.State) string {
	if m.Snap.Transitioning[kind] {
		return testingBadge.Render("● Switching...")
	}
	switch st.Status {
	case readiness.Success:
		return successBadge.Render("● Ready")
	case readiness.Error:
		return errorBadge.Render("● " + errorTitle(st))
	default:
		return testingBadge.Render("● Testing...")
	}
}

func errorTitle(st readiness.State) string {
	switch st.Reason {
	case media.ErrPermissionDenied:
		return "Permission denied"
	case media.ErrDeviceNotFound:
		return "Not found"
	case media.ErrDeviceBusy:
		return "In use"
	case media.ErrAttachFailed:
		return "Preview failed"
	case media.ErrTonePlaybackFailed:
		return "Tone failed"
	default:
		return "Error"
	}
}

func (m Model) selectedLabel(kind media.Kind) string {
	id := m.Snap.Selected.Of(kind)
	if id == "" {
		return ""
	}
	if d, ok := m.Snap.Devices.Find(kind, id); ok {
		return d.DisplayLabel()
	}
	return id
}

func (m Model) resultText() string {
	if m.Result.Skipped {
		return "Continuing without a full device check."
	}
	return "All set. Devices saved for next time."
}

func (m Model) renderKeys() string {
	key := func(k, desc string) string {
		return keyStyle.Render(k) + hintStyle.Render(" "+desc+"  ")
	}
	selector := func(k, desc string, kind media.Kind) string {
		if m.Snap.Transitioning[kind] {
			return hintStyle.Render(k + " " + desc + "  ")
		}
		return key(k, desc)
	}
	var b strings.Builder
	b.WriteString(selector("c", "camera", media.Camera))
	b.WriteString(selector("m", "mic", media.Microphone))
	b.WriteString(selector("s", "speaker", media.Speaker))
	b.WriteString(key("t", "tone"))
	b.WriteString(key("r", "refresh"))
	b.WriteString("\n")
	if m.Snap.CanProceed {
		b.WriteString(key("enter", "continue"))
	} else {
		b.WriteString(hintStyle.Render("enter continue  "))
	}
	if m.Snap.CanSkip {
		b.WriteString(key("k", "skip"))
	}
	b.WriteString(key("y", "copy diagnostics"))
	b.WriteString(key("tab", "theme"))
	b.WriteString(key("q", "quit"))
	return b.String()
}

const debugPanelMaxLines = 5

// Debug table column widths. Row content must fit within panelContentWidth.
const (
	colTimeWidth     = 15
	colCategoryWidth = 10
	colSepWidth      = 3 // " │ "
	colMsgWidth      = panelContentWidth - colTimeWidth - colCategoryWidth - colSepWidth*2
)

func (m Model) renderDebugPanel() string {
	sep := debugSepStyle.Render(" │ ")
	rule := debugRuleStyle.Render(strings.Repeat("─", panelContentWidth))

	var db strings.Builder

	db.WriteString(debugTitleStyle.Render("Debug"))
	db.WriteString("\n")
	db.WriteString(rule)
	db.WriteString("\n")

	db.WriteString(
		debugHeaderStyle.Width(colTimeWidth).Render("TIME") +
			sep +
			debugHeaderStyle.Width(colCategoryWidth).Render("TYPE") +
			sep +
			debugHeaderStyle.Width(colMsgWidth).Render("MESSAGE"))
	db.WriteString("\n")
	db.WriteString(rule)

	entries := m.DebugEntries
	if len(entries) > debugPanelMaxLines {
		entries = entries[len(entries)-debugPanelMaxLines:]
	}
	for _, entry := range entries {
		timeStr := entry.Time
		if len(timeStr) > colTimeWidth {
			timeStr = timeStr[:colTimeWidth]
		}

		cat := entry.Category
		if len(cat) > colCategoryWidth {
			cat = cat[:colCategoryWidth]
		}

		db.WriteString("\n")
		db.WriteString(
			debugTimeStyle.Width(colTimeWidth).Render(timeStr) +
				sep +
				debugCategoryStyle.Width(colCategoryWidth).Render(cat) +
				sep +
				debugMsgStyle.Width(colMsgWidth).Render(truncate(entry.Message, colMsgWidth)))
	}

	return db.String()
}

const meterWidth = 20

// meterPeakLevel is where the input is close enough to clipping that the
// user should back off the microphone gain.
const meterPeakLevel = 0.85

func (m Model) renderMeter() string {
	scaled := math.Sqrt(m.AudioLevel)
	filled := int(math.Round(scaled * float64(meterWidth)))
	filled = max(0, min(filled, meterWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	style := meterStyle
	if m.AudioLevel >= meterPeakLevel {
		style = meterPeakStyle
	}
	return meterLabelStyle.Render("Level  ") + style.Render(bar) +
		meterLabelStyle.Render(fmt.Sprintf(" %3.0f%%", m.AudioLevel*100))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
