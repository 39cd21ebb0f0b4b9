package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Danondso/precall/internal/config"
)

// Theme is the palette of the device check screen, one color per role.
type Theme struct {
	Name       string
	Title      lipgloss.Color
	Frame      lipgloss.Color // border, device kind labels, key names
	Device     lipgloss.Color // selected device label
	Ready      lipgloss.Color
	Pending    lipgloss.Color // testing and switching badges, warnings
	Failed     lipgloss.Color
	Meter      lipgloss.Color
	MeterPeak  lipgloss.Color // meter at or above meterPeakLevel
	Background lipgloss.Color
	Text       lipgloss.Color
	Dimmed     lipgloss.Color // hints, debug panel
}

const defaultTheme = "synthwave"

var themes = map[string]Theme{
	"synthwave": {
		Name:       "Synthwave",
		Title:      "#FF6AC1",
		Frame:      "#00E5FF",
		Device:     "#B388FF",
		Ready:      "#64FFDA",
		Pending:    "#FFAB40",
		Failed:     "#FF8A80",
		Meter:      "#64FFDA",
		MeterPeak:  "#FF6AC1",
		Background: "#1A1A2E",
		Text:       "#E0E0E0",
		Dimmed:     "#666666",
	},
	"everforest": {
		Name:       "Everforest",
		Title:      "#A7C080",
		Frame:      "#7FBBB3",
		Device:     "#D699B6",
		Ready:      "#83C092",
		Pending:    "#DBBC7F",
		Failed:     "#E67E80",
		Meter:      "#A7C080",
		MeterPeak:  "#E69875",
		Background: "#2D353B",
		Text:       "#D3C6AA",
		Dimmed:     "#859289",
	},
	// High contrast for terminals with poor color support.
	"monochrome": {
		Name:       "Monochrome",
		Title:      "#FFFFFF",
		Frame:      "#CCCCCC",
		Device:     "#FFFFFF",
		Ready:      "#FFFFFF",
		Pending:    "#AAAAAA",
		Failed:     "#FF0000",
		Meter:      "#FFFFFF",
		MeterPeak:  "#FF0000",
		Background: "#000000",
		Text:       "#FFFFFF",
		Dimmed:     "#888888",
	},
}

// themeOrder is the tab cycle. Custom themes are appended.
var themeOrder = []string{"synthwave", "everforest", "monochrome"}

// ThemeNames returns every registered theme key in cycle order.
func ThemeNames() []string {
	return themeOrder
}

// LoadTheme returns the theme named name, ignoring case, or the default.
func LoadTheme(name string) Theme {
	if t, ok := themes[strings.ToLower(name)]; ok {
		return t
	}
	return themes[defaultTheme]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) Theme {
	current = strings.ToLower(current)
	for i, name := range themeOrder {
		if name == current {
			return themes[themeOrder[(i+1)%len(themeOrder)]]
		}
	}
	return themes[themeOrder[0]]
}

// RegisterCustomThemes adds config palettes to the cycle. Entries without a
// name or reusing a registered name are skipped.
func RegisterCustomThemes(custom []config.CustomTheme) {
	for _, ct := range custom {
		key := strings.ToLower(ct.Name)
		if key == "" {
			continue
		}
		if _, exists := themes[key]; exists {
			continue
		}
		peak := ct.MeterPeak
		if peak == "" {
			peak = ct.Failed
		}
		themes[key] = Theme{
			Name:       ct.Name,
			Title:      lipgloss.Color(ct.Title),
			Frame:      lipgloss.Color(ct.Frame),
			Device:     lipgloss.Color(ct.Device),
			Ready:      lipgloss.Color(ct.Ready),
			Pending:    lipgloss.Color(ct.Pending),
			Failed:     lipgloss.Color(ct.Failed),
			Meter:      lipgloss.Color(ct.Meter),
			MeterPeak:  lipgloss.Color(peak),
			Background: lipgloss.Color(ct.Background),
			Text:       lipgloss.Color(ct.Text),
			Dimmed:     lipgloss.Color(ct.Dimmed),
		}
		themeOrder = append(themeOrder, key)
	}
}

func applyTheme(t Theme) {
	base := func(fg lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(fg).Background(t.Background)
	}

	titleStyle = base(t.Title).Bold(true).MarginBottom(1)
	borderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Frame).
		Padding(1, 2).
		Background(t.Background)

	labelStyle = base(t.Frame).Bold(true)
	deviceStyle = base(t.Device).Italic(true)
	keyStyle = base(t.Frame).Bold(true)
	hintStyle = base(t.Dimmed)
	bodyStyle = base(t.Text)
	warningStyle = base(t.Pending).Bold(true)

	successBadge = base(t.Ready).Bold(true)
	testingBadge = base(t.Pending).Bold(true)
	errorBadge = base(t.Failed).Bold(true)

	debugTitleStyle = base(t.Dimmed).Bold(true)
	debugRuleStyle = base(t.Dimmed)
	debugHeaderStyle = base(t.Dimmed).Bold(true)
	debugTimeStyle = base(t.Dimmed)
	debugCategoryStyle = base(t.Pending)
	debugMsgStyle = base(t.Dimmed)
	debugSepStyle = base(t.Dimmed).Faint(true)

	meterStyle = base(t.Meter)
	meterPeakStyle = base(t.MeterPeak).Bold(true)
	meterLabelStyle = base(t.Dimmed)
}
