package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	dsio "github.com/matzehuels/domainstack/pkg/io"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

// Styles shared by the commands.
var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorCyan)

	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// statusKind selects the icon and colors of a status line.
type statusKind int

const (
	statusSuccess statusKind = iota
	statusError
	statusWarning
	statusInfo
)

var statusIcons = map[statusKind]struct {
	icon      string
	iconStyle lipgloss.Style
	text      lipgloss.Style
}{
	statusSuccess: {"✓", lipgloss.NewStyle().Foreground(colorGreen), lipgloss.NewStyle()},
	statusError:   {"✗", lipgloss.NewStyle().Foreground(colorRed), lipgloss.NewStyle()},
	statusWarning: {"!", lipgloss.NewStyle().Foreground(colorYellow), lipgloss.NewStyle().Foreground(colorYellow)},
	statusInfo:    {"›", lipgloss.NewStyle().Foreground(colorGray), lipgloss.NewStyle()},
}

func printStatus(kind statusKind, format string, args ...any) {
	st := statusIcons[kind]
	fmt.Println(st.iconStyle.Render(st.icon) + " " + st.text.Render(fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printStatus(statusSuccess, format, args...) }
func printError(format string, args ...any)   { printStatus(statusError, format, args...) }
func printWarning(format string, args ...any) { printStatus(statusWarning, format, args...) }
func printInfo(format string, args ...any)    { printStatus(statusInfo, format, args...) }

// printDetail prints an indented dim line under a status line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints the path an export was written to.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render("→") + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// printStats prints a one-line summary of a run, e.g. "4 layers · 1 stack · cached".
func printStats(layers, stacks int, cached bool) {
	var parts []string
	if layers > 0 {
		parts = append(parts, plural(layers, "layer"))
	}
	if stacks > 0 {
		parts = append(parts, plural(stacks, "stack"))
	}
	if cached {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorGreen).Render("cached"))
	} else {
		parts = append(parts, "fresh")
	}
	fmt.Println("  " + StyleDim.Render(strings.Join(parts, " · ")))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// =============================================================================
// Placement Table
// =============================================================================

// placementTable renders one row per placed layer. reference is the index of
// the anchoring layer, or -1.
func placementTable(layers []dsio.Placement, reference int) string {
	rows := make([][]string, len(layers))
	for i, p := range layers {
		name := p.Name
		if i == reference {
			name += " *"
		}
		rng := "—"
		if p.DataRange != nil {
			rng = fmt.Sprintf("%.3g … %.3g", p.DataRange[0], p.DataRange[1])
			if p.IsLog {
				rng += " (log)"
			}
		}
		rows[i] = []string{strconv.Itoa(i), name, formatInts(p.Shape), formatFloats(p.Scale, "1"), formatFloats(p.Translate, "0"), rng}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Layer", "Shape", "Scale", "Translate", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == reference:
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			case col >= 3:
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
			return lipgloss.NewStyle().Foreground(colorGray)
		}).
		Render()
}

func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, "×")
}

// formatFloats joins v, or returns identity when v is empty.
func formatFloats(v []float64, identity string) string {
	if len(v) == 0 {
		return StyleDim.Render(identity)
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 4, 64)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Utilities
// =============================================================================

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}
