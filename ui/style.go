package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"modstacker/collection"
)

var (
	supportedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unsupportedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Marks shown in matrix cells.
const (
	MarkSupported   = "✓"
	MarkUnsupported = "✗"
	MarkUnchecked   = "·"
	MarkChecking    = "…"
)

// Mark returns the cell mark for mod m and target version v.
func Mark(m collection.Mod, v string) string {
	switch m.State() {
	case collection.Checking:
		return MarkChecking
	case collection.Unchecked:
		return MarkUnchecked
	}
	if m.Versions[v] {
		return MarkSupported
	}
	return MarkUnsupported
}

func styleMark(mark string) string {
	switch mark {
	case MarkSupported:
		return supportedStyle.Render(mark)
	case MarkUnsupported:
		return unsupportedStyle.Render(mark)
	default:
		return pendingStyle.Render(mark)
	}
}

// SideBadge renders a short client/server badge such as "C:req S:opt".
func SideBadge(m collection.Mod) string {
	return fmt.Sprintf("C:%s S:%s", sideAbbrev(m.ClientSide), sideAbbrev(m.ServerSide))
}

func sideAbbrev(s collection.Side) string {
	switch s {
	case collection.SideRequired:
		return "req"
	case collection.SideOptional:
		return "opt"
	case collection.SideUnsupported:
		return "—"
	case "":
		return "?"
	default:
		return "unk"
	}
}

// Truncate shortens s to at most n runes, ending in "…" when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
