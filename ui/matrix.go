package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	difflib "github.com/pmezard/go-difflib/difflib"

	"modstacker/collection"
)

const titleWidth = 28

// RenderMatrix draws one table per category: mods down, target versions across.
func RenderMatrix(c collection.Collection) string {
	if len(c.Categories) == 0 {
		return pendingStyle.Render("No categories.") + "\n"
	}

	var b strings.Builder
	headers := append([]string{"Mod", "Sides"}, c.TargetVersions...)
	for _, cat := range c.Categories {
		b.WriteString(categoryStyle.Render(fmt.Sprintf("%s (%d)", cat.Name, len(cat.Mods))))
		b.WriteString("\n")
		if len(cat.Mods) == 0 {
			b.WriteString(pendingStyle.Render("  empty") + "\n\n")
			continue
		}

		rows := make([][]string, 0, len(cat.Mods))
		for _, m := range cat.Mods {
			row := []string{Truncate(displayName(m), titleWidth), SideBadge(m)}
			for _, v := range c.TargetVersions {
				row = append(row, styleMark(Mark(m, v)))
			}
			rows = append(rows, row)
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(pendingStyle).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				s := lipgloss.NewStyle().Padding(0, 1)
				if row == table.HeaderRow {
					return headerStyle.Padding(0, 1)
				}
				if col >= 2 {
					s = s.Align(lipgloss.Center)
				}
				return s
			})
		b.WriteString(t.Render())
		b.WriteString("\n\n")
	}
	return b.String()
}

// PlainMatrix renders the matrix without styling, one line per mod, so two
// renderings can be diffed.
func PlainMatrix(c collection.Collection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "versions: %s\n", strings.Join(c.TargetVersions, " "))
	for _, cat := range c.Categories {
		fmt.Fprintf(&b, "[%s]\n", cat.Name)
		for _, m := range cat.Mods {
			cells := make([]string, 0, len(c.TargetVersions))
			for _, v := range c.TargetVersions {
				cells = append(cells, v+"="+Mark(m, v))
			}
			fmt.Fprintf(&b, "  %s %s\n", m.Slug, strings.Join(cells, " "))
		}
	}
	return b.String()
}

// MatrixDiff returns a unified diff of the plain matrices, or "" when they match.
func MatrixDiff(before, after collection.Collection) string {
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(PlainMatrix(before)),
		B:        difflib.SplitLines(PlainMatrix(after)),
		FromFile: "before",
		ToFile:   "after",
		Context:  1,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}

func displayName(m collection.Mod) string {
	if m.Title != "" {
		return m.Title
	}
	return m.Slug
}
