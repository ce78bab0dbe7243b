package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modstacker/collection"
	"modstacker/compat"
	"modstacker/logger"
	"modstacker/ui"
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the collection interactively",
	Long:  `Launch an interactive TUI to walk through categories and check individual mods.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		m := newBrowseModel(cmd.Context(), a.store, a.checker)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Log.Errorw("Failed to run browser", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

// browseRow is either a category header or a mod inside it.
type browseRow struct {
	category int
	header   bool
	name     string
	mod      collection.Mod
}

// BrowseModel represents the state of the browser.
type BrowseModel struct {
	ctx           context.Context
	store         *collection.Store
	checker       *compat.Checker
	rows          []browseRow
	versions      []string
	selectedIndex int
	checking      string
	message       string
	width         int
	height        int
	spinnerFrame  int
}

func newBrowseModel(ctx context.Context, store *collection.Store, checker *compat.Checker) BrowseModel {
	m := BrowseModel{
		ctx:     ctx,
		store:   store,
		checker: checker,
		width:   80,
		height:  24,
	}
	m.refresh()
	return m
}

func (m *BrowseModel) refresh() {
	snap := m.store.Snapshot()
	m.versions = snap.TargetVersions
	m.rows = m.rows[:0]
	for ci, cat := range snap.Categories {
		m.rows = append(m.rows, browseRow{category: ci, header: true, name: cat.Name})
		for _, mod := range cat.Mods {
			m.rows = append(m.rows, browseRow{category: ci, mod: mod})
		}
	}
	if m.selectedIndex >= len(m.rows) {
		m.selectedIndex = max(len(m.rows)-1, 0)
	}
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func tickSpinner() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// Update handles messages
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case spinnerTickMsg:
		if m.checking == "" {
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, tickSpinner()
	case modCheckedMsg:
		return m.handleModChecked(msg)
	case clearMessageMsg:
		m.message = ""
	}
	return m, nil
}

func (m BrowseModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case "down", "j":
		if m.selectedIndex < len(m.rows)-1 {
			m.selectedIndex++
		}
	case "r":
		m.refresh()
	case "c":
		if m.checking != "" || len(m.rows) == 0 {
			return m, nil
		}
		row := m.rows[m.selectedIndex]
		if row.header {
			return m, nil
		}
		m.checking = row.mod.Slug
		m.refresh()
		return m, tea.Batch(m.checkMod(row.mod.Slug), tickSpinner())
	}
	return m, nil
}

func (m BrowseModel) handleModChecked(msg modCheckedMsg) (tea.Model, tea.Cmd) {
	m.checking = ""
	m.refresh()
	switch {
	case msg.err != nil:
		m.message = fmt.Sprintf("%s: %v", msg.slug, msg.err)
	case msg.cached:
		m.message = fmt.Sprintf("%s: from cache", msg.slug)
	default:
		m.message = fmt.Sprintf("%s: checked", msg.slug)
	}
	return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearMessageMsg{}
	})
}

func (m BrowseModel) checkMod(slug string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.checker.CheckMod(m.ctx, slug)
		if err == nil {
			err = res.Err
		}
		return modCheckedMsg{slug: slug, cached: res.Cached, err: err}
	}
}

// View renders the UI
func (m BrowseModel) View() string {
	if len(m.rows) == 0 {
		return "No categories yet. Add one with \"modstacker category add\".\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	for i, row := range m.rows {
		b.WriteString(m.renderRow(i, row))
		b.WriteString("\n")
	}

	b.WriteString("\n" + renderFooter())

	if m.checking != "" {
		b.WriteString("\n" + spinnerFrames[m.spinnerFrame] + " Checking " + m.checking + "...")
	} else if m.message != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.message))
	}

	return b.String()
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m BrowseModel) renderHeader() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	return headerStyle.Render(fmt.Sprintf("  %-32s %-12s %s", "Mod", "Sides", strings.Join(m.versions, " ")))
}

func renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)

	return footerStyle.Render("↑/k: up  ↓/j: down  c: check mod  r: refresh  q: quit")
}

func (m BrowseModel) renderRow(index int, row browseRow) string {
	rowStyle := lipgloss.NewStyle().Padding(0, 1)
	if index == m.selectedIndex {
		rowStyle = rowStyle.
			Background(lipgloss.Color("8")).
			Bold(true)
	}

	if row.header {
		return rowStyle.Render(fmt.Sprintf("[%s] (%d)", row.name, m.modsIn(row.category)))
	}

	marks := make([]string, 0, len(m.versions))
	for _, v := range m.versions {
		// Pad to the version width so marks line up under their header.
		marks = append(marks, fmt.Sprintf("%-*s", len(v), ui.Mark(row.mod, v)))
	}
	title := row.mod.Title
	if title == "" {
		title = row.mod.Slug
	}
	return rowStyle.Render(fmt.Sprintf("  %-32s %-12s %s",
		ui.Truncate(title, 32),
		ui.SideBadge(row.mod),
		strings.Join(marks, " "),
	))
}

func (m BrowseModel) modsIn(category int) int {
	n := 0
	for _, r := range m.rows {
		if !r.header && r.category == category {
			n++
		}
	}
	return n
}

// Message types
type spinnerTickMsg struct{}

type clearMessageMsg struct{}

type modCheckedMsg struct {
	slug   string
	cached bool
	err    error
}
