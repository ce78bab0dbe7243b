package cmd

import (
	"context"
	"fmt"
	"strings"

	"modstacker/compat"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type checkProgressMsg struct {
	compat.Progress
}

type checkDoneMsg struct {
	Report compat.Report
}

type checkChannelClosedMsg struct{}

// CheckModel renders CheckAll progress.
type CheckModel struct {
	spinner      spinner.Model
	progressChan chan tea.Msg
	cancel       context.CancelFunc
	versions     []string

	status  string
	current compat.Progress
	report  compat.Report
	done    bool
}

func initialCheckModel(versions []string, cancel context.CancelFunc) CheckModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return CheckModel{
		spinner:      s,
		progressChan: make(chan tea.Msg, 100),
		cancel:       cancel,
		versions:     versions,
		status:       "Starting...",
	}
}

func (m CheckModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForActivity())
}

func (m CheckModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.progressChan
		if !ok {
			return checkChannelClosedMsg{}
		}
		return msg
	}
}

func (m CheckModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.done {
			return m, tea.Quit
		}
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.status = "Cancelling after the current mod..."
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case checkProgressMsg:
		m.current = msg.Progress
		m.status = fmt.Sprintf("Checking %s", msg.Slug)
		return m, m.waitForActivity()

	case checkDoneMsg:
		m.report = msg.Report
		m.done = true
		m.status = "Finished"
		if msg.Report.Err != nil {
			m.status = "Cancelled"
		}
		return m, tea.Quit

	case checkChannelClosedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m CheckModel) View() string {
	var symbol string
	if m.done {
		symbol = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	} else {
		symbol = m.spinner.View()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n %s %s", symbol, m.status)
	if label := m.current.String(); label != "" && !m.done {
		fmt.Fprintf(&b, " [%s]", label)
	}
	b.WriteString("\n\n")

	if failed := m.report.Failed(); len(failed) > 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:") + "\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "  • %s: %v\n", r.Slug, r.Err)
		}
		b.WriteString("\n")
	}

	if m.done && m.report.Total > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(summarize(m.report)) + "\n")
		for _, r := range m.report.Results {
			if r.OK() {
				fmt.Fprintf(&b, "  %s\n", formatResult(r, m.versions))
			}
		}
	}
	return b.String()
}
