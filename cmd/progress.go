package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type phaseMsg string

type progressMsg struct {
	scanned int64
	emitted int64
}

type diffDoneMsg struct {
	err error
}

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	progressInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Margin(0, 2)
)

// progressModel renders a lightweight status display on stderr while the
// comparison runs. It never touches stdout, which may carry the report.
type progressModel struct {
	config    *Config
	cancel    context.CancelFunc
	spinner   spinner.Model
	phase     string
	scanned   int64
	emitted   int64
	startTime time.Time
	cancelled bool
	done      bool
	err       error
}

func newProgressModel(cancel context.CancelFunc, config *Config) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return progressModel{
		config:    config,
		cancel:    cancel,
		spinner:   s,
		phase:     "Starting comparison...",
		startTime: time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case phaseMsg:
		m.phase = string(msg)
		return m, nil
	case progressMsg:
		m.scanned = msg.scanned
		m.emitted = msg.emitted
		return m, nil
	case diffDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || msg.String() == "q" {
		// Cancel the run and let the worker goroutine finish; it will
		// send diffDoneMsg which quits the program.
		m.cancelled = true
		m.phase = "Cancelling..."
		m.cancel()
		return m, nil
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	var sections []string
	sections = append(sections, "")
	sections = append(sections, stageStyle.Render(
		fmt.Sprintf("🔍 Comparing %s and %s", m.config.Table1, m.config.Table2)))
	sections = append(sections, "")
	sections = append(sections, fmt.Sprintf("  %s %s", m.spinner.View(), m.phase))

	if m.scanned > 0 {
		sections = append(sections, progressInfoStyle.Render(
			fmt.Sprintf("%d rows scanned, %d diff records (%s)",
				m.scanned, m.emitted, time.Since(m.startTime).Round(time.Second))))
	}

	sections = append(sections, "")
	if m.cancelled {
		sections = append(sections, helpStyle.Render("   Cancelling, waiting for the engine to stop..."))
	} else {
		sections = append(sections, helpStyle.Render("   Press Ctrl+C or 'q' to cancel"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
