package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CheckProgressMsg represents a progress update from the check run
type CheckProgressMsg struct {
	Type    string // "status", "check", "stale", "error", "summary", "done"
	Message string
	ModName string
	Current string
	Latest  string
}

// CheckModel controls the UI for the nexus check command
type CheckModel struct {
	spinner      spinner.Model
	progressChan chan CheckProgressMsg
	app          *App

	// State
	status  string
	stale   []string
	errors  []string
	summary string
	done    bool

	// Counters
	totalChecked int
}

func initialCheckModel(app *App) CheckModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return CheckModel{
		spinner:      s,
		progressChan: make(chan CheckProgressMsg, 100), // Buffer slightly to avoid blocking
		app:          app,
		status:       "Initializing...",
		stale:        []string{},
		errors:       []string{},
	}
}

func (m CheckModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startCheck(),
		m.waitForActivity(),
	)
}

func (m CheckModel) startCheck() tea.Cmd {
	return func() tea.Msg {
		// Run the check in a separate goroutine
		go func() {
			defer close(m.progressChan)
			runCheck(m.app, m.progressChan)
		}()
		return nil
	}
}

func (m CheckModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.progressChan
		if !ok {
			return CheckProgressMsg{Type: "done"}
		}
		return msg
	}
}

func (m CheckModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		// If done, allow any key to exit
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case CheckProgressMsg:
		switch msg.Type {
		case "done":
			m.done = true
			m.status = "Finished"
			return m, tea.Quit

		case "status":
			m.status = msg.Message

		case "check":
			m.status = fmt.Sprintf("Checking %s...", msg.ModName)
			m.totalChecked++

		case "stale":
			m.stale = append(m.stale, fmt.Sprintf("%s  %s -> %s", msg.ModName, msg.Current, msg.Latest))

		case "error":
			m.errors = append(m.errors, fmt.Sprintf("%s: %s", msg.ModName, msg.Message))

		case "summary":
			m.summary = msg.Message
		}

		return m, m.waitForActivity()
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

	s := fmt.Sprintf("\n %s %s\n\n", symbol, m.status)

	if len(m.stale) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("Updates available:") + "\n"
		for _, u := range m.stale {
			s += fmt.Sprintf("  • %s\n", u)
		}
		s += "\n"
	}

	if len(m.errors) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:") + "\n"
		for _, e := range m.errors {
			s += fmt.Sprintf("  • %s\n", e)
		}
		s += "\n"
	}

	if m.done {
		s += lipgloss.NewStyle().Bold(true).Render(m.summary) + "\n"
	}

	return s
}
