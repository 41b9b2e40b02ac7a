package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/logger"
	"nexus-mod-manager/ui"
)

// guiCmd represents the gui command
var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Launch the interactive mod list",
	Long:  `Launch an interactive TUI to view, install and uninstall registered mods.`,
	Run: func(_ *cobra.Command, _ []string) {
		runGUI()
	},
}

func init() {
	rootCmd.AddCommand(guiCmd)
}

// ModRow is one line of the interactive mod list
type ModRow struct {
	Mod      db.Mod
	GameName string
	Color    int
}

// Model represents the state of the TUI
type Model struct {
	app           *App
	rows          []ModRow
	selectedIndex int
	loading       bool
	working       bool
	workingVerb   string
	message       string
	notes         []string
	noteChan      chan string
	width         int
	height        int
	spinnerFrame  int
}

// Initialize the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadRows(),
		tickSpinner(),
		m.waitForNote(),
	)
}

func tickSpinner() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case rowsLoadedMsg:
		m.handleRowsLoaded(msg)
	case spinnerTickMsg:
		return m.handleSpinnerTick()
	case workDoneMsg:
		return m.handleWorkDone(msg)
	case busNoteMsg:
		m.notes = append(m.notes, string(msg))
		if len(m.notes) > 5 {
			m.notes = m.notes[len(m.notes)-5:]
		}
		return m, m.waitForNote()
	case clearMessageMsg:
		m.message = ""
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.working {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

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
		m.loading = true
		return m, tea.Batch(m.loadRows(), tickSpinner())
	case "i":
		if row, ok := m.currentRow(); ok && !row.Mod.Installed {
			m.working = true
			m.workingVerb = "Installing " + row.Mod.Name
			return m, tea.Batch(m.runInstall(*row), tickSpinner())
		}
	case "x":
		if row, ok := m.currentRow(); ok && row.Mod.Installed {
			m.working = true
			m.workingVerb = "Uninstalling " + row.Mod.Name
			return m, tea.Batch(m.runUninstall(*row), tickSpinner())
		}
	case "u":
		if row, ok := m.currentRow(); ok && row.Mod.Installed {
			m.working = true
			m.workingVerb = "Updating " + row.Mod.Name
			return m, tea.Batch(m.runUpdate(*row), tickSpinner())
		}
	case "a":
		if row, ok := m.currentRow(); ok {
			m.app.Bus.Dispatch(dispatcher.EventActivateMod, dispatcher.NamespaceCore,
				dispatcher.Payload{dispatcher.KeyName: row.Mod.Name})
			m.message = "Requested activation of " + row.Mod.Name
			return m, clearMessageLater()
		}
	case "d":
		if row, ok := m.currentRow(); ok {
			m.app.Bus.Dispatch(dispatcher.EventDeactivateMod, dispatcher.NamespaceCore,
				dispatcher.Payload{dispatcher.KeyName: row.Mod.Name})
			m.message = "Requested deactivation of " + row.Mod.Name
			return m, clearMessageLater()
		}
	case "delete":
		if row, ok := m.currentRow(); ok {
			m.app.Bus.Dispatch(dispatcher.EventDeleteMod, dispatcher.NamespaceCore,
				dispatcher.Payload{dispatcher.KeyName: row.Mod.Name})
			m.message = "Requested deletion of " + row.Mod.Name
			return m, clearMessageLater()
		}
	}
	return m, nil
}

func (m *Model) currentRow() (*ModRow, bool) {
	if len(m.rows) == 0 || m.selectedIndex >= len(m.rows) {
		return nil, false
	}
	return &m.rows[m.selectedIndex], true
}

func (m *Model) handleRowsLoaded(msg rowsLoadedMsg) {
	m.rows = msg.rows
	m.loading = false
	if m.selectedIndex >= len(m.rows) && len(m.rows) > 0 {
		m.selectedIndex = len(m.rows) - 1
	}
}

func (m *Model) handleSpinnerTick() (tea.Model, tea.Cmd) {
	m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
	if m.loading || m.working {
		return m, tickSpinner()
	}
	return m, nil
}

func (m *Model) handleWorkDone(msg workDoneMsg) (tea.Model, tea.Cmd) {
	m.working = false
	m.workingVerb = ""
	m.message = msg.message
	m.loading = true
	return m, tea.Batch(m.loadRows(), tickSpinner(), clearMessageLater())
}

func clearMessageLater() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearMessageMsg{}
	})
}

// View renders the UI
func (m Model) View() string {
	if m.loading {
		return m.renderLoadingScreen()
	}

	if m.working {
		return m.renderWorkingScreen()
	}

	if len(m.rows) == 0 {
		return "No mods registered. Add one with: nexus-mod-manager mod add <game> <name> <archive>\n"
	}

	var output string
	output += renderHeader()
	output += "\n"

	for i, row := range m.rows {
		output += m.renderModRow(i, row)
		output += "\n"
	}

	output += "\n" + renderFooter()

	for _, note := range m.notes {
		output += "\n" + note
	}
	if m.message != "" {
		output += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.message)
	}

	return output
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m Model) renderLoadingScreen() string {
	spinner := spinnerFrames[m.spinnerFrame]

	loadingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	return loadingStyle.Render(fmt.Sprintf("%s Loading mods...", spinner)) + "\n"
}

func (m Model) renderWorkingScreen() string {
	spinner := spinnerFrames[m.spinnerFrame]
	workingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	return workingStyle.Render(fmt.Sprintf("%s %s...", spinner, m.workingVerb)) + "\n"
}

func renderHeader() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	return headerStyle.Render(fmt.Sprintf("%-36s %-22s %-12s %-12s", "Mod Name", "Game", "Version", "Status"))
}

func renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)

	return footerStyle.Render("↑/k: up  ↓/j: down  i: install  x: uninstall  u: update  a/d: activate/deactivate  del: delete  r: refresh  q: quit")
}

func (m Model) renderModRow(index int, row ModRow) string {
	rowStyle := lipgloss.NewStyle().Padding(0, 1)
	if index == m.selectedIndex {
		rowStyle = rowStyle.
			Background(lipgloss.Color("8")).
			Bold(true)
	}

	gameName := truncate(row.GameName, 20)
	padded := fmt.Sprintf("%-22s", gameName)
	coloredGame := strings.Replace(padded, gameName, ui.Colorize(gameName, row.Color), 1)

	var statusColor string
	if row.Mod.Installed {
		statusColor = "10" // Green
	} else {
		statusColor = "11" // Yellow
	}
	// Pad the status before coloring to keep the columns aligned
	paddedStatus := fmt.Sprintf("%-12s", ui.StatusBadge(row.Mod.Installed))
	coloredStatus := lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor)).Render(paddedStatus)

	line := fmt.Sprintf("%-36s %s %-12s %s",
		truncate(row.Mod.Name, 34),
		coloredGame,
		truncate(row.Mod.Version, 10),
		coloredStatus,
	)

	return rowStyle.Render(line)
}

// gameColor picks a stable accent color for a game from its code.
func gameColor(code string) int {
	palette := []int{0x00AFFF, 0x04B575, 0xFFAF00, 0xFF5F87, 0xAF87FF, 0x5FD7D7}
	sum := 0
	for _, r := range code {
		sum += int(r)
	}
	return palette[sum%len(palette)]
}

// Message types
type rowsLoadedMsg struct {
	rows []ModRow
}

type spinnerTickMsg struct{}

type workDoneMsg struct {
	message string
}

type clearMessageMsg struct{}

type busNoteMsg string

// Load the mod list over the event bus
func (m Model) loadRows() tea.Cmd {
	return func() tea.Msg {
		games := m.app.requestGames(dispatcher.EventRequestGetAllGames, nil)

		rows := make([]ModRow, 0)
		for _, g := range games {
			mods := m.app.requestMods(dispatcher.EventRequestGetModsForGame,
				dispatcher.Payload{dispatcher.KeyGameID: g.ID})
			for _, mod := range mods {
				rows = append(rows, ModRow{Mod: mod, GameName: g.Name, Color: gameColor(g.Code)})
			}
		}

		sort.Slice(rows, func(i, j int) bool {
			if rows[i].GameName != rows[j].GameName {
				return strings.ToLower(rows[i].GameName) < strings.ToLower(rows[j].GameName)
			}
			return strings.ToLower(rows[i].Mod.Name) < strings.ToLower(rows[j].Mod.Name)
		})
		return rowsLoadedMsg{rows: rows}
	}
}

func (m Model) runInstall(row ModRow) tea.Cmd {
	return func() tea.Msg {
		mod := row.Mod
		if !m.app.Installer.Install(&mod) {
			return workDoneMsg{message: "Install of " + mod.Name + " did not complete"}
		}
		m.app.markInstalled(mod.ID, true)
		return workDoneMsg{message: "Installed " + mod.Name}
	}
}

func (m Model) runUninstall(row ModRow) tea.Cmd {
	return func() tea.Msg {
		mod := row.Mod
		if !m.app.Installer.Uninstall(&mod) {
			return workDoneMsg{message: "Uninstall of " + mod.Name + " did not complete"}
		}
		m.app.markInstalled(mod.ID, false)
		return workDoneMsg{message: "Uninstalled " + mod.Name}
	}
}

func (m Model) runUpdate(row ModRow) tea.Cmd {
	return func() tea.Msg {
		mod := row.Mod
		if !m.app.Installer.Update(&mod) {
			// An update that broke after its uninstall half leaves the
			// mod off the disk; the flag has to follow.
			if fresh := m.app.requestMod(dispatcher.EventRequestGetModByID,
				dispatcher.Payload{dispatcher.KeyModID: mod.ID}); fresh != nil && len(fresh.LinkMap()) == 0 {
				m.app.markInstalled(mod.ID, false)
			}
			return workDoneMsg{message: "Update of " + mod.Name + " did not complete"}
		}
		m.app.markInstalled(mod.ID, true)
		return workDoneMsg{message: "Updated " + mod.Name}
	}
}

// waitForNote blocks until a broadcast subscriber pushes a note for the
// footer. The channel is never closed; the program exits around it.
func (m Model) waitForNote() tea.Cmd {
	return func() tea.Msg {
		return busNoteMsg(<-m.noteChan)
	}
}

// watchBroadcasts feeds installer broadcasts into the footer without
// blocking the installer when the UI is busy.
func watchBroadcasts(bus *dispatcher.Dispatcher) chan string {
	notes := make(chan string, 16)
	for _, event := range []string{
		dispatcher.EventBroadcastModInstallSuccess,
		dispatcher.EventBroadcastModInstallFailed,
		dispatcher.EventBroadcastModUninstalled,
	} {
		bus.Register(dispatcher.Subscription{
			Event:      event,
			Namespace:  dispatcher.NamespaceGlobal,
			Label:      "gui",
			Persistent: true,
			Handler: func(ev dispatcher.Event) (any, error) {
				if mod, ok := ev.Payload[dispatcher.KeyMod].(*db.Mod); ok {
					select {
					case notes <- describeBroadcast(ev.Name, mod):
					default: // the footer is best effort
					}
				}
				return nil, nil
			},
		})
	}
	return notes
}

func runGUI() {
	app := bootstrap()
	defer app.Shutdown()

	m := Model{
		app:      app,
		loading:  true,
		noteChan: watchBroadcasts(app.Bus),
		width:    80,
		height:   24,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Log.Fatalw("Failed to run GUI", zap.Error(err))
	}
}
