package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	Refresh       Name = "refresh"
	Notifications Name = "notifications"
	NewRequest    Name = "new"
	Settings      Name = "settings"
	Logout        Name = "logout"
	Help          Name = "help"
	Quit          Name = "quit"
)

var names = []Name{Refresh, Notifications, NewRequest, Settings, Logout, Help, Quit}

var aliases = map[string]Name{
	"r":       Refresh,
	"n":       Notifications,
	"notif":   Notifications,
	"q":       Quit,
	"exit":    Quit,
	"signout": Logout,
}

// CommandMsg is emitted when the user executes a known command.
type CommandMsg Name

// UnknownMsg is emitted for input that names no command.
type UnknownMsg string

// Parse resolves input to a command name.
func Parse(input string) (Name, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if n, ok := aliases[s]; ok {
		return n, nil
	}
	for _, n := range names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", input)
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	suggestions := make([]string, len(names))
	for i, n := range names {
		suggestions[i] = string(n)
	}
	ti.SetSuggestions(suggestions)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if raw == "" {
				return m, nil
			}
			name, err := Parse(raw)
			if err != nil {
				return m, func() tea.Msg { return UnknownMsg(raw) }
			}
			return m, func() tea.Msg { return CommandMsg(name) }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	var known []string
	for _, n := range names {
		known = append(known, string(n))
	}
	hint := theme.HelpStyle.Render(strings.Join(known, "  "))

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, "", hint)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
