package settings

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeView          Mode = iota // Profile and current settings
	ModeEdit                      // Notification settings form
	ModeConfirmLogout             // Logout confirmation
)

// SaveMsg asks the parent to persist new notification settings.
type SaveMsg struct {
	Notifications model.NotificationsConfig
}

// LogoutMsg asks the parent to end the session.
type LogoutMsg struct{}

var (
	editKey   = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit notifications"))
	logoutKey = key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out"))
)

// Model is the Settings tab.
type Model struct {
	mode     Mode
	keys     *keys.KeyMap
	profile  *model.User
	cfg      model.AppConfig
	identity model.NotificationIdentity

	form          *huh.Form
	formEnabled   *bool
	formProjectID *string
	confirmLogout *bool

	statusMsg string
	width     int
	height    int
}

// New creates the settings view.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:          k,
		formEnabled:   new(bool),
		formProjectID: new(string),
		confirmLogout: new(bool),
		width:         width,
		height:        height,
	}
}

// SetProfile sets the signed-in user shown at the top.
func (m *Model) SetProfile(u *model.User) {
	m.profile = u
}

// SetConfig sets the configuration being displayed.
func (m *Model) SetConfig(cfg model.AppConfig) {
	m.cfg = cfg
}

// SetIdentity sets the push registration state shown to the user.
func (m *Model) SetIdentity(id model.NotificationIdentity) {
	m.identity = id
}

// SetStatus shows a transient message.
func (m *Model) SetStatus(text string) {
	m.statusMsg = text
}

// Editing reports whether a form has keyboard focus.
func (m Model) Editing() bool {
	return m.mode != ModeView
}

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeEdit, ModeConfirmLogout:
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, editKey):
			return m, m.startEdit()
		case key.Matches(msg, logoutKey):
			return m, m.startLogout()
		}
	}
	return m, nil
}

func (m *Model) startEdit() tea.Cmd {
	m.mode = ModeEdit
	m.statusMsg = ""
	*m.formEnabled = m.cfg.Notifications.Enabled
	*m.formProjectID = m.cfg.Notifications.ProjectID
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Push notifications").
				Description("Register this device for push notifications at login").
				Affirmative("On").
				Negative("Off").
				Value(m.formEnabled),
			huh.NewInput().
				Title("Project ID").
				Placeholder("push project identifier").
				Value(m.formProjectID),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

func (m *Model) startLogout() tea.Cmd {
	m.mode = ModeConfirmLogout
	*m.confirmLogout = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Log out?").
				Description("Your saved session on this machine will be removed.").
				Affirmative("Yes, log out").
				Negative("Cancel").
				Value(m.confirmLogout),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		m.mode = ModeView
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.mode = ModeView
		m.form = nil
		return m, nil

	case huh.StateCompleted:
		mode := m.mode
		m.mode = ModeView
		m.form = nil
		if mode == ModeConfirmLogout {
			if !*m.confirmLogout {
				return m, nil
			}
			return m, func() tea.Msg { return LogoutMsg{} }
		}
		n := model.NotificationsConfig{
			Enabled:   *m.formEnabled,
			ProjectID: strings.TrimSpace(*m.formProjectID),
		}
		return m, func() tea.Msg { return SaveMsg{Notifications: n} }
	}
	return m, cmd
}

// View renders the settings view.
func (m Model) View() string {
	if m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}

	label := lipgloss.NewStyle().Foreground(theme.ColorGray)
	row := func(k, v string) string {
		return label.Render(fmt.Sprintf("%-16s", k+":")) + " " + v
	}

	var lines []string
	lines = append(lines, theme.TitleStyle.Render("Profile"))
	if m.profile != nil {
		lines = append(lines,
			row("Name", m.profile.DisplayName()),
			row("Email", m.profile.Email),
			row("Role", strings.ReplaceAll(string(m.profile.Role), "_", " ")),
		)
		if m.profile.Department != "" {
			lines = append(lines, row("Department", m.profile.Department))
		}
	}

	push := "off"
	if m.cfg.Notifications.Enabled {
		push = "on"
	}
	registered := "not registered"
	if tok := m.identity.TokenValue(); tok != "" {
		registered = "registered"
	} else if m.identity.LastError != "" {
		registered = "not registered (" + strings.ReplaceAll(m.identity.LastError, "_", " ") + ")"
	}

	lines = append(lines, "", theme.TitleStyle.Render("Application"),
		row("Server", m.cfg.API.BaseURL),
		row("Notifications", push),
		row("Device", registered),
	)

	if m.statusMsg != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(theme.ColorGreen).Render(m.statusMsg))
	}

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 20)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Hints returns the key hints for the settings view.
func (m Model) Hints() string {
	if m.form != nil {
		return "enter confirm | esc cancel"
	}
	return "e edit notifications | L log out | tab next tab"
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 80)
}
