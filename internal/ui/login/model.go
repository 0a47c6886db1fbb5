// Package login renders the sign-in screen of the Login shell.
package login

import (
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/theme"
)

// SubmitMsg carries the credentials the user entered.
type SubmitMsg struct {
	Email    string
	Password string
}

type formBindings struct {
	email    string
	password string
}

// Model is the login screen.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	busy   bool
	notice string
	width  int
	height int
}

// New creates a login screen.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Init builds a fresh form. The email is kept across attempts.
func (m *Model) Init() tea.Cmd {
	m.fb.password = ""
	m.busy = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("name@school.edu").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("password is required")
					}
					return nil
				}),
		),
	).WithWidth(min(max(m.width-4, 40), 60)).WithShowHelp(false)
	return m.form.Init()
}

// SetNotice shows a message under the form, such as a rejected login.
func (m *Model) SetNotice(text string) {
	m.notice = text
}

// Busy reports whether a login call is outstanding.
func (m Model) Busy() bool {
	return m.busy
}

// Update handles messages for the login screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		m.notice = ""
		creds := SubmitMsg{Email: strings.TrimSpace(m.fb.email), Password: m.fb.password}
		return m, func() tea.Msg { return creds }
	}
	if m.form.State == huh.StateAborted {
		return m, tea.Quit
	}
	return m, cmd
}

// View renders the login screen.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	parts := []string{theme.TitleStyle.Render("Facility Maintenance"), m.form.View()}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	}
	if m.notice != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.notice))
	}

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}
