// Package confirm shows a yes/no dialog before a workflow transition.
package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/theme"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// DecidedMsg carries the user's answer for Prompt.
type DecidedMsg struct {
	Prompt   workflow.Prompt
	Decision workflow.Decision
	Payload  *workflow.ReportPayload
}

// Model is the confirmation dialog.
type Model struct {
	form    *huh.Form
	prompt  workflow.Prompt
	payload *workflow.ReportPayload
	answer  *bool
	width   int
}

// New creates an idle dialog.
func New(width int) Model {
	return Model{answer: new(bool), width: width}
}

// Ask opens the dialog for p. payload travels with the answer so the
// caller can complete the transition.
func (m *Model) Ask(p workflow.Prompt, payload *workflow.ReportPayload) tea.Cmd {
	m.prompt = p
	m.payload = payload
	*m.answer = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(p.Title).
				Description(p.Message).
				Affirmative("Confirm").
				Negative("Cancel").
				Value(m.answer),
		),
	).WithWidth(min(max(m.width-4, 40), 80))
	return m.form.Init()
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted || m.form.State == huh.StateAborted {
		decision := workflow.Cancelled
		if m.form.State == huh.StateCompleted && *m.answer {
			decision = workflow.Confirmed
		}
		out := DecidedMsg{Prompt: m.prompt, Decision: decision, Payload: m.payload}
		m.form = nil
		return m, func() tea.Msg { return out }
	}
	return m, cmd
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.DetailPanelStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, m.form.View()),
	)
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width int) {
	m.width = width
}
