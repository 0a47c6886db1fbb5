package requestform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
)

// SubmittedMsg carries a completed service request draft.
type SubmittedMsg struct {
	Draft model.ServiceRequestDraft
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

type formBindings struct {
	serviceID int64
	reason    string
	location  string
}

// Model is the new service request form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new request form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start initializes the form with the service catalogue.
func (m *Model) Start(services []model.Service) tea.Cmd {
	*m.fb = formBindings{}

	opts := []huh.Option[int64]{huh.NewOption("Select service", int64(0))}
	for _, s := range services {
		opts = append(opts, huh.NewOption(s.Name, s.ID))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().
				Title("Service").
				Options(opts...).
				Value(&m.fb.serviceID).
				Validate(func(id int64) error {
					if id == 0 {
						return fmt.Errorf("please select a service")
					}
					return nil
				}),
			huh.NewText().
				Title("Reason").
				Placeholder("What needs attention?").
				Value(&m.fb.reason).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("reason is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Location").
				Placeholder("Building / room (optional)").
				Value(&m.fb.location),
		),
	).WithWidth(min(max(m.width-4, 40), 100))

	return m.form.Init()
}

// Update handles messages for the request form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		draft := model.ServiceRequestDraft{
			ServiceID: m.fb.serviceID,
			Reason:    strings.TrimSpace(m.fb.reason),
			Location:  strings.TrimSpace(m.fb.location),
		}
		return m, func() tea.Msg { return SubmittedMsg{Draft: draft} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the request form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	content := theme.TitleStyle.Render("New Service Request") + "\n" + m.form.View()
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
