package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the key bindings followed by the status lifecycles.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Status Flow"),
		Lifecycle(model.KindServiceRequest, model.StatusPending),
		Lifecycle(model.KindPreventiveTask, model.StatusPending),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// Lifecycle renders the statuses reachable from start, one line per
// branch, e.g. "pending → approved → in_progress → completed".
func Lifecycle(kind model.EntityKind, start model.Status) string {
	label := "Service request"
	if kind == model.KindPreventiveTask {
		label = "Preventive task"
	}

	var lines []string
	var walk func(path []string, s model.Status)
	walk = func(path []string, s model.Status) {
		path = append(path, theme.StatusStyle(string(s)).Render(string(s)))
		next := workflow.Successors(kind, s)
		if len(next) == 0 {
			lines = append(lines, "  "+strings.Join(path, " → "))
			return
		}
		for _, n := range next {
			walk(append([]string(nil), path...), n)
		}
	}
	walk(nil, start)

	return theme.HelpStyle.Render(label+":") + "\n" + strings.Join(lines, "\n")
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
