package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
	"github.com/nhle/facility-maintenance/internal/ui/entitylist"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ActionMsg asks the parent to run an action on the displayed entity.
type ActionMsg struct {
	Action Action
	Entity model.WorkflowEntity
}

// CommentMsg carries a comment the user typed.
type CommentMsg struct {
	EntityID int64
	Body     string
}

// Model is the entity detail view component.
type Model struct {
	entity   *model.WorkflowEntity
	comments []model.Comment
	role     model.Role
	viewport viewport.Model
	input    textinput.Model
	typing   bool
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	ti := textinput.New()
	ti.Placeholder = "write a comment..."
	ti.Prompt = "> "
	ti.Width = width - 6

	return Model{
		viewport: vp,
		input:    ti,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.typing {
			return m.handleCommentKeys(msg)
		}
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return BackMsg{} }
		}
		if m.entity != nil {
			for _, a := range Available(m.role, *m.entity) {
				if !key.Matches(msg, a.binding(m.keys)) {
					continue
				}
				if a == ActionComment {
					m.typing = true
					m.input.Reset()
					return m, m.input.Focus()
				}
				action, entity := a, *m.entity
				return m, func() tea.Msg { return ActionMsg{Action: action, Entity: entity} }
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleCommentKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.typing = false
		m.input.Blur()
		return m, nil
	case "enter":
		body := strings.TrimSpace(m.input.Value())
		m.typing = false
		m.input.Blur()
		m.input.Reset()
		if body == "" || m.entity == nil {
			return m, nil
		}
		id := m.entity.ID
		return m, func() tea.Msg { return CommentMsg{EntityID: id, Body: body} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Typing reports whether the comment input has focus.
func (m Model) Typing() bool {
	return m.typing
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return centered.Render("Loading...")
	}
	if m.entity == nil {
		return centered.Render("Nothing selected")
	}
	if m.typing {
		return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.input.View())
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.entity == nil {
		return ""
	}
	e := m.entity

	var sections []string
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(e.Title))
	sections = append(sections, theme.StatusStyle(string(e.Status)).Render(string(e.Status)))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	row := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, metaStyle.Render(fmt.Sprintf("%-13s", label+":"))+" "+value)
	}

	if e.Owner != nil {
		row("Requested by", e.Owner.DisplayName())
	}
	if e.Kind == model.KindServiceRequest {
		approver := "Pending"
		if e.Approver != nil {
			approver = e.Approver.DisplayName()
		}
		row("Approved by", approver)
	}
	if !e.CreatedAt.IsZero() {
		row("Created", e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	row("Updated", entitylist.RelativeTime(e.UpdatedAt))

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	sections = append(sections, "", separator, "", headerStyle.Render("Description"))
	if e.Description == "" {
		sections = append(sections, metaStyle.Italic(true).Render("No description"))
	} else {
		sections = append(sections, e.Description)
	}

	sections = append(sections, "", headerStyle.Render(fmt.Sprintf("Assigned Personnel ( %d )", len(e.Assignees))))
	if len(e.Assignees) == 0 {
		sections = append(sections, metaStyle.Render("No assigned"))
	}
	for _, u := range e.Assignees {
		sections = append(sections, "  "+u.Label())
	}

	if len(e.Attachments.Reports) > 0 {
		sections = append(sections, "", headerStyle.Render("Reports"))
		for _, r := range e.Attachments.Reports {
			sections = append(sections, fmt.Sprintf("  #%d  %s  (health: %s)", r.InventoryID, r.Condition, r.Health))
		}
	}

	if e.Kind == model.KindServiceRequest {
		sections = append(sections, "", separator, "")
		sections = append(sections, headerStyle.Render(fmt.Sprintf("Comments (%d)", len(m.comments))))
		sections = append(sections, "")

		authorStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
		for _, c := range m.comments {
			author := fmt.Sprintf("user #%d", c.AuthorID)
			if c.Author != nil {
				author = c.Author.DisplayName()
			}
			sections = append(sections,
				fmt.Sprintf("%s  %s", authorStyle.Render(author), metaStyle.Render(entitylist.RelativeTime(c.CreatedAt))),
				c.Body,
				"",
			)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetEntity updates the entity being displayed and re-renders the content.
func (m *Model) SetEntity(e model.WorkflowEntity, role model.Role) {
	same := m.entity != nil && m.entity.ID == e.ID && m.entity.Kind == e.Kind
	if !same {
		m.comments = e.Attachments.Comments
	}
	m.entity = &e
	m.role = role
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	if !same {
		m.viewport.GotoTop()
	}
}

// SetComments replaces the comment thread.
func (m *Model) SetComments(comments []model.Comment) {
	m.comments = comments
	m.viewport.SetContent(m.renderContent())
}

// Entity returns the displayed entity.
func (m Model) Entity() (model.WorkflowEntity, bool) {
	if m.entity == nil {
		return model.WorkflowEntity{}, false
	}
	return *m.entity, true
}

// Clear drops the displayed entity.
func (m *Model) Clear() {
	m.entity = nil
	m.comments = nil
	m.typing = false
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Hints returns the key hints for the displayed entity.
func (m Model) Hints() string {
	if m.typing {
		return "enter send | esc cancel"
	}
	hints := []string{"esc back", "r refresh"}
	if m.entity != nil {
		for _, a := range Available(m.role, *m.entity) {
			h := a.binding(m.keys).Help()
			hints = append(hints, h.Key+" "+h.Desc)
		}
	}
	return strings.Join(hints, " | ")
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.input.Width = width - 6
}
