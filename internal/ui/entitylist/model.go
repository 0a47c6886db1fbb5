package entitylist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
)

// SelectedMsg is sent when the user opens an item.
type SelectedMsg struct {
	ID int64
}

// Model is a titled list of workflow entities or notifications.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	busy    map[int64]bool
	empty   string
	loading bool
	width   int
	height  int
}

// New creates a list titled title. empty is shown when it has no items.
func New(title, empty string, k *keys.KeyMap, width, height int) Model {
	busy := make(map[int64]bool)
	l := list.New([]list.Item{}, ItemDelegate{busy: busy}, width, height-2)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:    l,
		keys:    k,
		busy:    busy,
		empty:   empty,
		loading: true,
		width:   width,
		height:  height,
	}
}

// SetItems replaces the list content, keeping the cursor on the same
// item when it is still present.
func (m *Model) SetItems(items []model.ListItem) tea.Cmd {
	var selected int64
	if cur, ok := m.SelectedItem(); ok {
		selected = cur.GetID()
	}

	wrapped := make([]list.Item, len(items))
	cursor := 0
	for i, it := range items {
		wrapped[i] = ListItemWrapper{Item: it}
		if it.GetID() == selected {
			cursor = i
		}
	}
	m.loading = false
	cmd := m.list.SetItems(wrapped)
	m.list.Select(cursor)
	return cmd
}

// SetBusy marks or clears the in-flight indicator on item id.
func (m *Model) SetBusy(id int64, busy bool) {
	if busy {
		m.busy[id] = true
	} else {
		delete(m.busy, id)
	}
}

// SelectedItem returns the item under the cursor.
func (m Model) SelectedItem() (model.ListItem, bool) {
	w, ok := m.list.SelectedItem().(ListItemWrapper)
	if !ok {
		return nil, false
	}
	return w.Item, true
}

// Len returns the number of items.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		item, ok := m.SelectedItem()
		if !ok {
			return m, nil
		}
		id := item.GetID()
		return m, func() tea.Msg { return SelectedMsg{ID: id} }
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		text := m.empty
		if m.loading {
			text = "Loading..."
		}
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(text)
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
