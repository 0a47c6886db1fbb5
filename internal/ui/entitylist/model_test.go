package entitylist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
)

func items(ids ...int64) []model.ListItem {
	out := make([]model.ListItem, len(ids))
	for i, id := range ids {
		out[i] = model.WorkflowEntity{ID: id, Title: "task", Status: model.StatusPending}
	}
	return out
}

func TestRelativeTime(t *testing.T) {
	assert.Empty(t, RelativeTime(time.Time{}))
	assert.Equal(t, "3 minutes ago", RelativeTime(time.Now().Add(-3*time.Minute)))
}

func TestSetItemsKeepsCursor(t *testing.T) {
	m := New("Tasks", "No tasks", keys.DefaultKeyMap(), 80, 20)
	m.SetItems(items(1, 2, 3))
	m.list.Select(2)

	m.SetItems(items(4, 3, 1))
	cur, ok := m.SelectedItem()
	require.True(t, ok)
	assert.Equal(t, int64(3), cur.GetID())
	assert.Equal(t, 3, m.Len())
}

func TestEnterEmitsSelection(t *testing.T) {
	m := New("Tasks", "No tasks", keys.DefaultKeyMap(), 80, 20)
	m.SetItems(items(7))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedMsg{ID: 7}, cmd())
}

func TestEmptyStateText(t *testing.T) {
	m := New("Tasks", "No tasks assigned", keys.DefaultKeyMap(), 40, 10)
	assert.Contains(t, m.View(), "Loading")

	m.SetItems(nil)
	assert.Contains(t, m.View(), "No tasks assigned")
}
