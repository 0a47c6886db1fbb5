package detail

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
)

func TestAvailable(t *testing.T) {
	sr := func(s model.Status) model.WorkflowEntity {
		return model.WorkflowEntity{ID: 1, Kind: model.KindServiceRequest, Status: s}
	}
	pm := func(s model.Status) model.WorkflowEntity {
		return model.WorkflowEntity{ID: 1, Kind: model.KindPreventiveTask, Status: s}
	}

	tests := []struct {
		name   string
		role   model.Role
		entity model.WorkflowEntity
		want   []Action
	}{
		{"admin on pending request", model.RoleGeneralService, sr(model.StatusPending), []Action{ActionApprove, ActionReject, ActionComment}},
		{"admin on approved request", model.RoleGeneralService, sr(model.StatusApproved), []Action{ActionAssign, ActionComment}},
		{"worker on approved request", model.RoleUtilityWorker, sr(model.StatusApproved), []Action{ActionStart, ActionComment}},
		{"worker on request in progress", model.RoleUtilityWorker, sr(model.StatusInProgress), []Action{ActionComplete, ActionProof, ActionComment}},
		{"worker on pending task", model.RoleUtilityWorker, pm(model.StatusPending), []Action{ActionStart}},
		{"worker on task in progress", model.RoleUtilityWorker, pm(model.StatusInProgress), []Action{ActionReport}},
		{"worker on reported task", model.RoleUtilityWorker, pm(model.StatusReported), nil},
		{"faculty on own request", model.RoleFaculty, sr(model.StatusPending), []Action{ActionComment}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Available(tt.role, tt.entity))
		})
	}
}

func TestKeyEmitsAvailableActionOnly(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetEntity(model.WorkflowEntity{ID: 3, Kind: model.KindPreventiveTask, Status: model.StatusPending}, model.RoleUtilityWorker)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	msg, ok := cmd().(ActionMsg)
	require.True(t, ok)
	assert.Equal(t, ActionStart, msg.Action)
	assert.Equal(t, model.StatusInProgress, msg.Action.Target())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	if cmd != nil {
		_, isAction := cmd().(ActionMsg)
		assert.False(t, isAction, "report is not offered before work starts")
	}
}

func TestCommentInput(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetEntity(model.WorkflowEntity{ID: 4, Kind: model.KindServiceRequest, Status: model.StatusPending}, model.RoleFaculty)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.True(t, m.Typing())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Any update?")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommentMsg{EntityID: 4, Body: "Any update?"}, cmd())
	assert.False(t, m.Typing())
}
