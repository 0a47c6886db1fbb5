package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/facility-maintenance/internal/model"
)

func session(role model.Role) model.Session {
	return model.Session{Credential: "tok", Profile: &model.User{ID: 1, Role: role}}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		session model.Session
		want    Shell
	}{
		{
			name:    "empty session",
			session: model.Session{},
			want:    Shell{Name: ShellLogin},
		},
		{
			name:    "utility worker",
			session: session(model.RoleUtilityWorker),
			want:    Shell{Name: ShellMain, Tabs: []Tab{TabHome, TabPreventiveTask, TabSettings}},
		},
		{
			name:    "general service",
			session: session(model.RoleGeneralService),
			want:    Shell{Name: ShellMain, Tabs: []Tab{TabHome, TabPreventiveTask, TabSettings}},
		},
		{
			name:    "faculty",
			session: session(model.RoleFaculty),
			want:    Shell{Name: ShellFaculty, Tabs: []Tab{TabServices, TabSettings}, NewRequestAction: true},
		},
		{
			name:    "unknown role",
			session: session("janitor"),
			want:    Shell{Name: ShellLogin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.session))
		})
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	s := session(model.RoleFaculty)
	first := Route(s)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Route(s))
	}
}

func TestHasTab(t *testing.T) {
	shell := Route(session(model.RoleUtilityWorker))
	assert.True(t, shell.HasTab(TabPreventiveTask))
	assert.False(t, shell.HasTab(TabServices))
}
