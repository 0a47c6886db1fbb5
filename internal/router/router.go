// Package router picks the application shell for a session.
package router

import "github.com/nhle/facility-maintenance/internal/model"

// ShellName identifies a top-level application shell.
type ShellName string

const (
	ShellLogin   ShellName = "Login"
	ShellMain    ShellName = "MainApp"
	ShellFaculty ShellName = "FacultyApp"
)

// Tab is a top-level tab inside a shell.
type Tab string

const (
	TabHome           Tab = "Home"
	TabPreventiveTask Tab = "PreventiveTask"
	TabServices       Tab = "Services"
	TabSettings       Tab = "Settings"
)

// Shell describes what the UI should mount.
type Shell struct {
	Name ShellName
	Tabs []Tab

	// NewRequestAction is true when the shell offers the floating
	// "new service request" action.
	NewRequestAction bool
}

// Route derives the shell from the session alone. It has no side effects
// and can be re-evaluated at any time, so a restarted process lands on
// the same shell without replaying navigation.
func Route(s model.Session) Shell {
	if s.Profile == nil {
		return Shell{Name: ShellLogin}
	}

	switch s.Profile.Role {
	case model.RoleGeneralService, model.RoleUtilityWorker:
		return Shell{
			Name: ShellMain,
			Tabs: []Tab{TabHome, TabPreventiveTask, TabSettings},
		}
	case model.RoleFaculty:
		return Shell{
			Name:             ShellFaculty,
			Tabs:             []Tab{TabServices, TabSettings},
			NewRequestAction: true,
		}
	}
	return Shell{Name: ShellLogin}
}

// HasTab reports whether the shell mounts tab.
func (s Shell) HasTab(tab Tab) bool {
	for _, t := range s.Tabs {
		if t == tab {
			return true
		}
	}
	return false
}
