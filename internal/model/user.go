package model

import "strings"

// Role identifies what a user is allowed to do in the maintenance workflow.
type Role string

const (
	// RoleGeneralService is the administrative role. It is web-only and
	// rejected at login by this client.
	RoleGeneralService Role = "general_service"

	// RoleFaculty submits and follows service requests.
	RoleFaculty Role = "faculty"

	// RoleUtilityWorker executes assigned tasks and preventive maintenance.
	RoleUtilityWorker Role = "utility_worker"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGeneralService, RoleFaculty, RoleUtilityWorker:
		return true
	}
	return false
}

// User is the profile of an authenticated user as returned by the server.
// The role travels on the wire as "type".
type User struct {
	ID         int64  `json:"id"`
	Firstname  string `json:"firstname"`
	Middlename string `json:"middlename,omitempty"`
	Lastname   string `json:"lastname"`
	Email      string `json:"email"`
	Role       Role   `json:"type"`
	Department string `json:"department,omitempty"`
	Gender     string `json:"gender,omitempty"`
}

// DisplayName returns "First Last", falling back to the email address.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.Firstname + " " + u.Lastname)
	if name == "" {
		return u.Email
	}
	return name
}

// Label returns the display name with the department in parentheses,
// the way assignees are listed on task cards.
func (u User) Label() string {
	if u.Department == "" {
		return u.DisplayName()
	}
	return u.DisplayName() + " (" + u.Department + ")"
}
