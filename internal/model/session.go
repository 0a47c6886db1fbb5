package model

// Session is the authenticated identity of the running client.
// Credential and Profile are always set or cleared together; a value
// with only one of them is never produced by the session manager.
type Session struct {
	Credential string
	Profile    *User
}

// Empty reports whether the session carries no identity.
func (s Session) Empty() bool {
	return s.Profile == nil || s.Credential == ""
}

// Role returns the profile role, or "" for an empty session.
func (s Session) Role() Role {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// Identity failure reasons recorded in NotificationIdentity.LastError.
const (
	IdentityPermissionDenied  = "permission_denied"
	IdentityMissingProjectID  = "missing_project_id"
	IdentityAcquisitionFailed = "acquisition_failed"
)

// NotificationIdentity is the push address handed to the server at login.
// A nil Token is a soft failure; LastError says why.
type NotificationIdentity struct {
	Token     *string
	LastError string
}

// TokenValue returns the token or "" when none was acquired.
func (n NotificationIdentity) TokenValue() string {
	if n.Token == nil {
		return ""
	}
	return *n.Token
}
