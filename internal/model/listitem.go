package model

import "time"

// ListItem is the common interface for rows displayed in a shell's list
// views. Workflow entities and notifications both implement it.
type ListItem interface {
	GetID() int64
	GetTitle() string
	GetDescription() string
	GetStatus() string
	IsClosed() bool
	GetUpdatedAt() time.Time
}

// WorkflowEntity implements ListItem.

func (e WorkflowEntity) GetID() int64            { return e.ID }
func (e WorkflowEntity) GetTitle() string        { return e.Title }
func (e WorkflowEntity) GetDescription() string  { return e.Description }
func (e WorkflowEntity) GetStatus() string       { return string(e.Status) }
func (e WorkflowEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }
func (e WorkflowEntity) IsClosed() bool {
	switch e.Status {
	case StatusCompleted, StatusRejected, StatusReported:
		return true
	}
	return false
}

// Notification implements ListItem.

func (n Notification) GetID() int64           { return n.ID }
func (n Notification) GetTitle() string       { return n.Title }
func (n Notification) GetDescription() string { return n.Body }
func (n Notification) GetStatus() string {
	if n.Read {
		return "read"
	}
	return "unread"
}
func (n Notification) IsClosed() bool          { return n.Read }
func (n Notification) GetUpdatedAt() time.Time { return n.CreatedAt }
