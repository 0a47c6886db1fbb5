package model

import (
	"encoding/json"
	"time"
)

// EntityKind identifies which lifecycle a workflow entity follows.
type EntityKind string

const (
	KindServiceRequest EntityKind = "service_request"
	KindPreventiveTask EntityKind = "preventive_task"
)

// Status is a workflow entity status as spelled by the server.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusReported   Status = "reported"
)

// Attachments holds the side-data attached to a workflow entity.
type Attachments struct {
	Reports  []Report
	Comments []Comment
}

// WorkflowEntity is the client's view of a service request or a
// preventive-maintenance task. The server owns the record; Raw keeps the
// exact payload it returned so the entity can be replaced wholesale.
type WorkflowEntity struct {
	ID          int64
	Kind        EntityKind
	Status      Status
	Title       string
	Description string
	Owner       *User
	Approver    *User
	Assignees   []User
	Attachments Attachments
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Raw         json.RawMessage
}

// Comment is a single entry in an entity's discussion thread.
type Comment struct {
	ID        int64     `json:"id"`
	EntityID  int64     `json:"service_request_id"`
	AuthorID  int64     `json:"user_id"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Author    *User     `json:"user,omitempty"`
}

// Report is the condition report that closes a preventive task.
type Report struct {
	ID           int64  `json:"id,omitempty"`
	PreventiveID int64  `json:"preventive_id"`
	InventoryID  int64  `json:"inventory_id"`
	Condition    string `json:"condition"`
	Health       string `json:"health"`
	OtherInfo    string `json:"other_info,omitempty"`
}

// CachedEntity is the locally cached copy of a server entity.
type CachedEntity struct {
	Kind      EntityKind `db:"kind"`
	ID        int64      `db:"id"`
	Status    Status     `db:"status"`
	Payload   string     `db:"payload"`
	FetchedAt time.Time  `db:"fetched_at"`
}
