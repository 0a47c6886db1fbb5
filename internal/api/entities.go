package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nhle/facility-maintenance/internal/model"
)

// Scope selects which slice of a collection to list.
type Scope int

const (
	// ScopeAll lists every entity visible to the credential.
	ScopeAll Scope = iota
	// ScopeRequestedByMe lists entities the current user requested.
	ScopeRequestedByMe
	// ScopeAssignedToMe lists entities assigned to the current user.
	ScopeAssignedToMe
)

// FetchEntity returns the server's current representation of one entity.
func (c *Client) FetchEntity(
	ctx context.Context,
	kind model.EntityKind,
	id int64,
) (json.RawMessage, error) {
	path, err := entityPath(kind, id)
	if err != nil {
		return nil, err
	}
	raw, err := c.t.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %d: %w", kind, id, err)
	}
	return unwrapData(raw), nil
}

// ListEntities returns the raw entities in scope for kind.
func (c *Client) ListEntities(
	ctx context.Context,
	kind model.EntityKind,
	scope Scope,
) ([]json.RawMessage, error) {
	path, err := listPath(kind, scope)
	if err != nil {
		return nil, err
	}
	raw, err := c.t.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	items, err := splitArray(raw)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	if kind == model.KindServiceRequest && scope == ScopeAssignedToMe {
		for i, item := range items {
			items[i] = taskRequest(item)
		}
	}
	return items, nil
}

// taskRequest returns the service request carried by an assigned task,
// or item itself when it already is one.
func taskRequest(item json.RawMessage) json.RawMessage {
	sr := gjson.GetBytes(item, "service_request")
	if sr.IsObject() {
		return json.RawMessage(sr.Raw)
	}
	return item
}

// UpdateEntityStatus asks the server to move an entity to status.
// Worker progress on a service request goes through its task, whose
// reply describes the task rather than the request, so nil is returned
// and the caller must re-fetch. Preventive tasks are sent back whole
// with the new status; service requests take a status-only body. A
// reply that is an envelope without the entity also yields nil.
func (c *Client) UpdateEntityStatus(
	ctx context.Context,
	kind model.EntityKind,
	id int64,
	current json.RawMessage,
	status model.Status,
) (json.RawMessage, error) {
	path, err := entityPath(kind, id)
	if err != nil {
		return nil, err
	}

	var body interface{} = map[string]string{"status": string(status)}
	taskID, viaTask := workerTask(kind, current, status)
	if viaTask {
		path = fmt.Sprintf("/updateTaskStatus/%d", taskID)
	}
	if kind == model.KindPreventiveTask && len(current) > 0 {
		patched, err := sjson.SetBytes(current, "status", string(status))
		if err != nil {
			return nil, fmt.Errorf("building %s %d payload: %w", kind, id, err)
		}
		body = json.RawMessage(patched)
	}

	raw, err := c.t.Put(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("updating %s %d to %s: %w", kind, id, status, err)
	}
	if viaTask {
		return nil, nil
	}
	return entityFrom(raw), nil
}

// workerTask returns the task through which a worker moves a service
// request into or out of in_progress. Approval decisions and requests
// without a task go to the request itself.
func workerTask(kind model.EntityKind, current json.RawMessage, status model.Status) (int64, bool) {
	if kind != model.KindServiceRequest || len(current) == 0 {
		return 0, false
	}
	if status != model.StatusInProgress && status != model.StatusCompleted {
		return 0, false
	}
	id := gjson.GetBytes(current, "tasks.0.id")
	if !id.Exists() || id.Int() == 0 {
		return 0, false
	}
	return id.Int(), true
}

// ListTasks returns every task visible to the credential, each carrying
// its service request.
func (c *Client) ListTasks(ctx context.Context) ([]json.RawMessage, error) {
	raw, err := c.t.Get(ctx, "/tasks")
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	items, err := splitArray(raw)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	for i, item := range items {
		items[i] = taskRequest(item)
	}
	return items, nil
}

// SubmitReport files the condition report for a preventive task.
func (c *Client) SubmitReport(
	ctx context.Context,
	report model.Report,
) (json.RawMessage, error) {
	raw, err := c.t.Post(ctx, "/preventive-maintenance-report", report)
	if err != nil {
		return nil, fmt.Errorf("submitting report for preventive task %d: %w", report.PreventiveID, err)
	}
	return unwrapData(raw), nil
}

// ListReports returns every filed preventive-maintenance report.
func (c *Client) ListReports(ctx context.Context) ([]model.Report, error) {
	raw, err := c.t.Get(ctx, "/preventive-maintenance-report")
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return decodeList[model.Report](raw, "reports")
}

// AssignTask assigns utility workers to an approved service request.
func (c *Client) AssignTask(
	ctx context.Context,
	requestID int64,
	workerIDs []int64,
) (json.RawMessage, error) {
	path := fmt.Sprintf("/service-requests/%d/assign-task", requestID)
	raw, err := c.t.Post(ctx, path, map[string][]int64{"utility_worker_ids": workerIDs})
	if err != nil {
		return nil, fmt.Errorf("assigning service request %d: %w", requestID, err)
	}
	return entityFrom(raw), nil
}

// UploadProof attaches a completion photo to a service request's task.
func (c *Client) UploadProof(
	ctx context.Context,
	requestID int64,
	filename string,
	image io.Reader,
) (json.RawMessage, error) {
	path := fmt.Sprintf("/uploadProof/%d", requestID)
	raw, err := c.t.PostMultipart(ctx, path, "proof", filename, image)
	if err != nil {
		return nil, fmt.Errorf("uploading proof for service request %d: %w", requestID, err)
	}
	return entityFrom(raw), nil
}

// CreateServiceRequest submits a new service request.
func (c *Client) CreateServiceRequest(
	ctx context.Context,
	draft model.ServiceRequestDraft,
) (json.RawMessage, error) {
	raw, err := c.t.Post(ctx, "/service-requests", draft)
	if err != nil {
		return nil, fmt.Errorf("creating service request: %w", err)
	}
	return entityFrom(raw), nil
}

// entityFrom returns the entity carried by a mutation response, or nil
// when the response only holds a message.
func entityFrom(raw json.RawMessage) json.RawMessage {
	body := unwrapData(raw)
	if len(body) == 0 || !gjson.GetBytes(body, "id").Exists() {
		return nil
	}
	return body
}

func entityPath(kind model.EntityKind, id int64) (string, error) {
	switch kind {
	case model.KindServiceRequest:
		return fmt.Sprintf("/service-requests/%d", id), nil
	case model.KindPreventiveTask:
		return fmt.Sprintf("/preventive-maintenance/%d", id), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", kind)
}

func listPath(kind model.EntityKind, scope Scope) (string, error) {
	switch kind {
	case model.KindServiceRequest:
		switch scope {
		case ScopeAll:
			return "/service-requests", nil
		case ScopeRequestedByMe:
			return "/getByCurrentUser", nil
		case ScopeAssignedToMe:
			return "/assignedToMe", nil
		}
	case model.KindPreventiveTask:
		switch scope {
		case ScopeAll:
			return "/preventive-maintenance", nil
		case ScopeAssignedToMe:
			return "/getMyPreventiveMaintenanceTasks", nil
		}
	}
	return "", fmt.Errorf("no listing for %s in scope %d", kind, scope)
}
