package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nhle/facility-maintenance/internal/model"
)

// serverTimeLayouts are the timestamp formats the backend emits.
var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Decode builds the client view of a server payload for kind. The
// payload is kept verbatim in Raw.
func Decode(kind model.EntityKind, raw json.RawMessage) (model.WorkflowEntity, error) {
	if !gjson.ValidBytes(raw) {
		return model.WorkflowEntity{}, errors.New("entity payload is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	id := doc.Get("id")
	if !id.Exists() {
		return model.WorkflowEntity{}, errors.New("entity payload has no id")
	}

	e := model.WorkflowEntity{
		ID:        id.Int(),
		Kind:      kind,
		Status:    model.Status(doc.Get("status").String()),
		CreatedAt: parseTime(doc.Get("created_at")),
		UpdatedAt: parseTime(doc.Get("updated_at")),
		Raw:       append(json.RawMessage(nil), raw...),
	}

	var err error
	switch kind {
	case model.KindServiceRequest:
		err = decodeServiceRequest(doc, &e)
	case model.KindPreventiveTask:
		err = decodePreventiveTask(doc, &e)
	default:
		err = fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return model.WorkflowEntity{}, err
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	return e, nil
}

func decodeServiceRequest(doc gjson.Result, e *model.WorkflowEntity) error {
	e.Title = firstString(doc, "service.name", "name")
	if e.Title == "" {
		e.Title = fmt.Sprintf("Service request #%d", e.ID)
	}
	e.Description = firstString(doc, "reason", "description")

	var err error
	if e.Owner, err = userAt(doc, "user", "requester"); err != nil {
		return err
	}
	if e.Approver, err = userAt(doc, "approver"); err != nil {
		return err
	}
	if e.Assignees, err = usersAt(doc, "tasks.0.utility_workers"); err != nil {
		return err
	}
	if c := doc.Get("comments"); c.IsArray() {
		if err := json.Unmarshal([]byte(c.Raw), &e.Attachments.Comments); err != nil {
			return fmt.Errorf("decoding comments: %w", err)
		}
	}
	return nil
}

func decodePreventiveTask(doc gjson.Result, e *model.WorkflowEntity) error {
	e.Title = doc.Get("name").String()
	if e.Title == "" {
		e.Title = fmt.Sprintf("Preventive task #%d", e.ID)
	}
	e.Description = doc.Get("description").String()

	var err error
	if e.Owner, err = userAt(doc, "scheduled_by", "user"); err != nil {
		return err
	}
	if e.Assignees, err = usersAt(doc, "users"); err != nil {
		return err
	}
	if r := doc.Get("reports"); r.IsArray() {
		if err := json.Unmarshal([]byte(r.Raw), &e.Attachments.Reports); err != nil {
			return fmt.Errorf("decoding reports: %w", err)
		}
	}
	return nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func userAt(doc gjson.Result, paths ...string) (*model.User, error) {
	for _, p := range paths {
		v := doc.Get(p)
		if !v.IsObject() {
			continue
		}
		var u model.User
		if err := json.Unmarshal([]byte(v.Raw), &u); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		return &u, nil
	}
	return nil, nil
}

func usersAt(doc gjson.Result, path string) ([]model.User, error) {
	v := doc.Get(path)
	if !v.IsArray() {
		return nil, nil
	}
	var users []model.User
	if err := json.Unmarshal([]byte(v.Raw), &users); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return users, nil
}

func parseTime(v gjson.Result) time.Time {
	if v.Type != gjson.String {
		return time.Time{}
	}
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, v.Str); err == nil {
			return t
		}
	}
	return time.Time{}
}
