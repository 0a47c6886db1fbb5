// Package workflow enforces the lifecycle of service requests and
// preventive-maintenance tasks on the client. Every mutation is checked
// locally, sent to the server once, and answered with the server's own
// representation of the entity.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/store"
)

// Backend is the part of the endpoint catalogue the machine drives.
type Backend interface {
	FetchEntity(ctx context.Context, kind model.EntityKind, id int64) (json.RawMessage, error)
	ListEntities(ctx context.Context, kind model.EntityKind, scope api.Scope) ([]json.RawMessage, error)
	UpdateEntityStatus(ctx context.Context, kind model.EntityKind, id int64, current json.RawMessage, status model.Status) (json.RawMessage, error)
	SubmitReport(ctx context.Context, report model.Report) (json.RawMessage, error)
	AssignTask(ctx context.Context, requestID int64, workerIDs []int64) (json.RawMessage, error)
	UploadProof(ctx context.Context, requestID int64, filename string, image io.Reader) (json.RawMessage, error)
	CreateServiceRequest(ctx context.Context, draft model.ServiceRequestDraft) (json.RawMessage, error)
	ListComments(ctx context.Context, entityID int64) ([]model.Comment, error)
	PostComment(ctx context.Context, entityID, authorID int64, body string) (*model.Comment, error)
}

// Cache is the local read-through copy of server entities.
type Cache interface {
	PutEntity(ctx context.Context, e model.CachedEntity) error
	PutEntities(ctx context.Context, kind model.EntityKind, entities []model.CachedEntity) error
	GetEntity(ctx context.Context, kind model.EntityKind, id int64) (*model.CachedEntity, error)
	GetEntities(ctx context.Context, kind model.EntityKind) ([]model.CachedEntity, error)
}

// Identity supplies the current session, used to author comments.
type Identity interface {
	Current() model.Session
}

// ReportPayload is the side-data required to close a preventive task.
type ReportPayload struct {
	EquipmentID int64
	Condition   string
	Health      string
	OtherInfo   string
}

// Validate checks required fields in the order a form presents them.
func (p *ReportPayload) Validate() error {
	switch {
	case p == nil || p.EquipmentID == 0:
		return validationFailed("equipment")
	case strings.TrimSpace(p.Condition) == "":
		return validationFailed("condition")
	case strings.TrimSpace(p.Health) == "":
		return validationFailed("health")
	}
	return nil
}

type entityKey struct {
	kind model.EntityKind
	id   int64
}

// Machine is the workflow engine shared by every screen.
type Machine struct {
	backend  Backend
	cache    Cache
	identity Identity
	log      logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[entityKey]struct{}

	focusMu sync.Mutex
	focus   map[string]uint64
}

// New creates a Machine. cache may be nil.
func New(backend Backend, cache Cache, identity Identity, log logrus.FieldLogger) *Machine {
	return &Machine{
		backend:  backend,
		cache:    cache,
		identity: identity,
		log:      log.WithField("component", "workflow"),
		inFlight: make(map[entityKey]struct{}),
		focus:    make(map[string]uint64),
	}
}

// RequestTransition moves entity to target. payload is required only for
// the in_progress → reported step of a preventive task. On success the
// returned entity is the server's representation, never a local patch.
func (m *Machine) RequestTransition(
	ctx context.Context,
	entity model.WorkflowEntity,
	target model.Status,
	payload *ReportPayload,
) (model.WorkflowEntity, error) {
	if err := m.checkTransition(entity, target, payload); err != nil {
		return entity, err
	}

	release, err := m.acquire(entity.Kind, entity.ID)
	if err != nil {
		return entity, err
	}
	defer release()

	var raw json.RawMessage
	if entity.Kind == model.KindPreventiveTask && target == model.StatusReported {
		_, err = m.backend.SubmitReport(ctx, model.Report{
			PreventiveID: entity.ID,
			InventoryID:  payload.EquipmentID,
			Condition:    strings.TrimSpace(payload.Condition),
			Health:       strings.TrimSpace(payload.Health),
			OtherInfo:    strings.TrimSpace(payload.OtherInfo),
		})
	} else {
		raw, err = m.backend.UpdateEntityStatus(ctx, entity.Kind, entity.ID, entity.Raw, target)
	}
	if err != nil {
		return entity, err
	}

	updated, err := m.reconcile(ctx, entity.Kind, entity.ID, raw)
	if err != nil {
		return entity, err
	}

	m.log.WithFields(logrus.Fields{
		"kind":   entity.Kind,
		"id":     entity.ID,
		"from":   entity.Status,
		"to":     target,
		"server": updated.Status,
	}).Info("transition applied")
	return updated, nil
}

func (m *Machine) checkTransition(
	entity model.WorkflowEntity,
	target model.Status,
	payload *ReportPayload,
) error {
	if !Known(entity.Kind, entity.Status) {
		m.log.WithFields(logrus.Fields{
			"kind":   entity.Kind,
			"id":     entity.ID,
			"status": entity.Status,
		}).Warn("entity has a status outside its lifecycle")
	}
	if !Legal(entity.Kind, entity.Status, target) {
		return &Error{
			Code: CodeIllegalTransition,
			Kind: entity.Kind,
			ID:   entity.ID,
			From: entity.Status,
			To:   target,
		}
	}
	if entity.Kind == model.KindPreventiveTask && target == model.StatusReported {
		return payload.Validate()
	}
	return nil
}

// acquire marks (kind, id) as having a mutation in flight. The returned
// func clears the mark and must be called exactly once.
func (m *Machine) acquire(kind model.EntityKind, id int64) (func(), error) {
	key := entityKey{kind: kind, id: id}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[key]; busy {
		return nil, &Error{Code: CodeAlreadyInFlight, Kind: kind, ID: id}
	}
	m.inFlight[key] = struct{}{}

	return func() {
		m.mu.Lock()
		delete(m.inFlight, key)
		m.mu.Unlock()
	}, nil
}

// InFlight reports whether a mutation for (kind, id) is outstanding.
func (m *Machine) InFlight(kind model.EntityKind, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inFlight[entityKey{kind: kind, id: id}]
	return busy
}

// reconcile turns a mutation response into the authoritative entity,
// fetching it when the response carried only a message.
func (m *Machine) reconcile(
	ctx context.Context,
	kind model.EntityKind,
	id int64,
	raw json.RawMessage,
) (model.WorkflowEntity, error) {
	if raw == nil {
		fetched, err := m.backend.FetchEntity(ctx, kind, id)
		if err != nil {
			return model.WorkflowEntity{}, err
		}
		raw = fetched
	}

	e, err := Decode(kind, raw)
	if err != nil {
		return model.WorkflowEntity{}, fmt.Errorf("decoding %s %d: %w", kind, id, err)
	}
	m.remember(ctx, e)
	return e, nil
}

func (m *Machine) remember(ctx context.Context, e model.WorkflowEntity) {
	if m.cache == nil {
		return
	}
	if err := m.cache.PutEntity(ctx, cached(e)); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"kind": e.Kind,
			"id":   e.ID,
		}).Warn("caching entity failed")
	}
}

func cached(e model.WorkflowEntity) model.CachedEntity {
	return model.CachedEntity{
		Kind:      e.Kind,
		ID:        e.ID,
		Status:    e.Status,
		Payload:   string(e.Raw),
		FetchedAt: time.Now(),
	}
}

// Refresh re-reads one entity from the server and updates the cache.
func (m *Machine) Refresh(
	ctx context.Context,
	kind model.EntityKind,
	id int64,
) (model.WorkflowEntity, error) {
	raw, err := m.backend.FetchEntity(ctx, kind, id)
	if err != nil {
		return model.WorkflowEntity{}, err
	}
	return m.reconcile(ctx, kind, id, raw)
}

// List re-reads the entities of kind in scope and replaces the cached
// list. Entities that fail to decode are skipped and logged.
func (m *Machine) List(
	ctx context.Context,
	kind model.EntityKind,
	scope api.Scope,
) ([]model.WorkflowEntity, error) {
	items, err := m.backend.ListEntities(ctx, kind, scope)
	if err != nil {
		return nil, err
	}

	out := make([]model.WorkflowEntity, 0, len(items))
	rows := make([]model.CachedEntity, 0, len(items))
	for _, raw := range items {
		e, err := Decode(kind, raw)
		if err != nil {
			m.log.WithError(err).WithField("kind", kind).Warn("skipping undecodable entity")
			continue
		}
		out = append(out, e)
		rows = append(rows, cached(e))
	}

	if m.cache != nil {
		if err := m.cache.PutEntities(ctx, kind, rows); err != nil {
			m.log.WithError(err).WithField("kind", kind).Warn("caching entity list failed")
		}
	}
	return out, nil
}

// Cached returns the locally cached copy of an entity without touching
// the network. ok is false when nothing is cached.
func (m *Machine) Cached(
	ctx context.Context,
	kind model.EntityKind,
	id int64,
) (model.WorkflowEntity, bool) {
	if m.cache == nil {
		return model.WorkflowEntity{}, false
	}
	row, err := m.cache.GetEntity(ctx, kind, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.WithError(err).Warn("reading cached entity failed")
		}
		return model.WorkflowEntity{}, false
	}
	e, err := Decode(kind, json.RawMessage(row.Payload))
	if err != nil {
		return model.WorkflowEntity{}, false
	}
	return e, true
}

// CachedList returns the cached entities of kind, used to paint a screen
// before its List call returns.
func (m *Machine) CachedList(ctx context.Context, kind model.EntityKind) []model.WorkflowEntity {
	if m.cache == nil {
		return nil
	}
	rows, err := m.cache.GetEntities(ctx, kind)
	if err != nil {
		m.log.WithError(err).Warn("reading cached entities failed")
		return nil
	}
	out := make([]model.WorkflowEntity, 0, len(rows))
	for _, row := range rows {
		if e, err := Decode(kind, json.RawMessage(row.Payload)); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// AddComment appends body to an entity's thread as the current user.
// The caller re-fetches the thread with Comments; the server assigns
// ordering and ids.
func (m *Machine) AddComment(
	ctx context.Context,
	entityID int64,
	body string,
) (*model.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationFailed("comment")
	}
	s := m.identity.Current()
	if s.Empty() {
		return nil, errors.New("commenting requires a signed-in user")
	}
	return m.backend.PostComment(ctx, entityID, s.Profile.ID, body)
}

// Comments returns an entity's thread in server order.
func (m *Machine) Comments(ctx context.Context, entityID int64) ([]model.Comment, error) {
	return m.backend.ListComments(ctx, entityID)
}

// Assign hands an approved service request to utility workers.
func (m *Machine) Assign(
	ctx context.Context,
	entity model.WorkflowEntity,
	workerIDs []int64,
) (model.WorkflowEntity, error) {
	if err := requireState(entity, model.StatusApproved); err != nil {
		return entity, err
	}
	if len(workerIDs) == 0 {
		return entity, validationFailed("utility_worker_ids")
	}

	release, err := m.acquire(entity.Kind, entity.ID)
	if err != nil {
		return entity, err
	}
	defer release()

	raw, err := m.backend.AssignTask(ctx, entity.ID, workerIDs)
	if err != nil {
		return entity, err
	}
	return m.reconcile(ctx, entity.Kind, entity.ID, raw)
}

// UploadProof attaches a completion photo to an in-progress service
// request.
func (m *Machine) UploadProof(
	ctx context.Context,
	entity model.WorkflowEntity,
	filename string,
	image io.Reader,
) (model.WorkflowEntity, error) {
	if err := requireState(entity, model.StatusInProgress); err != nil {
		return entity, err
	}
	if filename == "" || image == nil {
		return entity, validationFailed("proof")
	}

	release, err := m.acquire(entity.Kind, entity.ID)
	if err != nil {
		return entity, err
	}
	defer release()

	raw, err := m.backend.UploadProof(ctx, entity.ID, filename, image)
	if err != nil {
		return entity, err
	}
	return m.reconcile(ctx, entity.Kind, entity.ID, raw)
}

// requireState rejects side-data operations on a service request that
// is not in status.
func requireState(entity model.WorkflowEntity, status model.Status) error {
	if entity.Kind == model.KindServiceRequest && entity.Status == status {
		return nil
	}
	return &Error{
		Code: CodeIllegalTransition,
		Kind: entity.Kind,
		ID:   entity.ID,
		From: entity.Status,
		To:   status,
	}
}

// CreateRequest submits a new service request. The result is nil when
// the server acknowledged without returning the record; callers then
// List to pick it up.
func (m *Machine) CreateRequest(
	ctx context.Context,
	draft model.ServiceRequestDraft,
) (*model.WorkflowEntity, error) {
	if draft.ServiceID == 0 {
		return nil, validationFailed("service")
	}
	draft.Reason = strings.TrimSpace(draft.Reason)
	if draft.Reason == "" {
		return nil, validationFailed("reason")
	}

	raw, err := m.backend.CreateServiceRequest(ctx, draft)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	e, err := Decode(model.KindServiceRequest, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding new service request: %w", err)
	}
	m.remember(ctx, e)
	return &e, nil
}
