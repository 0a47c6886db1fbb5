package store

import (
	"context"
	"errors"

	"github.com/nhle/facility-maintenance/internal/model"
)

// ErrNotFound is returned when a cached record does not exist.
var ErrNotFound = errors.New("not found in cache")

// Store defines the local read-through cache. It holds copies of server
// records only; nothing here is ever sent back to the server.
type Store interface {
	// === Workflow entities ===

	PutEntity(ctx context.Context, e model.CachedEntity) error
	PutEntities(ctx context.Context, kind model.EntityKind, entities []model.CachedEntity) error
	GetEntity(ctx context.Context, kind model.EntityKind, id int64) (*model.CachedEntity, error)
	GetEntities(ctx context.Context, kind model.EntityKind) ([]model.CachedEntity, error)

	// === Notifications ===

	ReplaceNotifications(ctx context.Context, ns []model.Notification) error
	GetNotifications(ctx context.Context) ([]model.Notification, error)
	GetUnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error

	// Clear drops every cached record, used on logout.
	Clear(ctx context.Context) error
}
