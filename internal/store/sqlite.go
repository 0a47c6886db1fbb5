package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/facility-maintenance/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const upsertEntity = `
	INSERT OR REPLACE INTO entities (kind, id, status, payload, fetched_at)
	VALUES (:kind, :id, :status, :payload, :fetched_at)`

// PutEntity inserts or replaces a cached entity.
func (s *SQLiteStore) PutEntity(ctx context.Context, e model.CachedEntity) error {
	e.FetchedAt = normalizeTime(e.FetchedAt)
	if _, err := s.db.NamedExecContext(ctx, upsertEntity, e); err != nil {
		return fmt.Errorf("caching %s %d: %w", e.Kind, e.ID, err)
	}
	return nil
}

// PutEntities replaces the cached list for kind with entities.
func (s *SQLiteStore) PutEntities(
	ctx context.Context,
	kind model.EntityKind,
	entities []model.CachedEntity,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE kind = ?", kind); err != nil {
		return fmt.Errorf("clearing cached %s: %w", kind, err)
	}

	for _, e := range entities {
		e.Kind = kind
		e.FetchedAt = normalizeTime(e.FetchedAt)
		if _, err := tx.NamedExecContext(ctx, upsertEntity, e); err != nil {
			return fmt.Errorf("caching %s %d: %w", kind, e.ID, err)
		}
	}

	return tx.Commit()
}

// GetEntity returns a cached entity or ErrNotFound.
func (s *SQLiteStore) GetEntity(
	ctx context.Context,
	kind model.EntityKind,
	id int64,
) (*model.CachedEntity, error) {
	var e model.CachedEntity
	err := s.db.GetContext(ctx, &e,
		"SELECT kind, id, status, payload, fetched_at FROM entities WHERE kind = ? AND id = ?",
		kind, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cached %s %d: %w", kind, id, err)
	}
	return &e, nil
}

// GetEntities returns every cached entity of kind ordered by id.
func (s *SQLiteStore) GetEntities(
	ctx context.Context,
	kind model.EntityKind,
) ([]model.CachedEntity, error) {
	var out []model.CachedEntity
	err := s.db.SelectContext(ctx, &out,
		"SELECT kind, id, status, payload, fetched_at FROM entities WHERE kind = ? ORDER BY id",
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cached %s: %w", kind, err)
	}
	return out, nil
}

// ReplaceNotifications swaps the cached notifications for ns.
func (s *SQLiteStore) ReplaceNotifications(
	ctx context.Context,
	ns []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}

	for _, n := range ns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, title, body, read, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			n.ID, n.Title, n.Body, boolToInt(n.Read), normalizeTime(n.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("caching notification %d: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// GetNotifications returns cached notifications, newest first.
func (s *SQLiteStore) GetNotifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	err := s.db.SelectContext(ctx, &out,
		"SELECT id, title, body, read, created_at FROM notifications ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return out, nil
}

// GetUnreadCount returns how many cached notifications are unread.
func (s *SQLiteStore) GetUnreadCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE read = 0"); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks a single cached notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return nil
}

// Clear drops every cached record.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entities", "notifications"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// normalizeTime stores timestamps in UTC and defaults zero values to now.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
