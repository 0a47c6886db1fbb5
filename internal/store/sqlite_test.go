package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/store"
	"github.com/nhle/facility-maintenance/internal/testutil"
)

func TestEntityUpsertAndGet(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEntity(ctx, model.CachedEntity{
		Kind: model.KindPreventiveTask, ID: 3, Status: model.StatusPending, Payload: `{"id":3}`,
	}))
	require.NoError(t, s.PutEntity(ctx, model.CachedEntity{
		Kind: model.KindPreventiveTask, ID: 3, Status: model.StatusInProgress, Payload: `{"id":3,"status":"in_progress"}`,
	}))

	got, err := s.GetEntity(ctx, model.KindPreventiveTask, 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, `{"id":3,"status":"in_progress"}`, got.Payload)
	assert.False(t, got.FetchedAt.IsZero())

	_, err = s.GetEntity(ctx, model.KindServiceRequest, 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPutEntitiesReplacesKind(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEntity(ctx, model.CachedEntity{Kind: model.KindServiceRequest, ID: 1, Status: model.StatusPending, Payload: "{}"}))
	require.NoError(t, s.PutEntity(ctx, model.CachedEntity{Kind: model.KindPreventiveTask, ID: 1, Status: model.StatusPending, Payload: "{}"}))

	require.NoError(t, s.PutEntities(ctx, model.KindServiceRequest, []model.CachedEntity{
		{ID: 5, Status: model.StatusApproved, Payload: `{"id":5}`},
		{ID: 4, Status: model.StatusPending, Payload: `{"id":4}`},
	}))

	srs, err := s.GetEntities(ctx, model.KindServiceRequest)
	require.NoError(t, err)
	require.Len(t, srs, 2)
	assert.Equal(t, int64(4), srs[0].ID)
	assert.Equal(t, model.KindServiceRequest, srs[1].Kind)

	pms, err := s.GetEntities(ctx, model.KindPreventiveTask)
	require.NoError(t, err)
	assert.Len(t, pms, 1, "other kinds are untouched")
}

func TestNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceNotifications(ctx, []model.Notification{
		{ID: 1, Title: "Assigned", Body: "You were assigned", CreatedAt: base},
		{ID: 2, Title: "Approved", Body: "Request approved", Read: true, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "Comment", Body: "New comment", CreatedAt: base.Add(2 * time.Hour)},
	}))

	count, err := s.GetUnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkNotificationRead(ctx, 3))

	ns, err := s.GetNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, ns, 3)
	assert.Equal(t, int64(3), ns[0].ID, "newest first")
	assert.True(t, ns[0].Read)

	count, err = s.GetUnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClear(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEntity(ctx, model.CachedEntity{Kind: model.KindServiceRequest, ID: 1, Status: model.StatusPending, Payload: "{}"}))
	require.NoError(t, s.ReplaceNotifications(ctx, []model.Notification{{ID: 1, CreatedAt: time.Now()}}))

	require.NoError(t, s.Clear(ctx))

	srs, err := s.GetEntities(ctx, model.KindServiceRequest)
	require.NoError(t, err)
	assert.Empty(t, srs)

	count, err := s.GetUnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
