package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/facility-maintenance/internal/transport"
)

func newPoller(t *testing.T) *Poller {
	t.Helper()
	log, _ := test.NewNullLogger()
	p := New(log)
	t.Cleanup(p.Stop)
	return p
}

func next(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	select {
	case msg := <-p.resultCh:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
	return SyncResultMsg{}
}

func TestStartFetchesImmediately(t *testing.T) {
	p := newPoller(t)
	p.Register(Feed{
		Name:     "notifications",
		Interval: time.Hour,
		Fetch:    func(context.Context) (any, error) { return 3, nil },
	})

	require.NotNil(t, p.Start())
	msg := next(t, p)
	assert.Equal(t, "notifications", msg.Feed)
	assert.Equal(t, 3, msg.Value)
	assert.NoError(t, msg.Error)

	assert.Eventually(t, func() bool {
		s, ok := p.GetStatus("notifications")
		return ok && s.State == SyncIdle && !s.LastSync.IsZero()
	}, time.Second, 10*time.Millisecond)
}

func TestStartTwiceIsNoop(t *testing.T) {
	p := newPoller(t)
	require.NotNil(t, p.Start())
	assert.Nil(t, p.Start())
	assert.True(t, p.Running())
	p.Stop()
	assert.False(t, p.Running())
}

func TestUnauthorizedIsFlagged(t *testing.T) {
	p := newPoller(t)
	p.Register(Feed{
		Name:     "notifications",
		Interval: time.Hour,
		Fetch: func(context.Context) (any, error) {
			return nil, &transport.Error{Status: 401, Message: "Unauthenticated."}
		},
	})

	p.Start()
	msg := next(t, p)
	assert.Error(t, msg.Error)
	assert.True(t, msg.Unauthorized)

	s, _ := p.GetStatus("notifications")
	assert.Equal(t, SyncError, s.State)
}

func TestRefreshTriggersFetch(t *testing.T) {
	p := newPoller(t)
	calls := make(chan struct{}, 4)
	p.Register(Feed{
		Name:     "home",
		Interval: time.Hour,
		Fetch: func(context.Context) (any, error) {
			calls <- struct{}{}
			return nil, errors.New("offline")
		},
	})

	p.Start()
	next(t, p)
	p.Refresh("home")
	msg := next(t, p)
	assert.False(t, msg.Unauthorized)
	assert.Len(t, calls, 2)
}
