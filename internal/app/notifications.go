package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/router"
	"github.com/nhle/facility-maintenance/internal/store"
	appsync "github.com/nhle/facility-maintenance/internal/sync"
)

const (
	feedNotifications        = "notifications"
	notificationPollInterval = time.Minute
)

type notificationsLoadedMsg struct {
	items []model.Notification
}

// failedMsg reports an error from a call with no other result.
type failedMsg struct {
	err error
}

type unreadCountMsg struct {
	count int
}

// fetchNotifications pulls the user's notifications and mirrors them in
// the cache.
func fetchNotifications(client *api.Client, cache store.Store) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		items, err := client.ListNotifications(ctx)
		if err != nil {
			return nil, err
		}
		if cache != nil {
			if err := cache.ReplaceNotifications(ctx, items); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
}

func (m Model) handleSyncResult(msg appsync.SyncResultMsg) (Model, tea.Cmd) {
	wait := m.poller.WaitForNextResult()

	if msg.Unauthorized && m.shell.Name != router.ShellLogin && !m.svc.Session.Current().Empty() {
		m.log.Info("server rejected the session; signing out")
		return m, tea.Batch(wait, m.logout(noticeSessionExpired))
	}
	if msg.Error != nil {
		return m, wait
	}

	if items, ok := msg.Value.([]model.Notification); ok {
		m.unreadCount = countUnread(items)
		if m.currentView == ViewNotifications {
			return m, tea.Batch(wait, m.notificationsView.SetItems(toListItems(items)))
		}
	}
	return m, wait
}

func (m *Model) openNotifications() tea.Cmd {
	if m.currentView != ViewNotifications {
		m.previousView = m.currentView
	}
	m.currentView = ViewNotifications
	m.poller.Refresh(feedNotifications)
	return m.loadCachedNotifications()
}

func (m *Model) loadCachedNotifications() tea.Cmd {
	cache := m.svc.Cache
	log := m.log
	return func() tea.Msg {
		if cache == nil {
			return notificationsLoadedMsg{}
		}
		items, err := cache.GetNotifications(context.Background())
		if err != nil {
			log.WithError(err).Warn("reading cached notifications failed")
		}
		return notificationsLoadedMsg{items: items}
	}
}

func (m *Model) loadUnreadCount() tea.Cmd {
	cache := m.svc.Cache
	return func() tea.Msg {
		if cache == nil {
			return unreadCountMsg{}
		}
		n, err := cache.GetUnreadCount(context.Background())
		if err != nil {
			return unreadCountMsg{}
		}
		return unreadCountMsg{count: n}
	}
}

// markNotificationRead flags a notification read on the server, then in
// the cache, and reloads the list.
func (m *Model) markNotificationRead(id int64) tea.Cmd {
	client := m.svc.API
	cache := m.svc.Cache
	reload := m.loadCachedNotifications()
	return func() tea.Msg {
		ctx := context.Background()
		if err := client.MarkNotificationRead(ctx, id); err != nil {
			return failedMsg{err: err}
		}
		if cache != nil {
			_ = cache.MarkNotificationRead(ctx, id)
		}
		return reload()
	}
}

func countUnread(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
