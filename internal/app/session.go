package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/notify"
	"github.com/nhle/facility-maintenance/internal/session"
	"github.com/nhle/facility-maintenance/internal/ui/login"
)

const (
	noticeRoleNotAllowed = "This account can only sign in on the web portal."
	noticeSessionExpired = "Your session has expired. Please sign in again."
)

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	result session.LoginResult
	err    error
}

// loggedOutMsg is sent once the session has been cleared.
type loggedOutMsg struct {
	notice string
}

// identityMsg carries the push identity shown in settings.
type identityMsg struct {
	identity model.NotificationIdentity
}

type configSavedMsg struct {
	err error
}

// login acquires the push identity and authenticates. A missing push
// token never blocks login.
func (m *Model) login(creds login.SubmitMsg) tea.Cmd {
	mgr := m.svc.Session
	provider := m.svc.Notify
	return func() tea.Msg {
		ctx := context.Background()
		identity := provider.Acquire(ctx)
		res, err := mgr.Login(ctx, creds.Email, creds.Password, identity.Token)
		return loginResultMsg{result: res, err: err}
	}
}

func (m Model) handleLoginResult(msg loginResultMsg) (Model, tea.Cmd) {
	if msg.err != nil {
		m.log.WithError(msg.err).Info("login failed")
		m.loginView.SetNotice(errorText(msg.err))
		return m, m.loginView.Init()
	}
	if msg.result.Outcome == session.LoginRoleNotAllowed {
		m.loginView.SetNotice(noticeRoleNotAllowed)
		return m, m.loginView.Init()
	}

	m.loginView.SetNotice("")
	m.mountShell()
	return m, m.enterShell()
}

// logout ends the session and drops cached server data.
func (m *Model) logout(notice string) tea.Cmd {
	m.poller.Stop()
	mgr := m.svc.Session
	cache := m.svc.Cache
	log := m.log
	return func() tea.Msg {
		ctx := context.Background()
		mgr.Logout(ctx)
		if cache != nil {
			if err := cache.Clear(ctx); err != nil {
				log.WithError(err).Warn("clearing cache failed")
			}
		}
		return loggedOutMsg{notice: notice}
	}
}

func (m *Model) loadIdentity() tea.Cmd {
	provider := m.svc.Notify
	return func() tea.Msg {
		return identityMsg{identity: provider.Acquire(context.Background())}
	}
}

// saveNotifications persists new notification settings and re-registers
// the device under them.
func (m *Model) saveNotifications(n model.NotificationsConfig) tea.Cmd {
	m.svc.Config.Notifications = n
	m.svc.Notify = notify.NewProvider(
		notify.NewDevicePlatform(n.Enabled),
		n.ProjectID,
		m.svc.Log,
	)
	cfg := *m.svc.Config
	path := m.svc.ConfigPath
	return func() tea.Msg {
		return configSavedMsg{err: model.SaveConfig(path, &cfg)}
	}
}
