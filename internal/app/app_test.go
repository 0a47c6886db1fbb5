package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/credential"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/notify"
	"github.com/nhle/facility-maintenance/internal/router"
	"github.com/nhle/facility-maintenance/internal/session"
	"github.com/nhle/facility-maintenance/internal/testutil"
	"github.com/nhle/facility-maintenance/internal/transport"
	"github.com/nhle/facility-maintenance/internal/ui/login"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

type server struct {
	mu     sync.Mutex
	routes map[string]string
	bodies map[string]string
}

func (s *server) set(route, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[route] = body
}

func (s *server) body(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[route]
}

func newServices(t *testing.T) (Services, *server) {
	t.Helper()
	srv := &server{routes: make(map[string]string), bodies: make(map[string]string)}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		data, _ := io.ReadAll(r.Body)

		srv.mu.Lock()
		srv.bodies[route] = string(data)
		body, ok := srv.routes[route]
		srv.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(hs.Close)

	log, _ := test.NewNullLogger()
	var mgr *session.Manager
	client := api.New(transport.NewClient(hs.URL,
		transport.CredentialFunc(func() string { return mgr.Credential() }),
		transport.WithLogger(log)))
	mgr = session.NewManager(credential.New(keyring.NewArrayKeyring(nil)), client, log)
	cache := testutil.NewTestStore(t)

	platform := notify.NewDevicePlatform(true)
	platform.Hostname = func() (string, error) { return "lab-3", nil }

	return Services{
		Session:    mgr,
		Workflow:   workflow.New(client, cache, mgr, log),
		API:        client,
		Notify:     notify.NewProvider(platform, "fm-project", log),
		Cache:      cache,
		Config:     &model.AppConfig{},
		ConfigPath: t.TempDir() + "/config.yaml",
		Log:        log,
	}, srv
}

func newModel(t *testing.T, svc Services) Model {
	t.Helper()
	m := New(svc)
	t.Cleanup(m.poller.Stop)
	return m
}

const workerLogin = `{"user":{"id":3,"firstname":"Lee","lastname":"Park","type":"utility_worker"},"token":"tok-3"}`

func TestStartsOnLoginShellWithoutSession(t *testing.T) {
	svc, _ := newServices(t)
	m := newModel(t, svc)

	assert.Equal(t, router.ShellLogin, m.shell.Name)
	assert.Equal(t, ViewLogin, m.currentView)
}

func TestLoginMountsRoleShell(t *testing.T) {
	svc, srv := newServices(t)
	srv.set("POST /login", workerLogin)
	m := newModel(t, svc)

	msg := m.login(login.SubmitMsg{Email: "lee@example.edu", Password: "pw"})()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.Equal(t, router.ShellMain, m.shell.Name)
	assert.Equal(t, []router.Tab{router.TabHome, router.TabPreventiveTask, router.TabSettings}, m.shell.Tabs)
	assert.Equal(t, ViewList, m.currentView)

	token := gjson.Get(srv.body("POST /login"), "expo_push_token").String()
	assert.Contains(t, token, "DeviceToken[")
}

func TestLoginWithoutPushPermissionStillSignsIn(t *testing.T) {
	svc, srv := newServices(t)
	srv.set("POST /login", workerLogin)
	log, _ := test.NewNullLogger()
	svc.Notify = notify.NewProvider(notify.NewDevicePlatform(false), "fm-project", log)
	m := newModel(t, svc)

	next, _ := m.Update(m.login(login.SubmitMsg{Email: "lee@example.edu", Password: "pw"})())
	m = next.(Model)

	assert.Equal(t, router.ShellMain, m.shell.Name)
	assert.Equal(t, "null", gjson.Get(srv.body("POST /login"), "expo_push_token").Raw)
}

func TestGeneralServiceStaysOnLogin(t *testing.T) {
	svc, srv := newServices(t)
	srv.set("POST /login", `{"user":{"id":1,"type":"general_service"},"token":"tok"}`)
	m := newModel(t, svc)

	next, _ := m.Update(m.login(login.SubmitMsg{Email: "gs@example.edu", Password: "pw"})())
	m = next.(Model)

	assert.Equal(t, router.ShellLogin, m.shell.Name)
	assert.True(t, svc.Session.Current().Empty())
}

func TestFailedLoginStaysOnLogin(t *testing.T) {
	svc, _ := newServices(t)
	m := newModel(t, svc)

	res, ok := m.login(login.SubmitMsg{Email: "lee@example.edu", Password: "bad"})().(loginResultMsg)
	require.True(t, ok)
	require.Error(t, res.err)

	next, _ := m.Update(res)
	assert.Equal(t, router.ShellLogin, next.(Model).shell.Name)
}

func signedIn(t *testing.T, svc Services, srv *server, body string) Model {
	t.Helper()
	srv.set("POST /login", body)
	_, err := svc.Session.Login(context.Background(), "x@example.edu", "pw", nil)
	require.NoError(t, err)
	return newModel(t, svc)
}

func TestFacultyShell(t *testing.T) {
	svc, srv := newServices(t)
	m := signedIn(t, svc, srv, `{"user":{"id":9,"type":"faculty"},"token":"tok"}`)

	assert.Equal(t, router.ShellFaculty, m.shell.Name)
	assert.True(t, m.shell.NewRequestAction)
	assert.Contains(t, m.lists, router.TabServices)
	assert.NotContains(t, m.lists, router.TabSettings)
}

func TestStaleListResultIsDropped(t *testing.T) {
	svc, srv := newServices(t)
	m := signedIn(t, svc, srv, workerLogin)

	stale := svc.Workflow.Focus(string(router.TabHome))
	m.switchTab(1)

	item := model.WorkflowEntity{ID: 1, Kind: model.KindServiceRequest, Status: model.StatusApproved, Title: "Leak"}
	m, _ = m.handleListLoaded(listLoadedMsg{tab: router.TabHome, token: stale, items: []model.WorkflowEntity{item}})
	assert.Zero(t, m.lists[router.TabHome].Len())

	tok := svc.Workflow.Focus(string(router.TabHome))
	m, _ = m.handleListLoaded(listLoadedMsg{tab: router.TabHome, token: tok, items: []model.WorkflowEntity{item}})
	assert.Equal(t, 1, m.lists[router.TabHome].Len())
}

func TestIllegalActionNeverPrompts(t *testing.T) {
	svc, srv := newServices(t)
	m := signedIn(t, svc, srv, workerLogin)
	m.currentView = ViewDetail

	done := model.WorkflowEntity{ID: 4, Kind: model.KindServiceRequest, Status: model.StatusCompleted}
	m, cmd := m.askConfirm(done, model.StatusInProgress, nil)

	assert.Nil(t, cmd)
	assert.Equal(t, ViewDetail, m.currentView)
	assert.Equal(t, "cannot move from completed to in_progress", m.errMessage)
}

func TestLegalActionPrompts(t *testing.T) {
	svc, srv := newServices(t)
	m := signedIn(t, svc, srv, workerLogin)

	approved := model.WorkflowEntity{ID: 4, Kind: model.KindServiceRequest, Status: model.StatusApproved, Title: "Leak"}
	m, cmd := m.askConfirm(approved, model.StatusInProgress, nil)

	assert.NotNil(t, cmd)
	assert.Equal(t, ViewConfirm, m.currentView)
}

func TestLogoutReturnsToLogin(t *testing.T) {
	svc, srv := newServices(t)
	srv.set("POST /logout", `{}`)
	m := signedIn(t, svc, srv, workerLogin)
	require.Equal(t, router.ShellMain, m.shell.Name)

	next, _ := m.Update(m.logout("")())
	m = next.(Model)

	assert.Equal(t, router.ShellLogin, m.shell.Name)
	assert.Equal(t, ViewLogin, m.currentView)
	assert.True(t, svc.Session.Current().Empty())
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &transport.Error{Status: 422, Message: "The reason field is required."}, "The reason field is required."},
		{"wrapped server message", errors.Join(errors.New("ctx"), &transport.Error{Status: 500, Message: "boom"}), "boom"},
		{"validation", &workflow.Error{Code: workflow.CodeValidationFailed, Field: "utility_worker_ids"}, "utility worker ids is required"},
		{"in flight", workflow.ErrAlreadyInFlight, "this item is already being updated"},
		{"plain", errors.New("disk full"), "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
}

func TestTabSource(t *testing.T) {
	src, ok := tabSource(router.TabHome, model.RoleUtilityWorker)
	require.True(t, ok)
	assert.Equal(t, api.ScopeAssignedToMe, src.scope)

	src, ok = tabSource(router.TabHome, model.RoleGeneralService)
	require.True(t, ok)
	assert.Equal(t, api.ScopeAll, src.scope)

	src, ok = tabSource(router.TabServices, model.RoleFaculty)
	require.True(t, ok)
	assert.Equal(t, api.ScopeRequestedByMe, src.scope)

	_, ok = tabSource(router.TabSettings, model.RoleFaculty)
	assert.False(t, ok)
}

func TestCountUnread(t *testing.T) {
	assert.Equal(t, 1, countUnread([]model.Notification{{ID: 1}, {ID: 2, Read: true}}))
	assert.Zero(t, countUnread(nil))
}
