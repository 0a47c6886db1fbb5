package workflow_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/store"
	"github.com/nhle/facility-maintenance/internal/testutil"
	"github.com/nhle/facility-maintenance/internal/transport"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

type call struct {
	route string
	body  string
}

// backend is a scripted maintenance server.
type backend struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []call
}

func (b *backend) handle(route string, fn http.HandlerFunc) {
	b.routes[route] = fn
}

func (b *backend) reply(route, body string) {
	b.handle(route, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	})
}

func (b *backend) hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.route == route {
			n++
		}
	}
	return n
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *backend) body(route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c.route == route {
			return c.body
		}
	}
	return ""
}

type staticIdentity model.Session

func (s staticIdentity) Current() model.Session { return model.Session(s) }

type fixture struct {
	machine *workflow.Machine
	server  *backend
	cache   store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := &backend{routes: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		route := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls = append(b.calls, call{route: route, body: string(data)})
		fn, ok := b.routes[route]
		b.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found"}`))
			return
		}
		fn(w, r)
	}))
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	cache := testutil.NewTestStore(t)
	client := api.New(transport.NewClient(srv.URL, transport.CredentialFunc(func() string { return "tok" }),
		transport.WithLogger(logger)))
	who := staticIdentity{Credential: "tok", Profile: &model.User{ID: 7, Role: model.RoleUtilityWorker}}

	return &fixture{
		machine: workflow.New(client, cache, who, logger),
		server:  b,
		cache:   cache,
	}
}

func entity(t *testing.T, kind model.EntityKind, raw string) model.WorkflowEntity {
	t.Helper()
	e, err := workflow.Decode(kind, json.RawMessage(raw))
	require.NoError(t, err)
	return e
}

func TestTransitionReplacesWithServerRepresentation(t *testing.T) {
	f := newFixture(t)
	f.server.reply("PUT /preventive-maintenance/3", `{"message":"Status updated"}`)
	f.server.reply("GET /preventive-maintenance/3",
		`{"id":3,"name":"Aircon cleaning","status":"in_progress","users":[{"id":7,"firstname":"Ben","lastname":"Lim"}]}`)

	pm := entity(t, model.KindPreventiveTask, `{"id":3,"name":"Aircon","status":"pending"}`)
	got, err := f.machine.RequestTransition(context.Background(), pm, model.StatusInProgress, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, "Aircon cleaning", got.Title, "server fields win")
	require.Len(t, got.Assignees, 1)
	assert.JSONEq(t, `{"id":3,"name":"Aircon","status":"in_progress"}`, f.server.body("PUT /preventive-maintenance/3"))

	row, err := f.cache.GetEntity(context.Background(), model.KindPreventiveTask, 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, row.Status)
}

func TestTransitionUsesReturnedEntity(t *testing.T) {
	f := newFixture(t)
	f.server.reply("PUT /service-requests/5", `{"message":"ok","data":{"id":5,"status":"approved","reason":"Leak"}}`)

	sr := entity(t, model.KindServiceRequest, `{"id":5,"status":"pending"}`)
	got, err := f.machine.RequestTransition(context.Background(), sr, model.StatusApproved, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, "Leak", got.Description)
	assert.Zero(t, f.server.hits("GET /service-requests/5"))
}

func TestWorkerProgressRefetchesRequestAfterTaskUpdate(t *testing.T) {
	f := newFixture(t)
	f.server.reply("PUT /updateTaskStatus/40", `{"id":40,"service_request_id":5,"status":"in_progress"}`)
	f.server.reply("GET /service-requests/5",
		`{"id":5,"status":"in_progress","reason":"Leak","tasks":[{"id":40}]}`)

	sr := entity(t, model.KindServiceRequest, `{"id":5,"status":"approved","reason":"Leak","tasks":[{"id":40}]}`)
	got, err := f.machine.RequestTransition(context.Background(), sr, model.StatusInProgress, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(5), got.ID, "task reply must not stand in for the request")
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, 1, f.server.hits("GET /service-requests/5"))
	assert.False(t, f.machine.InFlight(model.KindServiceRequest, 5))

	row, err := f.cache.GetEntity(context.Background(), model.KindServiceRequest, 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, row.Status)
	_, err = f.cache.GetEntity(context.Background(), model.KindServiceRequest, 40)
	assert.Error(t, err)
}

func TestIllegalTransitionsNeverReachServer(t *testing.T) {
	tests := []struct {
		name   string
		kind   model.EntityKind
		raw    string
		target model.Status
	}{
		{"skip ahead", model.KindPreventiveTask, `{"id":1,"status":"pending"}`, model.StatusReported},
		{"regress", model.KindPreventiveTask, `{"id":1,"status":"in_progress"}`, model.StatusPending},
		{"from terminal", model.KindServiceRequest, `{"id":1,"status":"rejected"}`, model.StatusApproved},
		{"work before approval", model.KindServiceRequest, `{"id":1,"status":"pending"}`, model.StatusInProgress},
		{"unknown status", model.KindServiceRequest, `{"id":1,"status":"in-progress"}`, model.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := entity(t, tt.kind, tt.raw)

			_, err := f.machine.RequestTransition(context.Background(), e, tt.target, nil)
			require.ErrorIs(t, err, workflow.ErrIllegalTransition)

			we, ok := workflow.AsError(err)
			require.True(t, ok)
			assert.Equal(t, e.Status, we.From)
			assert.Equal(t, tt.target, we.To)
			assert.Zero(t, f.server.total())
		})
	}
}

func TestReportValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload *workflow.ReportPayload
		field   string
	}{
		{"missing payload", nil, "equipment"},
		{"missing equipment", &workflow.ReportPayload{Condition: "ok", Health: "good"}, "equipment"},
		{"missing condition", &workflow.ReportPayload{EquipmentID: 2, Health: "good"}, "condition"},
		{"missing health", &workflow.ReportPayload{EquipmentID: 2, Condition: "Clean filters"}, "health"},
		{"blank health", &workflow.ReportPayload{EquipmentID: 2, Condition: "Clean filters", Health: "  "}, "health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			pm := entity(t, model.KindPreventiveTask, `{"id":3,"status":"in_progress"}`)

			_, err := f.machine.RequestTransition(context.Background(), pm, model.StatusReported, tt.payload)
			require.ErrorIs(t, err, workflow.ErrValidationFailed)

			we, _ := workflow.AsError(err)
			assert.Equal(t, tt.field, we.Field)
			assert.Zero(t, f.server.total())
		})
	}
}

func TestReportSubmitsAndRefetches(t *testing.T) {
	f := newFixture(t)
	f.server.reply("POST /preventive-maintenance-report", `{"message":"Report submitted"}`)
	f.server.reply("GET /preventive-maintenance/3",
		`{"id":3,"status":"reported","reports":[{"id":1,"preventive_id":3,"inventory_id":2,"condition":"Clean","health":"good"}]}`)

	pm := entity(t, model.KindPreventiveTask, `{"id":3,"status":"in_progress"}`)
	got, err := f.machine.RequestTransition(context.Background(), pm, model.StatusReported,
		&workflow.ReportPayload{EquipmentID: 2, Condition: " Clean ", Health: "good"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusReported, got.Status)
	require.Len(t, got.Attachments.Reports, 1)
	assert.JSONEq(t,
		`{"preventive_id":3,"inventory_id":2,"condition":"Clean","health":"good"}`,
		f.server.body("POST /preventive-maintenance-report"))
	assert.Zero(t, f.server.hits("PUT /preventive-maintenance/3"))
}

func TestConcurrentTransitionIsRejectedInFlight(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.server.handle("PUT /preventive-maintenance/3", func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.Write([]byte(`{"id":3,"status":"in_progress"}`))
	})

	pm := entity(t, model.KindPreventiveTask, `{"id":3,"status":"pending"}`)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		firstErr error
		first    model.WorkflowEntity
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = f.machine.RequestTransition(ctx, pm, model.StatusInProgress, nil)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first transition never reached the server")
	}
	assert.True(t, f.machine.InFlight(model.KindPreventiveTask, 3))

	_, err := f.machine.RequestTransition(ctx, pm, model.StatusInProgress, nil)
	require.ErrorIs(t, err, workflow.ErrAlreadyInFlight)

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, model.StatusInProgress, first.Status)
	assert.Equal(t, 1, f.server.hits("PUT /preventive-maintenance/3"))
	assert.False(t, f.machine.InFlight(model.KindPreventiveTask, 3))
}

func TestServerFailureReleasesGuard(t *testing.T) {
	f := newFixture(t)
	f.server.handle("PUT /service-requests/5", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Request already handled"}`))
	})
	sr := entity(t, model.KindServiceRequest, `{"id":5,"status":"pending"}`)

	_, err := f.machine.RequestTransition(context.Background(), sr, model.StatusRejected, nil)
	te, ok := transport.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Request already handled", te.Message)
	assert.False(t, f.machine.InFlight(model.KindServiceRequest, 5))

	_, err = f.machine.RequestTransition(context.Background(), sr, model.StatusRejected, nil)
	assert.NotErrorIs(t, err, workflow.ErrAlreadyInFlight)
	assert.Equal(t, 2, f.server.hits("PUT /service-requests/5"))
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	f.server.reply("POST /comments", `{"id":9,"service_request_id":4,"user_id":7,"comment":"On my way"}`)
	f.server.reply("GET /comments/4", `[{"id":8,"comment":"Any update?"},{"id":9,"comment":"On my way"}]`)
	ctx := context.Background()

	_, err := f.machine.AddComment(ctx, 4, "   ")
	require.ErrorIs(t, err, workflow.ErrValidationFailed)
	assert.Zero(t, f.server.total())

	c, err := f.machine.AddComment(ctx, 4, "On my way")
	require.NoError(t, err)
	assert.Equal(t, int64(9), c.ID)
	assert.JSONEq(t, `{"service_request_id":4,"user_id":7,"comment":"On my way"}`, f.server.body("POST /comments"))

	thread, err := f.machine.Comments(ctx, 4)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "On my way", thread[1].Body)
}

func TestAssignAndProofRequireState(t *testing.T) {
	f := newFixture(t)
	f.server.reply("POST /service-requests/5/assign-task", `{"message":"Assigned"}`)
	f.server.reply("GET /service-requests/5",
		`{"id":5,"status":"approved","tasks":[{"id":40,"utility_workers":[{"id":7,"firstname":"Ben"}]}]}`)
	f.server.reply("POST /uploadProof/6", `{"id":6,"status":"in_progress"}`)
	ctx := context.Background()

	pending := entity(t, model.KindServiceRequest, `{"id":5,"status":"pending"}`)
	_, err := f.machine.Assign(ctx, pending, []int64{7})
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)

	approved := entity(t, model.KindServiceRequest, `{"id":5,"status":"approved"}`)
	_, err = f.machine.Assign(ctx, approved, nil)
	require.ErrorIs(t, err, workflow.ErrValidationFailed)

	got, err := f.machine.Assign(ctx, approved, []int64{7})
	require.NoError(t, err)
	require.Len(t, got.Assignees, 1)
	assert.JSONEq(t, `{"utility_worker_ids":[7]}`, f.server.body("POST /service-requests/5/assign-task"))

	_, err = f.machine.UploadProof(ctx, approved, "proof.jpg", bytes.NewReader([]byte("img")))
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)

	working := entity(t, model.KindServiceRequest, `{"id":6,"status":"in_progress"}`)
	_, err = f.machine.UploadProof(ctx, working, "proof.jpg", bytes.NewReader([]byte("img")))
	require.NoError(t, err)
	assert.Equal(t, 1, f.server.hits("POST /uploadProof/6"))
}

func TestTransitionWithConfirm(t *testing.T) {
	f := newFixture(t)
	f.server.reply("PUT /preventive-maintenance/3", `{"id":3,"status":"in_progress"}`)
	pm := entity(t, model.KindPreventiveTask, `{"id":3,"name":"Aircon","status":"pending"}`)
	ctx := context.Background()

	var asked workflow.Prompt
	cancel := func(p workflow.Prompt) workflow.Decision {
		asked = p
		return workflow.Cancelled
	}
	got, applied, err := f.machine.TransitionWithConfirm(ctx, cancel, pm, model.StatusInProgress, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, pm.Status, got.Status)
	assert.Equal(t, `Are you sure you want to make "Aircon" in_progress?`, asked.Message)
	assert.Zero(t, f.server.total())

	confirm := func(workflow.Prompt) workflow.Decision { return workflow.Confirmed }
	got, applied, err = f.machine.TransitionWithConfirm(ctx, confirm, pm, model.StatusInProgress, nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.StatusInProgress, got.Status)

	neverAsked := func(workflow.Prompt) workflow.Decision {
		t.Fatal("illegal transitions must not prompt")
		return workflow.Cancelled
	}
	_, _, err = f.machine.TransitionWithConfirm(ctx, neverAsked, got, model.StatusPending, nil)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestListCachesEntities(t *testing.T) {
	f := newFixture(t)
	f.server.reply("GET /getMyPreventiveMaintenanceTasks",
		`{"data":[{"id":3,"status":"pending","name":"Aircon"},{"status":"broken"},{"id":4,"status":"in_progress","name":"Genset"}]}`)
	ctx := context.Background()

	list, err := f.machine.List(ctx, model.KindPreventiveTask, api.ScopeAssignedToMe)
	require.NoError(t, err)
	require.Len(t, list, 2, "payload without id is skipped")

	cached := f.machine.CachedList(ctx, model.KindPreventiveTask)
	require.Len(t, cached, 2)
	assert.Equal(t, "Genset", cached[1].Title)

	one, ok := f.machine.Cached(ctx, model.KindPreventiveTask, 4)
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, one.Status)

	_, ok = f.machine.Cached(ctx, model.KindServiceRequest, 4)
	assert.False(t, ok)
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	f.server.reply("POST /service-requests", `{"message":"Created","data":{"id":12,"status":"pending","service":{"name":"Plumbing"}}}`)
	ctx := context.Background()

	_, err := f.machine.CreateRequest(ctx, model.ServiceRequestDraft{Reason: "Leak"})
	require.ErrorIs(t, err, workflow.ErrValidationFailed)

	_, err = f.machine.CreateRequest(ctx, model.ServiceRequestDraft{ServiceID: 2, Reason: " "})
	we, _ := workflow.AsError(err)
	require.NotNil(t, we)
	assert.Equal(t, "reason", we.Field)

	created, err := f.machine.CreateRequest(ctx, model.ServiceRequestDraft{ServiceID: 2, Reason: "Leak"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Plumbing", created.Title)
}

func TestFocusDiscardsStaleResults(t *testing.T) {
	f := newFixture(t)

	first := f.machine.Focus("preventive")
	second := f.machine.Focus("preventive")

	applied := ""
	assert.False(t, f.machine.Apply(first, func() { applied = "first" }))
	assert.True(t, f.machine.Apply(second, func() { applied = "second" }))
	assert.Equal(t, "second", applied)

	f.machine.Blur("preventive")
	assert.False(t, f.machine.Current(second))

	other := f.machine.Focus("services")
	assert.True(t, f.machine.Current(other), "screens are tracked independently")
	assert.False(t, f.machine.Current(workflow.FocusToken{}))
}
