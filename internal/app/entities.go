package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/router"
	"github.com/nhle/facility-maintenance/internal/ui/detail"
	"github.com/nhle/facility-maintenance/internal/ui/taskform"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// listLoadedMsg carries a tab's entities fetched under token.
type listLoadedMsg struct {
	tab    router.Tab
	token  workflow.FocusToken
	items  []model.WorkflowEntity
	err    error
	cached bool
}

// detailLoadedMsg carries the refreshed entity for the detail view.
type detailLoadedMsg struct {
	token    workflow.FocusToken
	entity   model.WorkflowEntity
	comments []model.Comment
	err      error
}

// commentsLoadedMsg carries a re-fetched comment thread.
type commentsLoadedMsg struct {
	token    workflow.FocusToken
	comments []model.Comment
	err      error
}

// entityUpdatedMsg is sent after a transition or side-data call.
type entityUpdatedMsg struct {
	entity  model.WorkflowEntity
	applied bool
	err     error
}

type reportOptionsMsg struct {
	entity    model.WorkflowEntity
	inventory []model.InventoryItem
	reports   []model.Report
	err       error
}

type workersLoadedMsg struct {
	entity  model.WorkflowEntity
	workers []model.User
	err     error
}

type servicesLoadedMsg struct {
	services []model.Service
	err      error
}

type requestCreatedMsg struct {
	entity *model.WorkflowEntity
	err    error
}

// focusTab starts a new visit of the active list tab: the cached list is
// painted first, then replaced by the server's.
func (m *Model) focusTab() tea.Cmd {
	tab, ok := m.currentTab()
	if !ok {
		return nil
	}
	src, ok := tabSource(tab, m.role())
	if !ok {
		return nil
	}

	mach := m.svc.Workflow
	tok := mach.Focus(string(tab))

	cached := func() tea.Msg {
		items := mach.CachedList(context.Background(), src.kind)
		return listLoadedMsg{tab: tab, token: tok, items: items, cached: true}
	}
	fresh := func() tea.Msg {
		items, err := mach.List(context.Background(), src.kind, src.scope)
		return listLoadedMsg{tab: tab, token: tok, items: items, err: err}
	}
	return tea.Sequence(cached, fresh)
}

func (m Model) handleListLoaded(msg listLoadedMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.svc.Workflow.Apply(msg.token, func() {
		if msg.err != nil {
			m.showError(msg.err)
			return
		}
		// An empty cache must not replace the loading placeholder.
		if msg.cached && len(msg.items) == 0 {
			return
		}
		l, ok := m.lists[msg.tab]
		if !ok {
			return
		}
		cmd = l.SetItems(toListItems(msg.items))
		m.lists[msg.tab] = l
	})
	return m, cmd
}

// selectedEntity finds id in the active list.
func (m Model) selectedEntity(id int64) (model.WorkflowEntity, bool) {
	tab, ok := m.currentTab()
	if !ok {
		return model.WorkflowEntity{}, false
	}
	if l, ok := m.lists[tab]; ok {
		if it, ok := l.SelectedItem(); ok && it.GetID() == id {
			e, ok := it.(model.WorkflowEntity)
			return e, ok
		}
	}
	if e, ok := m.detail.Entity(); ok && e.ID == id {
		return e, true
	}
	return model.WorkflowEntity{}, false
}

// openDetail shows an entity and refreshes it from the server.
func (m Model) openDetail(id int64) (Model, tea.Cmd) {
	e, ok := m.selectedEntity(id)
	if !ok {
		return m, nil
	}
	if tab, ok := m.currentTab(); ok {
		m.svc.Workflow.Blur(string(tab))
	}

	m.currentView = ViewDetail
	m.detail.SetEntity(e, m.role())
	m.detail.SetLoading(true)

	mach := m.svc.Workflow
	tok := mach.Focus(screenDetail)
	m.detailToken = tok
	return m, func() tea.Msg {
		ctx := context.Background()
		fresh, err := mach.Refresh(ctx, e.Kind, e.ID)
		if err != nil {
			return detailLoadedMsg{token: tok, entity: e, err: err}
		}
		out := detailLoadedMsg{token: tok, entity: fresh}
		if fresh.Kind == model.KindServiceRequest {
			out.comments, out.err = mach.Comments(ctx, fresh.ID)
		}
		return out
	}
}

func (m Model) handleDetailLoaded(msg detailLoadedMsg) (Model, tea.Cmd) {
	m.svc.Workflow.Apply(msg.token, func() {
		m.detail.SetEntity(msg.entity, m.role())
		if msg.err != nil {
			m.showError(msg.err)
			return
		}
		if msg.comments != nil {
			m.detail.SetComments(msg.comments)
		}
	})
	return m, nil
}

// handleAction starts the flow behind a detail-view action.
func (m Model) handleAction(msg detail.ActionMsg) (Model, tea.Cmd) {
	e := msg.Entity
	switch msg.Action {
	case detail.ActionReport:
		return m, m.loadReportOptions(e)

	case detail.ActionAssign:
		return m, m.loadWorkers(e)

	case detail.ActionProof:
		m.currentView = ViewTaskForm
		return m, m.taskFormView.StartProof(e)
	}

	target := msg.Action.Target()
	if target == "" {
		return m, nil
	}
	return m.askConfirm(e, target, nil)
}

// askConfirm opens the confirmation dialog. Illegal transitions are
// reported without prompting.
func (m Model) askConfirm(e model.WorkflowEntity, target model.Status, payload *workflow.ReportPayload) (Model, tea.Cmd) {
	if !workflow.Legal(e.Kind, e.Status, target) {
		m.showError(&workflow.Error{
			Code: workflow.CodeIllegalTransition,
			Kind: e.Kind,
			ID:   e.ID,
			From: e.Status,
			To:   target,
		})
		return m, nil
	}
	m.currentView = ViewConfirm
	return m, m.confirmView.Ask(workflow.NewPrompt(e, target), payload)
}

// transition performs a confirmed transition. The decision collected by
// the dialog is replayed to the machine.
func (m *Model) transition(p workflow.Prompt, d workflow.Decision, payload *workflow.ReportPayload) tea.Cmd {
	m.setBusy(p.Entity.ID, true)
	mach := m.svc.Workflow
	return func() tea.Msg {
		decide := func(workflow.Prompt) workflow.Decision { return d }
		updated, applied, err := mach.TransitionWithConfirm(
			context.Background(), decide, p.Entity, p.Target, payload,
		)
		return entityUpdatedMsg{entity: updated, applied: applied, err: err}
	}
}

func (m *Model) setBusy(id int64, busy bool) {
	for tab, l := range m.lists {
		l.SetBusy(id, busy)
		m.lists[tab] = l
	}
}

func (m Model) handleEntityUpdated(msg entityUpdatedMsg) (Model, tea.Cmd) {
	m.setBusy(msg.entity.ID, false)
	if msg.err != nil {
		m.showError(msg.err)
		return m, nil
	}
	if cur, ok := m.detail.Entity(); ok && cur.ID == msg.entity.ID && cur.Kind == msg.entity.Kind {
		m.detail.SetEntity(msg.entity, m.role())
	}
	if msg.applied {
		m.notice = fmt.Sprintf("%q is now %s.", msg.entity.Title, msg.entity.Status)
	}
	return m, nil
}

func (m *Model) loadReportOptions(e model.WorkflowEntity) tea.Cmd {
	client := m.svc.API
	return func() tea.Msg {
		ctx := context.Background()
		inventory, err := client.ListInventory(ctx)
		if err != nil {
			return reportOptionsMsg{entity: e, err: err}
		}
		reports, err := client.ListReports(ctx)
		if err != nil {
			return reportOptionsMsg{entity: e, err: err}
		}
		return reportOptionsMsg{entity: e, inventory: inventory, reports: reports}
	}
}

func (m *Model) loadWorkers(e model.WorkflowEntity) tea.Cmd {
	client := m.svc.API
	return func() tea.Msg {
		workers, err := client.ListUsersByRole(context.Background(), model.RoleUtilityWorker)
		return workersLoadedMsg{entity: e, workers: workers, err: err}
	}
}

// handleTaskForm finishes a report, assignment or proof form.
func (m Model) handleTaskForm(msg taskform.SubmittedMsg) (Model, tea.Cmd) {
	m.currentView = ViewDetail
	e := msg.Entity
	mach := m.svc.Workflow

	switch msg.Mode {
	case taskform.ModeReport:
		return m.askConfirm(e, model.StatusReported, msg.Report)

	case taskform.ModeAssign:
		ids := msg.WorkerIDs
		m.setBusy(e.ID, true)
		return m, func() tea.Msg {
			updated, err := mach.Assign(context.Background(), e, ids)
			return entityUpdatedMsg{entity: updated, err: err}
		}

	case taskform.ModeProof:
		path := msg.ProofPath
		m.setBusy(e.ID, true)
		return m, func() tea.Msg {
			f, err := os.Open(path)
			if err != nil {
				return entityUpdatedMsg{entity: e, err: fmt.Errorf("opening proof image: %w", err)}
			}
			defer f.Close()
			updated, err := mach.UploadProof(context.Background(), e, filepath.Base(path), f)
			return entityUpdatedMsg{entity: updated, err: err}
		}
	}
	return m, nil
}

func (m *Model) addComment(msg detail.CommentMsg) tea.Cmd {
	mach := m.svc.Workflow
	tok := m.detailToken
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := mach.AddComment(ctx, msg.EntityID, msg.Body); err != nil {
			return commentsLoadedMsg{token: tok, err: err}
		}
		comments, err := mach.Comments(ctx, msg.EntityID)
		return commentsLoadedMsg{token: tok, comments: comments, err: err}
	}
}

func (m *Model) startNewRequest() tea.Cmd {
	m.previousView = m.currentView
	client := m.svc.API
	return func() tea.Msg {
		services, err := client.ListServices(context.Background())
		return servicesLoadedMsg{services: services, err: err}
	}
}

func (m *Model) createRequest(draft model.ServiceRequestDraft) tea.Cmd {
	mach := m.svc.Workflow
	return func() tea.Msg {
		e, err := mach.CreateRequest(context.Background(), draft)
		return requestCreatedMsg{entity: e, err: err}
	}
}
