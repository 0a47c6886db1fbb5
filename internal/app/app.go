package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/keys"
	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/notify"
	"github.com/nhle/facility-maintenance/internal/router"
	"github.com/nhle/facility-maintenance/internal/session"
	"github.com/nhle/facility-maintenance/internal/store"
	appsync "github.com/nhle/facility-maintenance/internal/sync"
	"github.com/nhle/facility-maintenance/internal/ui"
	"github.com/nhle/facility-maintenance/internal/ui/command"
	"github.com/nhle/facility-maintenance/internal/ui/confirm"
	"github.com/nhle/facility-maintenance/internal/ui/detail"
	"github.com/nhle/facility-maintenance/internal/ui/entitylist"
	helpview "github.com/nhle/facility-maintenance/internal/ui/help"
	"github.com/nhle/facility-maintenance/internal/ui/login"
	"github.com/nhle/facility-maintenance/internal/ui/requestform"
	"github.com/nhle/facility-maintenance/internal/ui/settings"
	"github.com/nhle/facility-maintenance/internal/ui/taskform"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewDetail
	ViewSettings
	ViewHelp
	ViewCommand
	ViewConfirm
	ViewTaskForm
	ViewRequestForm
	ViewNotifications
)

// Services bundles the components the UI drives.
type Services struct {
	Session    *session.Manager
	Workflow   *workflow.Machine
	API        *api.Client
	Notify     *notify.Provider
	Cache      store.Store
	Config     *model.AppConfig
	ConfigPath string
	Log        logrus.FieldLogger
}

// Model is the root Bubble Tea model. It mounts the shell chosen by the
// router for the current session and routes messages to the active view.
type Model struct {
	svc    Services
	log    logrus.FieldLogger
	poller *appsync.Poller

	shell        router.Shell
	activeTab    int
	currentView  ViewState
	previousView ViewState

	layout            ui.Layout
	keys              *keys.KeyMap
	loginView         login.Model
	lists             map[router.Tab]entitylist.Model
	detail            detail.Model
	settingsView      settings.Model
	helpView          helpview.Model
	commandView       command.Model
	confirmView       confirm.Model
	taskFormView      taskform.Model
	requestFormView   requestform.Model
	notificationsView entitylist.Model

	initCmd     tea.Cmd
	detailToken workflow.FocusToken
	listening   bool
	ready       bool
	unreadCount int
	errMessage  string
	notice      string
}

// New creates the root model. The session must already be hydrated.
func New(svc Services) Model {
	k := keys.DefaultKeyMap()
	log := svc.Log.WithField("component", "app")

	m := Model{
		svc:               svc,
		log:               log,
		poller:            appsync.New(svc.Log),
		keys:              k,
		loginView:         login.New(80, 24),
		lists:             make(map[router.Tab]entitylist.Model),
		detail:            detail.New(k, 80, 24),
		settingsView:      settings.New(k, 80, 24),
		helpView:          helpview.New(k, 80, 24),
		commandView:       command.New(80, 24),
		confirmView:       confirm.New(80),
		taskFormView:      taskform.New(80, 24),
		requestFormView:   requestform.New(80, 24),
		notificationsView: entitylist.New("Notifications", "No notifications.", k, 80, 24),
	}
	m.poller.Register(appsync.Feed{
		Name:     feedNotifications,
		Interval: notificationPollInterval,
		Fetch:    fetchNotifications(svc.API, svc.Cache),
	})
	m.mountShell()
	if m.shell.Name == router.ShellLogin {
		m.initCmd = m.loginView.Init()
	} else {
		m.initCmd = m.enterShell()
	}
	return m
}

// Init returns the commands prepared for the initial shell.
func (m Model) Init() tea.Cmd {
	return m.initCmd
}

// mountShell re-evaluates the router and rebuilds the per-tab views.
func (m *Model) mountShell() {
	s := m.svc.Session.Current()
	m.shell = router.Route(s)
	m.activeTab = 0
	m.lists = make(map[router.Tab]entitylist.Model)
	m.detail.Clear()

	if m.shell.Name == router.ShellLogin {
		m.currentView = ViewLogin
		return
	}

	w, h := m.contentSize()
	for _, tab := range m.shell.Tabs {
		if src, ok := tabSource(tab, s.Role()); ok {
			m.lists[tab] = entitylist.New(src.title, src.empty, m.keys, w, h)
		}
	}
	m.settingsView.SetProfile(s.Profile)
	m.settingsView.SetConfig(*m.svc.Config)
	m.currentView = m.tabView()
}

// enterShell starts the background work for a signed-in shell.
func (m *Model) enterShell() tea.Cmd {
	cmds := []tea.Cmd{m.focusTab(), m.loadUnreadCount(), m.loadIdentity()}
	if start := m.poller.Start(); start != nil && !m.listening {
		m.listening = true
		cmds = append(cmds, start)
	}
	return tea.Batch(cmds...)
}

func (m Model) contentSize() (int, int) {
	if !m.ready {
		return 80, 24
	}
	return m.layout.ContentWidth(), m.layout.ContentHeight()
}

func (m Model) currentTab() (router.Tab, bool) {
	if m.activeTab < 0 || m.activeTab >= len(m.shell.Tabs) {
		return "", false
	}
	return m.shell.Tabs[m.activeTab], true
}

func (m Model) tabView() ViewState {
	if tab, ok := m.currentTab(); ok && tab == router.TabSettings {
		return ViewSettings
	}
	return ViewList
}

func (m Model) role() model.Role {
	return m.svc.Session.Current().Role()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(msg.Width, msg.Height)
		for tab, l := range m.lists {
			l.SetSize(w, h)
			m.lists[tab] = l
		}
		m.detail.SetSize(w, h)
		m.settingsView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.confirmView.SetSize(w)
		m.taskFormView.SetSize(w, h)
		m.requestFormView.SetSize(w, h)
		m.notificationsView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case login.SubmitMsg:
		return m, m.login(msg)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case loggedOutMsg:
		m.poller.Stop()
		m.unreadCount = 0
		m.errMessage = ""
		m.mountShell()
		m.loginView.SetNotice(msg.notice)
		return m, m.loginView.Init()

	case appsync.SyncResultMsg:
		return m.handleSyncResult(msg)

	case listLoadedMsg:
		return m.handleListLoaded(msg)

	case entitylist.SelectedMsg:
		if m.currentView == ViewNotifications {
			return m, m.markNotificationRead(msg.ID)
		}
		return m.openDetail(msg.ID)

	case detailLoadedMsg:
		return m.handleDetailLoaded(msg)

	case detail.BackMsg:
		m.svc.Workflow.Blur(screenDetail)
		m.detail.Clear()
		m.currentView = ViewList
		return m, m.focusTab()

	case detail.ActionMsg:
		return m.handleAction(msg)

	case detail.CommentMsg:
		return m, m.addComment(msg)

	case commentsLoadedMsg:
		m.svc.Workflow.Apply(msg.token, func() {
			if msg.err != nil {
				m.showError(msg.err)
				return
			}
			m.detail.SetComments(msg.comments)
		})
		return m, nil

	case reportOptionsMsg:
		if msg.err != nil {
			m.currentView = ViewDetail
			m.showError(msg.err)
			return m, nil
		}
		m.currentView = ViewTaskForm
		return m, m.taskFormView.StartReport(msg.entity, msg.inventory, msg.reports)

	case workersLoadedMsg:
		if msg.err != nil {
			m.currentView = ViewDetail
			m.showError(msg.err)
			return m, nil
		}
		m.currentView = ViewTaskForm
		return m, m.taskFormView.StartAssign(msg.entity, msg.workers)

	case taskform.SubmittedMsg:
		return m.handleTaskForm(msg)

	case taskform.CancelMsg:
		m.currentView = ViewDetail
		return m, nil

	case confirm.DecidedMsg:
		m.currentView = ViewDetail
		if msg.Decision != workflow.Confirmed {
			return m, nil
		}
		return m, m.transition(msg.Prompt, msg.Decision, msg.Payload)

	case entityUpdatedMsg:
		return m.handleEntityUpdated(msg)

	case servicesLoadedMsg:
		if msg.err != nil {
			m.currentView = m.previousView
			m.showError(msg.err)
			return m, nil
		}
		m.currentView = ViewRequestForm
		return m, m.requestFormView.Start(msg.services)

	case requestform.SubmittedMsg:
		m.currentView = m.tabView()
		return m, m.createRequest(msg.Draft)

	case requestform.CancelMsg:
		m.currentView = m.tabView()
		return m, nil

	case requestCreatedMsg:
		if msg.err != nil {
			m.showError(msg.err)
			return m, nil
		}
		m.notice = "Service request submitted."
		return m, m.focusTab()

	case notificationsLoadedMsg:
		m.unreadCount = countUnread(msg.items)
		return m, m.notificationsView.SetItems(toListItems(msg.items))

	case failedMsg:
		m.showError(msg.err)
		return m, nil

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil

	case identityMsg:
		m.settingsView.SetIdentity(msg.identity)
		return m, nil

	case settings.SaveMsg:
		return m, m.saveNotifications(msg.Notifications)

	case configSavedMsg:
		if msg.err != nil {
			m.showError(msg.err)
			return m, nil
		}
		m.settingsView.SetConfig(*m.svc.Config)
		m.settingsView.SetStatus("Settings saved.")
		return m, m.loadIdentity()

	case settings.LogoutMsg:
		return m, m.logout("")

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(command.Name(msg))

	case command.UnknownMsg:
		m.currentView = m.previousView
		m.errMessage = fmt.Sprintf("unknown command %q", string(msg))
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleGlobalKey(msg)
		if handled {
			return next, cmd
		}
		m = next
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// capturesKeys reports whether the active view owns every keystroke.
func (m Model) capturesKeys() bool {
	switch m.currentView {
	case ViewLogin, ViewCommand, ViewConfirm, ViewTaskForm, ViewRequestForm:
		return true
	case ViewDetail:
		return m.detail.Typing()
	case ViewSettings:
		return m.settingsView.Editing()
	}
	return false
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return m, tea.Quit, true
	}
	if m.capturesKeys() {
		if m.currentView == ViewCommand && key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}

	// Any key dismisses a shown error.
	m.errMessage = ""
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit) && (m.currentView == ViewList || m.currentView == ViewSettings):
		m.poller.Stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Back) && (m.currentView == ViewHelp || m.currentView == ViewNotifications):
		m.currentView = m.previousView
		if m.currentView == ViewList {
			return m, m.focusTab(), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.NextTab) && m.onTabs():
		return m, m.switchTab(1), true

	case key.Matches(msg, m.keys.PrevTab) && m.onTabs():
		return m, m.switchTab(-1), true

	case key.Matches(msg, m.keys.Refresh):
		switch m.currentView {
		case ViewList:
			return m, m.focusTab(), true
		case ViewDetail:
			if e, ok := m.detail.Entity(); ok {
				next, cmd := m.openDetail(e.ID)
				return next, cmd, true
			}
		case ViewNotifications:
			m.poller.Refresh(feedNotifications)
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Notifications) && m.currentView != ViewNotifications:
		return m, m.openNotifications(), true

	case key.Matches(msg, m.keys.NewRequest) && m.shell.NewRequestAction && m.currentView == ViewList:
		return m, m.startNewRequest(), true
	}
	return m, nil, false
}

func (m Model) onTabs() bool {
	return m.currentView == ViewList || m.currentView == ViewSettings
}

// switchTab moves to the neighbouring tab and focuses it.
func (m *Model) switchTab(delta int) tea.Cmd {
	n := len(m.shell.Tabs)
	if n == 0 {
		return nil
	}
	if tab, ok := m.currentTab(); ok {
		m.svc.Workflow.Blur(string(tab))
	}
	m.activeTab = (m.activeTab + delta + n) % n
	m.currentView = m.tabView()
	return m.focusTab()
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		if tab, ok := m.currentTab(); ok {
			if l, ok := m.lists[tab]; ok {
				l, cmd = l.Update(msg)
				m.lists[tab] = l
			}
		}
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	case ViewTaskForm:
		m.taskFormView, cmd = m.taskFormView.Update(msg)
	case ViewRequestForm:
		m.requestFormView, cmd = m.requestFormView.Update(msg)
	case ViewNotifications:
		m.notificationsView, cmd = m.notificationsView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.currentView == ViewLogin {
		return m.loginView.View()
	}

	title := "Facility Maintenance"
	if m.unreadCount > 0 {
		title = fmt.Sprintf("Facility Maintenance [%d new]", m.unreadCount)
	}
	header := m.layout.RenderHeader(title, m.headerStatus())

	tabNames := make([]string, len(m.shell.Tabs))
	for i, t := range m.shell.Tabs {
		tabNames[i] = tabLabel(t)
	}
	tabs := m.layout.RenderTabs(tabNames, m.activeTab)

	var bar string
	if m.errMessage != "" {
		bar = m.layout.RenderErrorBar(m.errMessage)
	} else if m.notice != "" {
		bar = m.layout.RenderStatusBar(m.notice)
	} else {
		bar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, tabs, m.renderContent(), bar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		if tab, ok := m.currentTab(); ok {
			if l, ok := m.lists[tab]; ok {
				return l.View()
			}
		}
		return ""
	case ViewDetail:
		return m.detail.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirm:
		return m.confirmView.View()
	case ViewTaskForm:
		return m.taskFormView.View()
	case ViewRequestForm:
		return m.requestFormView.View()
	case ViewNotifications:
		return m.notificationsView.View()
	default:
		return ""
	}
}

// headerStatus shows who is signed in.
func (m Model) headerStatus() string {
	s := m.svc.Session.Current()
	if s.Profile == nil {
		return ""
	}
	return s.Profile.DisplayName()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return m.detail.Hints()
	case ViewSettings:
		return m.settingsView.Hints()
	case ViewConfirm, ViewTaskForm, ViewRequestForm:
		return "enter submit | esc cancel"
	case ViewNotifications:
		return "enter mark read | r refresh | esc back"
	default:
		hints := "q quit | ? help | tab next tab | enter open | r refresh | N notifications"
		if m.shell.NewRequestAction {
			hints += " | n new request"
		}
		return hints
	}
}

// showError puts err on the error bar.
func (m *Model) showError(err error) {
	m.errMessage = errorText(err)
	m.log.WithError(err).Debug("shown to user")
}

// executeCommand handles a command from the command palette.
func (m Model) executeCommand(name command.Name) (tea.Model, tea.Cmd) {
	signedIn := m.shell.Name != router.ShellLogin
	switch name {
	case command.Quit:
		m.poller.Stop()
		return m, tea.Quit
	case command.Help:
		m.currentView = ViewHelp
		return m, nil
	}
	if !signedIn {
		return m, nil
	}

	switch name {
	case command.Refresh:
		m.poller.Refresh(feedNotifications)
		return m, m.focusTab()
	case command.Notifications:
		return m, m.openNotifications()
	case command.NewRequest:
		if !m.shell.NewRequestAction {
			m.errMessage = "new requests are made from the faculty app"
			return m, nil
		}
		return m, m.startNewRequest()
	case command.Settings:
		for i, t := range m.shell.Tabs {
			if t == router.TabSettings {
				m.activeTab = i
				m.currentView = ViewSettings
			}
		}
		return m, nil
	case command.Logout:
		return m, m.logout("")
	}
	return m, nil
}
