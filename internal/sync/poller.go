package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/facility-maintenance/internal/transport"
)

// SyncState represents the current state of a feed.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state for a single feed.
type SyncStatus struct {
	Feed     string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a feed fetch completes.
type SyncResultMsg struct {
	Feed  string
	Value any
	Error error

	// Unauthorized is set when the server rejected the credential.
	Unauthorized bool
}

// Feed is a periodically refreshed piece of server state.
type Feed struct {
	Name     string
	Interval time.Duration
	Fetch    func(ctx context.Context) (any, error)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

const defaultInterval = 60 * time.Second

// Poller refreshes registered feeds in the background and delivers the
// results to the Bubble Tea runtime.
type Poller struct {
	log      logrus.FieldLogger
	feeds    []Feed
	statuses map[string]*SyncStatus
	resultCh chan SyncResultMsg
	triggers map[string]chan struct{}
	stopCh   chan struct{}
	mu       gosync.Mutex
	running  bool
}

// New creates a new Poller.
func New(log logrus.FieldLogger) *Poller {
	return &Poller{
		log:      log.WithField("component", "poller"),
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		triggers: make(map[string]chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a feed. Feeds registered after Start are not polled
// until the next Start.
func (p *Poller) Register(f Feed) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.feeds = append(p.feeds, f)
	p.statuses[f.Name] = &SyncStatus{Feed: f.Name, State: SyncIdle}
	p.triggers[f.Name] = make(chan struct{}, 1)
}

// Start returns a tea.Cmd that starts one polling goroutine per feed and
// subscribes to results.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	feeds := append([]Feed(nil), p.feeds...)
	stop := p.stopCh
	triggers := make([]chan struct{}, len(feeds))
	for i, f := range feeds {
		triggers[i] = p.triggers[f.Name]
	}
	p.mu.Unlock()

	for i, f := range feeds {
		go p.pollFeed(f, triggers[i], stop)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines. The poller can be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Running reports whether the poller has been started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Refresh triggers an immediate fetch of the named feed. Unknown names
// are ignored.
func (p *Poller) Refresh(name string) {
	p.mu.Lock()
	ch, ok := p.triggers[name]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// A refresh is already pending
	}
}

// GetStatus returns the sync status of a feed.
func (p *Poller) GetStatus(name string) (SyncStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.statuses[name]
	if !ok {
		return SyncStatus{}, false
	}
	return *s, true
}

func (p *Poller) pollFeed(f Feed, trigger <-chan struct{}, stop <-chan struct{}) {
	interval := f.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.fetch(f)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.fetch(f)
		case <-trigger:
			p.fetch(f)
		}
	}
}

func (p *Poller) fetch(f Feed) {
	p.setStatus(f.Name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	value, err := f.Fetch(ctx)
	if err != nil {
		p.setStatus(f.Name, SyncError, err)
		p.log.WithError(err).WithField("feed", f.Name).Debug("feed fetch failed")
		p.sendResult(SyncResultMsg{
			Feed:         f.Name,
			Error:        err,
			Unauthorized: transport.IsUnauthorized(err),
		})
		return
	}

	p.setStatus(f.Name, SyncIdle, nil)
	p.sendResult(SyncResultMsg{Feed: f.Name, Value: value})
}

func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next result.
// Call it after handling each SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
