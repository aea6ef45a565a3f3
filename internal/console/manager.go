// Package console wires the session registry, messaging fabric, plugin
// runner, session runner, job creator, and websocket watch transport into
// the single façade the HTTP control surface (internal/api) and the CLI
// (cmd/atsctl) both drive. It contains no protocol or transport code of its
// own; it only decides how the pieces built in the other internal packages
// talk to each other.
package console

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/omnilab/atsconsole/internal/jobcreator"
	"github.com/omnilab/atsconsole/internal/messaging"
	"github.com/omnilab/atsconsole/internal/persistence"
	"github.com/omnilab/atsconsole/internal/plugin"
	"github.com/omnilab/atsconsole/internal/runner"
	"github.com/omnilab/atsconsole/internal/session"
	"github.com/omnilab/atsconsole/internal/ws"
)

// PluginFactory builds the ordered plugin list a new session's runner
// dispatches lifecycle events and notifications to.
type PluginFactory func(holder *session.DetailHolder) []plugin.Plugin

// Manager implements api.SessionManager, coordinating one runner.Runner per
// live session plus the registry of reconciled-but-not-running sessions
// recovered from persistence.
type Manager struct {
	registry     *session.Registry
	messagingMgr *messaging.MessagingManager
	hub          *ws.Hub
	persister    session.Persister
	plugins      PluginFactory
	notifyPool   int

	mu      sync.RWMutex
	runners map[session.ID]*runner.Runner
}

// NewManager returns a Manager with no sessions yet. persister and hub may
// be nil in tests; plugins may be nil to run sessions with no plugins
// installed.
func NewManager(messagingMgr *messaging.MessagingManager, hub *ws.Hub, persister session.Persister, plugins PluginFactory, notifyPool int) *Manager {
	return &Manager{
		registry:     session.NewRegistry(),
		messagingMgr: messagingMgr,
		hub:          hub,
		persister:    persister,
		plugins:      plugins,
		notifyPool:   notifyPool,
		runners:      make(map[session.ID]*runner.Runner),
	}
}

// SessionChanged implements session.Listener: it pushes the session's fresh
// detail to every websocket watcher of that session, using the Hub as a
// plain push transport independent of the request/response messaging
// fabric below.
func (m *Manager) SessionChanged(id session.ID) {
	if m.hub == nil {
		return
	}
	holder, ok := m.registry.Get(id)
	if !ok {
		return
	}
	m.hub.Deliver(id, messaging.MessageReceptions{
		{Subscriber: "session", Value: holder.BuildDetail(nil)},
	})
}

// Reconcile seeds the registry with sessions recovered from persistence.
// Recovered sessions have no live runner: GetSession still serves their
// last-persisted detail, but NotifySession/AbortSession report not found.
func (m *Manager) Reconcile(records []persistence.Record) {
	for _, rec := range records {
		cfg := session.Config{ID: rec.SessionID, InitialProperties: rec.Detail.Output.Properties}
		holder := session.NewDetailHolder(cfg, m, m.persister)
		holder.SetStatus(rec.Status)
		for _, e := range rec.Detail.Output.PluginErrors {
			holder.AddPluginError(e)
		}
		for label, out := range rec.Detail.Output.PluginOutputs {
			value := out
			holder.SetPluginOutput(label, func(any, bool) (any, bool) { return value, true })
		}
		m.registry.Add(holder)
	}
}

// CreateSession implements api.SessionManager: it starts a session with no
// jobs of its own, ready for jobs to be appended via the job creator or
// AddJob before Running is reached.
func (m *Manager) CreateSession(ctx context.Context, cfg session.Config) (session.ID, error) {
	return m.startSession(cfg, nil)
}

// CreateSessionWithJobs runs req through creator, then starts a session
// seeded with the resulting jobs. Skippable conditions are returned as
// warnings alongside whatever jobs the job creator did produce; a fatal
// job-creation error aborts session creation entirely.
func (m *Manager) CreateSessionWithJobs(ctx context.Context, cfg session.Config, creator *jobcreator.Creator, req jobcreator.SessionRequestInfo) (session.ID, []error, error) {
	specs, warnings, err := creator.CreateJobs(ctx, req)
	if err != nil {
		return "", warnings, fmt.Errorf("creating jobs for session %s: %w", cfg.ID, err)
	}

	jobs := make([]session.JobInfo, len(specs))
	for i, spec := range specs {
		kind := "non-tradefed"
		if spec.Tradefed {
			kind = "tradefed"
		}
		jobs[i] = session.JobInfo{
			ID:      fmt.Sprintf("%s-%d", cfg.ID, i),
			Kind:    kind,
			Payload: spec,
		}
	}

	id, err := m.startSession(cfg, jobs)
	return id, warnings, err
}

func (m *Manager) startSession(cfg session.Config, jobs []session.JobInfo) (session.ID, error) {
	holder := session.NewDetailHolder(cfg, m, m.persister)
	m.registry.Add(holder)

	var plugins []plugin.Plugin
	if m.plugins != nil {
		plugins = m.plugins(holder)
	}
	pluginRunner := plugin.NewRunner(holder, plugins, m.notifyPool)

	if m.messagingMgr != nil {
		sender := messaging.NewMessageSender()
		m.messagingMgr.RegisterSender(cfg.ID, sender)
		sender.InstallSubscribers([]messaging.SubscriberGroup{
			{Label: "plugins", Subscribers: []messaging.Subscriber{&pluginDispatchSubscriber{runner: pluginRunner}}},
		})
	}

	jobRunner := newInertJobRunner()
	r := runner.New(holder, pluginRunner, jobRunner)

	m.mu.Lock()
	m.runners[cfg.ID] = r
	m.mu.Unlock()

	// The session's lifetime outlives the HTTP request that created it, so
	// its run loop gets a fresh background context rather than the
	// caller's request context.
	go func() {
		if err := r.Run(context.Background(), nil, jobs); err != nil {
			log.Printf("session %s ended with error: %v", cfg.ID, err)
		}
		if m.messagingMgr != nil {
			m.messagingMgr.UnregisterSender(cfg.ID)
		}
	}()

	return cfg.ID, nil
}

// DispatchMessage sends a message to id's destination through the
// messaging fabric, forwarding every delivered batch to the Hub so
// connected watchers observe it. Returns the generated message id, or
// messaging.ErrDestinationNotFound if no session with that id is running.
func (m *Manager) DispatchMessage(ctx context.Context, id session.ID, msgType string, payload any) (string, error) {
	return m.messagingMgr.SendMessage(ctx, messaging.MessageSend{
		DestinationID: id,
		Type:          msgType,
		Payload:       payload,
	}, func(batch messaging.MessageReceptions) {
		if m.hub != nil {
			m.hub.Deliver(id, batch)
		}
	})
}

// GetSession implements api.SessionManager. It checks live runners first,
// then falls back to a reconciled-but-not-running registry entry.
func (m *Manager) GetSession(id session.ID, mask *session.FieldMask) (session.Detail, bool) {
	m.mu.RLock()
	r, ok := m.runners[id]
	m.mu.RUnlock()
	if ok {
		return r.GetSession(mask), true
	}

	holder, ok := m.registry.Get(id)
	if !ok {
		return session.Detail{}, false
	}
	return holder.BuildDetail(mask), true
}

// NotifySession implements api.SessionManager.
func (m *Manager) NotifySession(id session.ID, payload any) (accepted bool, found bool) {
	m.mu.RLock()
	r, ok := m.runners[id]
	m.mu.RUnlock()
	if !ok {
		return false, false
	}
	return r.NotifySession(payload), true
}

// AbortSession implements api.SessionManager.
func (m *Manager) AbortSession(id session.ID) bool {
	m.mu.RLock()
	r, ok := m.runners[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	r.AbortSession()
	return true
}

// pluginDispatchSubscriber adapts a session's plugin.Runner into a
// messaging.Subscriber, so a message sent through the messaging fabric
// reaches that session's MessageSubscriber plugins.
type pluginDispatchSubscriber struct {
	runner *plugin.Runner
}

func (p *pluginDispatchSubscriber) Label() string { return "plugins" }

func (p *pluginDispatchSubscriber) Handle(send messaging.MessageSend) messaging.MessageReception {
	p.runner.Dispatch(send.Type, send.Payload)
	return messaging.MessageReception{Subscriber: "plugins", Value: send.Type}
}

// inertJobRunner is the thin job-execution adapter: the actual Tradefed
// harness invocation is out of scope, so RunJobs only honours cancellation
// and Abort. It exists so Runner.Run has something real to call.
type inertJobRunner struct {
	abortCh chan struct{}
	once    sync.Once
}

func newInertJobRunner() *inertJobRunner {
	return &inertJobRunner{abortCh: make(chan struct{})}
}

func (r *inertJobRunner) RunJobs(ctx context.Context, jobs []session.JobInfo) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.abortCh:
		return nil
	}
}

func (r *inertJobRunner) Abort() {
	r.once.Do(func() { close(r.abortCh) })
}
