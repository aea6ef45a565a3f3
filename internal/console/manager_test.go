package console

import (
	"context"
	"testing"
	"time"

	"github.com/omnilab/atsconsole/internal/jobcreator"
	"github.com/omnilab/atsconsole/internal/messaging"
	"github.com/omnilab/atsconsole/internal/persistence"
	"github.com/omnilab/atsconsole/internal/runner"
	"github.com/omnilab/atsconsole/internal/session"
	"github.com/omnilab/atsconsole/internal/ws"
)

func waitForRunning(t *testing.T, m *Manager, id session.ID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.RLock()
		r, ok := m.runners[id]
		m.mu.RUnlock()
		if ok && r.State() == runner.Running {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session %s never reached Running", id)
}

func TestCreateAndGetSession(t *testing.T) {
	m := NewManager(messaging.NewMessagingManager(0), nil, nil, nil, 0)

	id, err := m.CreateSession(context.Background(), session.NewConfig("s1", nil))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	waitForRunning(t, m, id)

	detail, ok := m.GetSession(id, nil)
	if !ok {
		t.Fatal("GetSession: not found")
	}
	if detail.Config.ID != "s1" {
		t.Errorf("Config.ID = %q, want s1", detail.Config.ID)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	m := NewManager(messaging.NewMessagingManager(0), nil, nil, nil, 0)
	if _, ok := m.GetSession("missing", nil); ok {
		t.Error("expected not found")
	}
}

func TestNotifySessionAndAbort(t *testing.T) {
	m := NewManager(messaging.NewMessagingManager(0), nil, nil, nil, 0)
	id, err := m.CreateSession(context.Background(), session.NewConfig("s2", nil))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	waitForRunning(t, m, id)

	accepted, found := m.NotifySession(id, "hello")
	if !found || !accepted {
		t.Errorf("NotifySession = (%v, %v), want (true, true)", accepted, found)
	}

	if !m.AbortSession(id) {
		t.Error("AbortSession: expected found")
	}
	if m.AbortSession("missing") {
		t.Error("AbortSession: expected not found for unknown id")
	}
}

type fakeCatalog struct{}

func (fakeCatalog) TradefedModules(ctx context.Context, include, exclude []string) ([]string, error) {
	return []string{"CtsFoo"}, nil
}
func (fakeCatalog) NonTradefedModules(ctx context.Context, include, exclude []string) ([]string, error) {
	return nil, nil
}

func TestCreateSessionWithJobsSeedsJobs(t *testing.T) {
	m := NewManager(messaging.NewMessagingManager(0), nil, nil, nil, 0)
	creator := jobcreator.NewCreator(jobcreator.NewFilterManager(fakeCatalog{}), nil, nil)

	id, warnings, err := m.CreateSessionWithJobs(context.Background(), session.NewConfig("s3", nil), creator, jobcreator.SessionRequestInfo{Plan: "cts"})
	if err != nil {
		t.Fatalf("CreateSessionWithJobs: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1 (no non-Tradefed modules)", len(warnings))
	}
	waitForRunning(t, m, id)

	holder, ok := m.registry.Get(id)
	if !ok {
		t.Fatal("registry: session not found")
	}
	if got := len(holder.AllJobs()); got != 1 {
		t.Errorf("AllJobs() len = %d, want 1", got)
	}
}

func TestDispatchMessageForwardsToHub(t *testing.T) {
	mgr := messaging.NewMessagingManager(0)
	hub := ws.NewHub(0)
	m := NewManager(mgr, hub, nil, nil, 0)

	id, err := m.CreateSession(context.Background(), session.NewConfig("s4", nil))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	waitForRunning(t, m, id)

	if _, err := m.DispatchMessage(context.Background(), id, "ping", "payload"); err != nil {
		t.Fatalf("DispatchMessage: %v", err)
	}
}

func TestDispatchMessageUnknownDestination(t *testing.T) {
	m := NewManager(messaging.NewMessagingManager(0), nil, nil, nil, 0)
	if _, err := m.DispatchMessage(context.Background(), "missing", "ping", nil); err == nil {
		t.Error("expected ErrDestinationNotFound")
	}
}

func TestReconcileServesLastPersistedDetail(t *testing.T) {
	m := NewManager(messaging.NewMessagingManager(0), nil, nil, nil, 0)
	m.Reconcile([]persistence.Record{
		{
			SessionID: "old1",
			Detail: session.Detail{
				Config: session.Config{ID: "old1"},
				Output: session.Output{Properties: map[string]string{"k": "v"}},
			},
			Status: session.StatusFinalizing,
		},
	})

	detail, ok := m.GetSession("old1", nil)
	if !ok {
		t.Fatal("GetSession: reconciled session not found")
	}
	if detail.Output.Properties["k"] != "v" {
		t.Errorf("Properties = %v, want k=v", detail.Output.Properties)
	}

	if accepted, found := m.NotifySession("old1", "x"); found || accepted {
		t.Error("reconciled session has no live runner, NotifySession should report not found")
	}
}
