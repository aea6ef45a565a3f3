package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/omnilab/atsconsole/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRunsMigrations(t *testing.T) {
	s := openTestStore(t)

	var name string
	err := s.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='sessions'`).Scan(&name)
	if err != nil {
		t.Fatalf("sessions table should exist after migrations: %v", err)
	}
}

func sampleSnapshot(id string) session.Snapshot {
	return session.Snapshot{
		SessionID: id,
		Detail: session.Detail{
			Config: session.NewConfig(id, map[string]string{"env": "test"}),
			Output: session.Output{
				Properties: map[string]string{"k": "v"},
				PluginErrors: []session.PluginError{
					{PluginLabel: "p", Message: "boom", Time: time.Now().UTC()},
				},
				PluginOutputs: map[string]any{"label": float64(7)},
			},
		},
		Status: session.StatusRunning,
		JobIDs: []string{"j1", "j2"},
	}
}

func TestPersistAndReconcile(t *testing.T) {
	s := openTestStore(t)

	if err := s.Persist(sampleSnapshot("s1")); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	records, err := s.ReconcileSessions()
	if err != nil {
		t.Fatalf("ReconcileSessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", rec.SessionID)
	}
	if rec.Status != session.StatusRunning {
		t.Errorf("Status = %v, want StatusRunning", rec.Status)
	}
	if rec.Detail.Output.Properties["k"] != "v" {
		t.Errorf("Properties[k] = %q, want v", rec.Detail.Output.Properties["k"])
	}
	if len(rec.JobIDs) != 2 || rec.JobIDs[0] != "j1" {
		t.Errorf("JobIDs = %v, want [j1 j2]", rec.JobIDs)
	}
}

func TestPersistIsIdempotentNewestWins(t *testing.T) {
	s := openTestStore(t)

	first := sampleSnapshot("s1")
	first.Status = session.StatusStarting
	if err := s.Persist(first); err != nil {
		t.Fatalf("Persist (first): %v", err)
	}

	second := sampleSnapshot("s1")
	second.Status = session.StatusFinalizing
	second.JobIDs = []string{"j1", "j2", "j3"}
	if err := s.Persist(second); err != nil {
		t.Fatalf("Persist (second): %v", err)
	}

	records, err := s.ReconcileSessions()
	if err != nil {
		t.Fatalf("ReconcileSessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (upsert, not insert)", len(records))
	}
	if records[0].Status != session.StatusFinalizing {
		t.Errorf("Status = %v, want StatusFinalizing (newest write wins)", records[0].Status)
	}
	if len(records[0].JobIDs) != 3 {
		t.Errorf("JobIDs len = %d, want 3", len(records[0].JobIDs))
	}
}

func TestReconcileMultipleSessions(t *testing.T) {
	s := openTestStore(t)

	if err := s.Persist(sampleSnapshot("a")); err != nil {
		t.Fatalf("Persist(a): %v", err)
	}
	if err := s.Persist(sampleSnapshot("b")); err != nil {
		t.Fatalf("Persist(b): %v", err)
	}

	records, err := s.ReconcileSessions()
	if err != nil {
		t.Fatalf("ReconcileSessions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestReconcileEmptyDatabase(t *testing.T) {
	s := openTestStore(t)

	records, err := s.ReconcileSessions()
	if err != nil {
		t.Fatalf("ReconcileSessions: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestDetailHolderPersistsThroughStore(t *testing.T) {
	s := openTestStore(t)

	h := session.NewDetailHolder(session.NewConfig("live", nil), nil, s)
	h.PutProperty("status", "ok")

	records, err := s.ReconcileSessions()
	if err != nil {
		t.Fatalf("ReconcileSessions: %v", err)
	}
	if len(records) != 1 || records[0].Detail.Output.Properties["status"] != "ok" {
		t.Fatalf("holder mutation did not reach the store: %+v", records)
	}
}
