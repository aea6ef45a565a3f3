// Package persistence implements session.Persister on top of a local
// SQLite database: a keyed, queryable, crash-recoverable replacement for
// a single JSON blob, with goose-managed schema migrations.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/omnilab/atsconsole/internal/session"
)

// Store wraps a sql.DB connection to the session-persistence database.
type Store struct {
	conn *sql.DB
}

// Open creates (or reuses) the database at path and runs any pending
// migrations before returning.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Persist implements session.Persister. Keyed by session id; the newest
// write wins via an upsert executed as a single statement, so a crash
// mid-write leaves the prior row intact.
func (s *Store) Persist(snap session.Snapshot) error {
	detailJSON, err := json.Marshal(snap.Detail)
	if err != nil {
		return fmt.Errorf("marshaling detail for %s: %w", snap.SessionID, err)
	}
	jobIDsJSON, err := json.Marshal(snap.JobIDs)
	if err != nil {
		return fmt.Errorf("marshaling job ids for %s: %w", snap.SessionID, err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO sessions (session_id, detail, status, job_ids, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(session_id) DO UPDATE SET
			detail = excluded.detail,
			status = excluded.status,
			job_ids = excluded.job_ids,
			updated_at = excluded.updated_at
	`, snap.SessionID, string(detailJSON), int(snap.Status), string(jobIDsJSON))
	if err != nil {
		return fmt.Errorf("persisting session %s: %w", snap.SessionID, err)
	}
	return nil
}

// Record is a reconstructed persisted session, ready to seed a new holder.
type Record struct {
	SessionID session.ID
	Detail    session.Detail
	Status    session.PersistenceStatus
	JobIDs    []string
}

// ReconcileSessions enumerates every persisted session, for use on process
// start to reconstruct holders. It only returns the records; it builds no
// holder and starts no SessionRunner.
func (s *Store) ReconcileSessions() ([]Record, error) {
	rows, err := s.conn.Query(`SELECT session_id, detail, status, job_ids FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		var rec Record
		var detailJSON, jobIDsJSON string
		var status int
		if err := rows.Scan(&rec.SessionID, &detailJSON, &status, &jobIDsJSON); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if err := json.Unmarshal([]byte(detailJSON), &rec.Detail); err != nil {
			return nil, fmt.Errorf("unmarshaling detail for %s: %w", rec.SessionID, err)
		}
		if err := json.Unmarshal([]byte(jobIDsJSON), &rec.JobIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling job ids for %s: %w", rec.SessionID, err)
		}
		rec.Status = session.PersistenceStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
