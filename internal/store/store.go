// Package store keeps the SQLite catalog of recording sessions and event
// annotations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sleepywoodpecker/plant-monitor/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for the session catalog.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer, and the monitor never issues concurrent statements
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			run_id INTEGER PRIMARY KEY,
			filename TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			row_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			run_id INTEGER NOT NULL,
			marked_at TEXT NOT NULL,
			elapsed_sec REAL NOT NULL,
			voltage REAL NOT NULL,
			label TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LastRunID returns the highest run id ever started, or 0.
func (s *Store) LastRunID(ctx context.Context) (int, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(run_id) FROM sessions`).Scan(&last); err != nil {
		return 0, err
	}
	if !last.Valid {
		return 0, nil
	}
	return int(last.Int64), nil
}

// BeginSession records a session that has just been opened.
func (s *Store) BeginSession(ctx context.Context, session model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (run_id, filename, started_at, row_count) VALUES (?, ?, ?, 0)`,
		session.RunID,
		session.Filename,
		session.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %d: %w", session.RunID, err)
	}
	return nil
}

// EndSession stores the end time and row count of a finished session.
func (s *Store) EndSession(ctx context.Context, session model.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, row_count = ? WHERE run_id = ?`,
		session.EndedAt.Format(time.RFC3339Nano),
		session.Rows,
		session.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", session.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %d not found", session.RunID)
	}
	return nil
}

// AddEvent stores one consumed annotation.
func (s *Store) AddEvent(ctx context.Context, event model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, marked_at, elapsed_sec, voltage, label) VALUES (?, ?, ?, ?, ?)`,
		event.RunID,
		event.At.Format(time.RFC3339Nano),
		event.ElapsedSec,
		event.Voltage,
		event.Label,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %q: %w", event.Label, err)
	}
	return nil
}

// ListSessions returns the most recent sessions with their events, oldest
// first. last <= 0 returns all sessions.
func (s *Store) ListSessions(ctx context.Context, last int) ([]model.SessionSummary, error) {
	query := `SELECT run_id, filename, started_at, ended_at, row_count FROM (
		SELECT * FROM sessions ORDER BY run_id DESC LIMIT ?
	) ORDER BY run_id ASC`
	limit := last
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionSummary
	for rows.Next() {
		var summary model.SessionSummary
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&summary.RunID, &summary.Filename, &startedAt, &endedAt, &summary.Rows); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, err
		}
		summary.StartedAt = parsed
		if endedAt.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, endedAt.String)
			if err != nil {
				return nil, err
			}
			summary.EndedAt = parsed
		}
		sessions = append(sessions, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		events, err := s.ListEvents(ctx, sessions[i].RunID)
		if err != nil {
			return nil, err
		}
		sessions[i].Events = events
	}
	return sessions, nil
}

// ListEvents returns the annotations of one run in arrival order. Run id 0
// holds events tagged while nothing was recording.
func (s *Store) ListEvents(ctx context.Context, runID int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, marked_at, elapsed_sec, voltage, label FROM events WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var events []model.Event
	for rows.Next() {
		var event model.Event
		var at string
		if err := rows.Scan(&event.RunID, &at, &event.ElapsedSec, &event.Voltage, &event.Label); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, err
		}
		event.At = parsed
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
