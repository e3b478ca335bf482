// Package store persists tasks, focus sessions, and notifications in
// SQLite. Gravity scores are deliberately absent: they are recomputed
// on every read and never stored as ground truth.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection for the board's records
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the board database under statePath
func Open(statePath string) (*DB, error) {
	dbPath := filepath.Join(statePath, "gravityboard.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &DB{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id                   TEXT PRIMARY KEY,
		title                TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		urgency              REAL NOT NULL DEFAULT 5,
		effort               REAL NOT NULL DEFAULT 5,
		energy_level         TEXT NOT NULL DEFAULT 'medium',
		deadline             TIMESTAMP,
		context_tags         TEXT NOT NULL DEFAULT '[]',
		status               TEXT NOT NULL DEFAULT 'floating',
		kind                 TEXT NOT NULL DEFAULT 'general',
		priority             TEXT NOT NULL DEFAULT 'medium',
		section              TEXT NOT NULL DEFAULT 'General',
		recurrence_frequency TEXT NOT NULL DEFAULT 'none',
		recurrence_interval  INTEGER NOT NULL DEFAULT 1,
		created_at           TIMESTAMP NOT NULL,
		completed_at         TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline);

	CREATE TABLE IF NOT EXISTS focus_sessions (
		id               TEXT PRIMARY KEY,
		task_id          TEXT NOT NULL,
		task_title       TEXT NOT NULL DEFAULT '',
		requested_energy TEXT NOT NULL DEFAULT 'medium',
		planned_minutes  INTEGER NOT NULL,
		actual_minutes   REAL NOT NULL DEFAULT 0,
		distractions     INTEGER NOT NULL DEFAULT 0,
		state            TEXT NOT NULL DEFAULT 'active',
		start_time       TIMESTAMP NOT NULL,
		end_time         TIMESTAMP,
		timed_out        INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_task ON focus_sessions(task_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON focus_sessions(state);

	CREATE TABLE IF NOT EXISTS notifications (
		id        TEXT PRIMARY KEY,
		task_id   TEXT NOT NULL,
		threshold TEXT NOT NULL,
		title     TEXT NOT NULL,
		body      TEXT NOT NULL,
		fired_at  TIMESTAMP NOT NULL,
		unread    INTEGER NOT NULL DEFAULT 1,
		delivered INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(unread);
	`
	_, err := s.db.Exec(schema)
	return err
}
