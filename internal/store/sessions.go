package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gravityboard/gravityd/internal/focus"
	"github.com/gravityboard/gravityd/internal/task"
)

const sessionColumns = `id, task_id, task_title, requested_energy, planned_minutes,
	actual_minutes, distractions, state, start_time, end_time, timed_out`

// SaveSession inserts a new focus session row.
// Implements focus.Store.
func (s *DB) SaveSession(sess *focus.Session) error {
	_, err := s.db.Exec(`INSERT INTO focus_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.TaskID, sess.TaskTitle, string(sess.RequestedEnergy),
		sess.PlannedMinutes, sess.ActualMinutes, sess.Distractions,
		string(sess.State), sess.StartTime, nullableTime(sess.EndTime), sess.TimedOut)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// UpdateSession rewrites the mutable fields of a session row
func (s *DB) UpdateSession(sess *focus.Session) error {
	res, err := s.db.Exec(`UPDATE focus_sessions SET
		actual_minutes = ?, distractions = ?, state = ?, end_time = ?, timed_out = ?
		WHERE id = ?`,
		sess.ActualMinutes, sess.Distractions, string(sess.State),
		nullableTime(sess.EndTime), sess.TimedOut, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return focus.ErrSessionNotFound
	}
	return nil
}

// GetSession returns one session by id
func (s *DB) GetSession(id string) (*focus.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM focus_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, focus.ErrSessionNotFound
	}
	return sess, err
}

// ActiveSessions returns sessions still in the active state, so a
// restarted scheduler can resume supervising them
func (s *DB) ActiveSessions() ([]*focus.Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM focus_sessions WHERE state = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*focus.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionsForTask returns a task's session history, newest first
func (s *DB) SessionsForTask(taskID string) ([]*focus.Session, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM focus_sessions
		WHERE task_id = ? ORDER BY start_time DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*focus.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*focus.Session, error) {
	var sess focus.Session
	var energy, state string
	var endTime sql.NullTime

	err := row.Scan(&sess.ID, &sess.TaskID, &sess.TaskTitle, &energy,
		&sess.PlannedMinutes, &sess.ActualMinutes, &sess.Distractions,
		&state, &sess.StartTime, &endTime, &sess.TimedOut)
	if err != nil {
		return nil, err
	}

	sess.RequestedEnergy = task.EnergyLevel(energy)
	sess.State = focus.SessionState(state)
	if endTime.Valid {
		e := endTime.Time
		sess.EndTime = &e
	}
	return &sess, nil
}
