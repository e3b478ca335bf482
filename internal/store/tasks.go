package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gravityboard/gravityd/internal/task"
)

// ErrTaskNotFound means the task id is unknown
var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, title, description, urgency, effort, energy_level, deadline,
	context_tags, status, kind, priority, section,
	recurrence_frequency, recurrence_interval, created_at, completed_at`

// CreateTask inserts a new task. Missing fields get board defaults;
// a missing id gets a fresh uuid.
func (s *DB) CreateTask(t *task.Snapshot) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.ApplyDefaults()

	tags, err := json.Marshal(t.ContextTags)
	if err != nil {
		return fmt.Errorf("failed to marshal context tags: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Urgency, t.Effort, string(t.EnergyLevel),
		nullableTime(t.Deadline), string(tags), string(t.Status), string(t.Kind),
		t.Priority, t.Section, t.Recurrence.Frequency, t.Recurrence.Interval,
		t.CreatedAt, nullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// UpdateTask rewrites an existing task row
func (s *DB) UpdateTask(t *task.Snapshot) error {
	tags, err := json.Marshal(t.ContextTags)
	if err != nil {
		return fmt.Errorf("failed to marshal context tags: %w", err)
	}

	res, err := s.db.Exec(`UPDATE tasks SET
		title = ?, description = ?, urgency = ?, effort = ?, energy_level = ?,
		deadline = ?, context_tags = ?, status = ?, kind = ?, priority = ?,
		section = ?, recurrence_frequency = ?, recurrence_interval = ?, completed_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Urgency, t.Effort, string(t.EnergyLevel),
		nullableTime(t.Deadline), string(tags), string(t.Status), string(t.Kind),
		t.Priority, t.Section, t.Recurrence.Frequency, t.Recurrence.Interval,
		nullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetTask returns one task by id
func (s *DB) GetTask(id string) (*task.Snapshot, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// ListTasks returns all tasks, optionally including completed ones,
// oldest first (insertion order, which ranking preserves on ties)
func (s *DB) ListTasks(includeCompleted bool) ([]task.Snapshot, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if !includeCompleted {
		query += ` WHERE status != 'completed'`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Snapshot
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ActiveTasks returns non-completed tasks for the deadline scanner.
// Implements deadline.TaskSource.
func (s *DB) ActiveTasks() ([]task.Snapshot, error) {
	return s.ListTasks(false)
}

// DeleteTask removes a task by id
func (s *DB) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Snapshot, error) {
	var t task.Snapshot
	var energy, status, kind, tags string
	var deadline, completedAt sql.NullTime

	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Urgency, &t.Effort,
		&energy, &deadline, &tags, &status, &kind, &t.Priority, &t.Section,
		&t.Recurrence.Frequency, &t.Recurrence.Interval, &t.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.EnergyLevel = task.EnergyLevel(energy)
	t.Status = task.Status(status)
	t.Kind = task.Kind(kind)
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if completedAt.Valid {
		c := completedAt.Time
		t.CompletedAt = &c
	}
	if err := json.Unmarshal([]byte(tags), &t.ContextTags); err != nil {
		t.ContextTags = nil // tolerate malformed rows
	}
	return &t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
