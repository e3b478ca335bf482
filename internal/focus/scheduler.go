package focus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gravityboard/gravityd/internal/logging"
	"github.com/gravityboard/gravityd/internal/task"
)

// SessionState is the lifecycle state of a focus session
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionCompleted SessionState = "completed"
	SessionAborted   SessionState = "aborted"
)

// Terminal reports whether no further transition is allowed
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// Session is one timed work interval bound to a task
type Session struct {
	ID              string           `json:"id"`
	TaskID          string           `json:"task_id"`
	TaskTitle       string           `json:"task_title"`
	RequestedEnergy task.EnergyLevel `json:"requested_energy"`
	PlannedMinutes  int              `json:"planned_minutes"`
	ActualMinutes   float64          `json:"actual_minutes"` // set on terminal transition
	Distractions    int              `json:"distractions"`
	State           SessionState     `json:"state"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	TimedOut        bool             `json:"timed_out,omitempty"` // completed by reaching planned duration
}

// PlannedEnd returns when the session runs out of planned time
func (s *Session) PlannedEnd() time.Time {
	return s.StartTime.Add(time.Duration(s.PlannedMinutes) * time.Minute)
}

var (
	// ErrSessionNotFound means the session id is unknown
	ErrSessionNotFound = errors.New("focus session not found")
	// ErrSessionAlreadyTerminal means a completion call arrived after
	// the session reached a terminal state; nothing was mutated
	ErrSessionAlreadyTerminal = errors.New("focus session already terminal")
)

// Store persists sessions. The scheduler writes through on every
// transition; reads are served from memory.
type Store interface {
	SaveSession(s *Session) error
	UpdateSession(s *Session) error
	ActiveSessions() ([]*Session, error)
}

// Scheduler owns focus session lifecycles: it sizes sessions with the
// duration model, guards the single Active->terminal transition, and
// promotes overrun sessions to completed-by-timeout. One Active
// session per task is the caller's contract; the scheduler does not
// multiplex them.
type Scheduler struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    Store // optional
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithStore attaches write-through persistence
func WithStore(store Store) SchedulerOption {
	return func(s *Scheduler) { s.store = store }
}

// WithClock overrides the wall clock (used in tests)
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a focus session scheduler
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sessions: make(map[string]*Session),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load pulls still-active sessions from the store into memory, so a
// restarted process keeps supervising sessions it handed out earlier
func (s *Scheduler) Load() error {
	if s.store == nil {
		return nil
	}
	active, err := s.store.ActiveSessions()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range active {
		s.sessions[sess.ID] = sess
	}
	return nil
}

// Start opens a new Active session for the task, sized by the
// duration model at `now`
func (s *Scheduler) Start(t task.Snapshot, energy task.EnergyLevel) (*Session, error) {
	now := s.now()
	session := &Session{
		ID:              uuid.NewString(),
		TaskID:          t.ID,
		TaskTitle:       t.Title,
		RequestedEnergy: energy,
		PlannedMinutes:  ProposeDuration(t, energy, now),
		State:           SessionActive,
		StartTime:       now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveSession(session); err != nil {
			return nil, err
		}
	}

	logging.Debug("focus", "Started session %s for task %s (%d min)",
		session.ID, t.ID, session.PlannedMinutes)
	return session, nil
}

// Complete transitions a session out of Active. Only the first call
// wins: the transition happens under the lock, and later calls see
// the terminal state and get ErrSessionAlreadyTerminal with no
// mutation of EndTime or ActualMinutes.
func (s *Scheduler) Complete(id string, success bool, distractions int) (*Session, error) {
	now := s.now()

	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if session.State.Terminal() {
		snap := *session
		s.mu.Unlock()
		return &snap, ErrSessionAlreadyTerminal
	}

	end := now
	session.EndTime = &end
	session.ActualMinutes = end.Sub(session.StartTime).Minutes()
	session.Distractions = distractions
	if success {
		session.State = SessionCompleted
	} else {
		session.State = SessionAborted
	}
	snap := *session
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.UpdateSession(&snap); err != nil {
			return &snap, err
		}
	}

	logging.Debug("focus", "Session %s -> %s after %.1f min",
		snap.ID, snap.State, snap.ActualMinutes)
	return &snap, nil
}

// Get returns a session by id. Reading an Active session that has
// outlived its planned duration promotes it to completed-by-timeout
// first, so callers never observe a stale Active state.
func (s *Scheduler) Get(id string) (*Session, error) {
	now := s.now()

	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	expired := s.expireLocked(session, now)
	snap := *session
	s.mu.Unlock()

	if expired && s.store != nil {
		if err := s.store.UpdateSession(&snap); err != nil {
			return &snap, err
		}
	}
	return &snap, nil
}

// ExpireOverdue promotes every Active session past its planned end to
// completed-by-timeout and returns the sessions it touched
func (s *Scheduler) ExpireOverdue() []*Session {
	now := s.now()

	s.mu.Lock()
	var expired []*Session
	for _, session := range s.sessions {
		if s.expireLocked(session, now) {
			snap := *session
			expired = append(expired, &snap)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		if s.store != nil {
			if err := s.store.UpdateSession(session); err != nil {
				logging.Info("focus", "Failed to persist expired session %s: %v", session.ID, err)
			}
		}
		logging.Debug("focus", "Session %s timed out after %d planned min", session.ID, session.PlannedMinutes)
	}
	return expired
}

// expireLocked applies the timeout rule to one session. Must hold mu.
func (s *Scheduler) expireLocked(session *Session, now time.Time) bool {
	if session.State.Terminal() {
		return false
	}
	plannedEnd := session.PlannedEnd()
	if now.Before(plannedEnd) {
		return false
	}

	// A session that reaches its planned duration without an explicit
	// completion call is assumed completed
	session.State = SessionCompleted
	session.TimedOut = true
	session.EndTime = &plannedEnd
	session.ActualMinutes = float64(session.PlannedMinutes)
	return true
}

// StartSweeper runs ExpireOverdue on the given interval until Stop
func (s *Scheduler) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.ExpireOverdue()
			}
		}
	}()
	logging.Info("focus", "Session sweeper started (every %v)", interval)
}

// Stop halts the sweeper. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
