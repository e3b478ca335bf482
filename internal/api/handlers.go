package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gravityboard/gravityd/internal/focus"
	"github.com/gravityboard/gravityd/internal/gravity"
	"github.com/gravityboard/gravityd/internal/notify"
	"github.com/gravityboard/gravityd/internal/store"
	"github.com/gravityboard/gravityd/internal/task"
)

// Wire shapes use the camelCase field names the web client has always
// spoken; internal types keep their own tags.

type recurrencePayload struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
}

type taskPayload struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Urgency      float64            `json:"urgency"`
	Effort       float64            `json:"effort"`
	EnergyLevel  string             `json:"energyLevel"`
	Deadline     *time.Time         `json:"deadline,omitempty"`
	ContextTags  []string           `json:"contextTags,omitempty"`
	Status       string             `json:"status"`
	Kind         string             `json:"type"`
	Priority     string             `json:"priority"`
	Section      string             `json:"section"`
	Recurrence   recurrencePayload  `json:"recurrence"`
	CreatedAt    time.Time          `json:"createdAt"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
	GravityScore *float64           `json:"gravityScore,omitempty"`
}

func toTaskPayload(t task.Snapshot) taskPayload {
	return taskPayload{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Urgency:     t.Urgency,
		Effort:      t.Effort,
		EnergyLevel: string(t.EnergyLevel),
		Deadline:    t.Deadline,
		ContextTags: t.ContextTags,
		Status:      string(t.Status),
		Kind:        string(t.Kind),
		Priority:    t.Priority,
		Section:     t.Section,
		Recurrence: recurrencePayload{
			Frequency: t.Recurrence.Frequency,
			Interval:  t.Recurrence.Interval,
		},
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func toRankedPayload(rt gravity.RankedTask) taskPayload {
	p := toTaskPayload(rt.Snapshot)
	score := rt.GravityScore
	p.GravityScore = &score
	return p
}

// handleRankTasks returns the board's tasks ordered by gravity,
// scored fresh against the caller's current context
func (s *Server) handleRankTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.URL.Query().Get("includeCompleted") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}

	ctx := task.Context{
		EnergyLevel: task.EnergyLevel(r.URL.Query().Get("energy")),
		LocationTag: r.URL.Query().Get("location"),
	}

	ranked := s.engine.Rank(tasks, ctx)
	s.metrics.ScoringPass(len(ranked))

	payload := make([]taskPayload, len(ranked))
	for i, rt := range ranked {
		payload[i] = toRankedPayload(rt)
	}
	writeJSON(w, http.StatusOK, payload)
}

type createTaskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Urgency     *float64          `json:"urgency"`
	Effort      *float64          `json:"effort"`
	EnergyLevel string            `json:"energyLevel"`
	Deadline    *time.Time        `json:"deadline"`
	ContextTags []string          `json:"contextTags"`
	Kind        string            `json:"type"`
	Priority    string            `json:"priority"`
	Section     string            `json:"section"`
	Recurrence  recurrencePayload `json:"recurrence"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	t := task.Snapshot{
		Title:       req.Title,
		Description: req.Description,
		Urgency:     task.DefaultMetric,
		Effort:      task.DefaultMetric,
		EnergyLevel: task.EnergyLevel(req.EnergyLevel),
		Deadline:    req.Deadline,
		ContextTags: req.ContextTags,
		Kind:        task.Kind(req.Kind),
		Priority:    req.Priority,
		Section:     req.Section,
		Recurrence: task.Recurrence{
			Frequency: req.Recurrence.Frequency,
			Interval:  req.Recurrence.Interval,
		},
	}
	if req.Urgency != nil {
		t.Urgency = task.ClampMetric(*req.Urgency)
	}
	if req.Effort != nil {
		t.Effort = task.ClampMetric(*req.Effort)
	}

	if err := s.store.CreateTask(&t); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	// Echo the stored task with an initial no-context score attached
	p := toTaskPayload(t)
	score := s.engine.Score(t, task.Context{})
	p.GravityScore = &score
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(mux.Vars(r)["id"])
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, toTaskPayload(*t))
}

type patchTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Urgency     *float64   `json:"urgency"`
	Effort      *float64   `json:"effort"`
	EnergyLevel *string    `json:"energyLevel"`
	Deadline    *time.Time `json:"deadline"`
	ContextTags *[]string  `json:"contextTags"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	Section     *string    `json:"section"`
}

func (s *Server) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(mux.Vars(r)["id"])
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	var req patchTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Urgency != nil {
		t.Urgency = task.ClampMetric(*req.Urgency)
	}
	if req.Effort != nil {
		t.Effort = task.ClampMetric(*req.Effort)
	}
	if req.EnergyLevel != nil {
		t.EnergyLevel = task.EnergyLevel(*req.EnergyLevel)
	}
	if req.Deadline != nil {
		t.Deadline = req.Deadline
	}
	if req.ContextTags != nil {
		t.ContextTags = *req.ContextTags
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Section != nil {
		t.Section = *req.Section
	}
	if req.Status != nil {
		status := task.Status(*req.Status)
		switch status {
		case task.StatusFloating, task.StatusSurfaced, task.StatusCompleted:
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *req.Status))
			return
		}
		t.Status = status
		if status == task.StatusCompleted && t.CompletedAt == nil {
			now := time.Now().UTC()
			t.CompletedAt = &now
		}
	}

	if err := s.store.UpdateTask(t); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, toTaskPayload(*t))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteTask(mux.Vars(r)["id"])
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionPayload struct {
	SessionID       string     `json:"sessionId"`
	TaskID          string     `json:"taskId"`
	TaskTitle       string     `json:"taskTitle"`
	Status          string     `json:"status"`
	DurationMinutes int        `json:"durationMinutes"`
	ActualMinutes   float64    `json:"actualDurationMinutes"`
	Distractions    int        `json:"distractions"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	TimedOut        bool       `json:"timedOut,omitempty"`
}

func toSessionPayload(sess *focus.Session) sessionPayload {
	return sessionPayload{
		SessionID:       sess.ID,
		TaskID:          sess.TaskID,
		TaskTitle:       sess.TaskTitle,
		Status:          string(sess.State),
		DurationMinutes: sess.PlannedMinutes,
		ActualMinutes:   sess.ActualMinutes,
		Distractions:    sess.Distractions,
		StartTime:       sess.StartTime,
		EndTime:         sess.EndTime,
		TimedOut:        sess.TimedOut,
	}
}

type focusStartRequest struct {
	TaskID string `json:"taskId"`
	Energy string `json:"userEnergy"`
}

type focusStartResponse struct {
	SessionID       string `json:"sessionId"`
	DurationMinutes int    `json:"durationMinutes"`
	TaskTitle       string `json:"taskTitle"`
	Intention       string `json:"intention"`
}

func (s *Server) handleFocusStart(w http.ResponseWriter, r *http.Request) {
	var req focusStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	t, err := s.store.GetTask(req.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	session, err := s.focus.Start(*t, task.EnergyLevel(req.Energy))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	s.metrics.SessionStarted()

	writeJSON(w, http.StatusOK, focusStartResponse{
		SessionID:       session.ID,
		DurationMinutes: session.PlannedMinutes,
		TaskTitle:       t.Title,
		Intention:       "Focus on " + t.Title,
	})
}

type focusCompleteRequest struct {
	SessionID    string `json:"sessionId"`
	Success      bool   `json:"success"`
	Distractions int    `json:"distractions"`
}

func (s *Server) handleFocusComplete(w http.ResponseWriter, r *http.Request) {
	var req focusCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	session, err := s.focus.Complete(req.SessionID, req.Success, req.Distractions)
	switch {
	case errors.Is(err, focus.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, focus.ErrSessionAlreadyTerminal):
		// Idempotent no-op: report the terminal session alongside the
		// conflict so clients can reconcile
		writeJSON(w, http.StatusConflict, map[string]any{
			"message": "session already terminal",
			"session": toSessionPayload(session),
		})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to complete session")
		return
	}

	s.metrics.SessionFinished(session.State == focus.SessionCompleted, session.TimedOut)
	writeJSON(w, http.StatusOK, toSessionPayload(session))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.focus.Get(mux.Vars(r)["id"])
	if errors.Is(err, focus.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionPayload(session))
}

type notificationPayload struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Threshold string    `json:"threshold"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FiredAt   time.Time `json:"firedAt"`
	Unread    bool      `json:"unread"`
}

func toNotificationPayload(n *notify.Notification) notificationPayload {
	return notificationPayload{
		ID:        n.ID,
		TaskID:    n.TaskID,
		Threshold: string(n.Threshold),
		Title:     n.Title,
		Body:      n.Body,
		FiredAt:   n.FiredAt,
		Unread:    n.Unread,
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	items := s.center.List(r.URL.Query().Get("unread") == "true")
	payload := make([]notificationPayload, len(items))
	for i, n := range items {
		payload[i] = toNotificationPayload(n)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReadOne(w http.ResponseWriter, r *http.Request) {
	err := s.center.MarkRead(mux.Vars(r)["id"])
	if errors.Is(err, notify.ErrNotificationNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadAll(w http.ResponseWriter, _ *http.Request) {
	changed := s.center.MarkAllRead()
	writeJSON(w, http.StatusOK, map[string]int{"marked": changed})
}

// handleDeadlineCheck runs one deadline scan immediately, outside the
// timer. Useful for tests and for clients that just changed a
// deadline and want alerts re-evaluated now.
func (s *Server) handleDeadlineCheck(w http.ResponseWriter, _ *http.Request) {
	events := s.deadline.Tick(time.Now())
	writeJSON(w, http.StatusOK, map[string]int{"fired": len(events)})
}
