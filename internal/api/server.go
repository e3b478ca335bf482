// Package api exposes the board over HTTP: ranked task views, focus
// session control, and the notification inbox.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gravityboard/gravityd/internal/deadline"
	"github.com/gravityboard/gravityd/internal/focus"
	"github.com/gravityboard/gravityd/internal/gravity"
	"github.com/gravityboard/gravityd/internal/notify"
	"github.com/gravityboard/gravityd/internal/observability"
	"github.com/gravityboard/gravityd/internal/store"
)

// Server holds the handler dependencies
type Server struct {
	store    *store.DB
	engine   *gravity.Engine
	focus    *focus.Scheduler
	center   *notify.Center
	deadline *deadline.Scheduler
	metrics  *observability.Metrics
}

// New creates an API server
func New(db *store.DB, engine *gravity.Engine, focusSched *focus.Scheduler,
	center *notify.Center, deadlineSched *deadline.Scheduler,
	metrics *observability.Metrics) *Server {
	return &Server{
		store:    db,
		engine:   engine,
		focus:    focusSched,
		center:   center,
		deadline: deadlineSched,
		metrics:  metrics,
	}
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	r.HandleFunc("/api/tasks", s.handleRankTasks).Methods("GET")
	r.HandleFunc("/api/tasks", s.handleCreateTask).Methods("POST")
	r.HandleFunc("/api/tasks/{id}", s.handleGetTask).Methods("GET")
	r.HandleFunc("/api/tasks/{id}", s.handlePatchTask).Methods("PATCH")
	r.HandleFunc("/api/tasks/{id}", s.handleDeleteTask).Methods("DELETE")

	r.HandleFunc("/api/focus/start", s.handleFocusStart).Methods("POST")
	r.HandleFunc("/api/focus/complete", s.handleFocusComplete).Methods("POST")
	r.HandleFunc("/api/focus/sessions/{id}", s.handleGetSession).Methods("GET")

	r.HandleFunc("/api/notifications", s.handleListNotifications).Methods("GET")
	r.HandleFunc("/api/notifications/read-all", s.handleReadAll).Methods("POST")
	r.HandleFunc("/api/notifications/{id}/read", s.handleReadOne).Methods("POST")

	r.HandleFunc("/api/deadline/check", s.handleDeadlineCheck).Methods("POST")

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// instrument records request counts and latencies per route template
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveHTTP(route, strconv.Itoa(rec.status), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
