package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gravityboard/gravityd/internal/deadline"
	"github.com/gravityboard/gravityd/internal/focus"
	"github.com/gravityboard/gravityd/internal/gravity"
	"github.com/gravityboard/gravityd/internal/notify"
	"github.com/gravityboard/gravityd/internal/observability"
	"github.com/gravityboard/gravityd/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	center := notify.NewCenter(db)
	srv := New(
		db,
		gravity.NewEngine(),
		focus.NewScheduler(focus.WithStore(db)),
		center,
		deadline.NewScheduler(db, center),
		observability.NewMetrics(),
	)
	return srv, db
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateTaskDefaults(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/tasks", map[string]any{"title": "Write report"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	created := decode[taskPayload](t, rec)
	if created.ID == "" {
		t.Error("Expected generated id")
	}
	if created.Urgency != 5 || created.Effort != 5 {
		t.Errorf("Expected default metrics 5/5, got %v/%v", created.Urgency, created.Effort)
	}
	if created.EnergyLevel != "medium" {
		t.Errorf("Expected default energy medium, got %s", created.EnergyLevel)
	}
	if created.Status != "floating" {
		t.Errorf("Expected status floating, got %s", created.Status)
	}
	if created.GravityScore == nil || *created.GravityScore != 25.0 {
		t.Errorf("Expected initial score 25.0, got %v", created.GravityScore)
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "POST", "/api/tasks", map[string]any{"urgency": 8})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestRankTasksOrdering(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doJSON(t, router, "POST", "/api/tasks", map[string]any{
		"title": "Low pull", "urgency": 2, "effort": 2,
	})
	doJSON(t, router, "POST", "/api/tasks", map[string]any{
		"title": "Heavy pull", "urgency": 9, "effort": 8, "energyLevel": "high",
	})

	rec := doJSON(t, router, "GET", "/api/tasks?energy=high", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	tasks := decode[[]taskPayload](t, rec)
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "Heavy pull" {
		t.Errorf("Expected Heavy pull first, got %s", tasks[0].Title)
	}
	// 9*8*1.2 = 86.4, then x1.2 energy match
	if tasks[0].GravityScore == nil || *tasks[0].GravityScore != 103.7 {
		t.Errorf("Expected score 103.7, got %v", tasks[0].GravityScore)
	}
}

func TestPatchTaskCompletion(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/tasks", map[string]any{"title": "Ship it"})
	created := decode[taskPayload](t, rec)

	rec = doJSON(t, router, "PATCH", "/api/tasks/"+created.ID, map[string]any{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	patched := decode[taskPayload](t, rec)
	if patched.Status != "completed" {
		t.Errorf("Expected completed, got %s", patched.Status)
	}
	if patched.CompletedAt == nil {
		t.Error("Expected completedAt to be set")
	}

	rec = doJSON(t, router, "PATCH", "/api/tasks/"+created.ID, map[string]any{"status": "sideways"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad status, got %d", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/tasks", map[string]any{"title": "Throwaway"})
	created := decode[taskPayload](t, rec)

	if rec := doJSON(t, router, "DELETE", "/api/tasks/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, router, "DELETE", "/api/tasks/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on double delete, got %d", rec.Code)
	}
	if rec := doJSON(t, router, "GET", "/api/tasks/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestFocusLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, "POST", "/api/tasks", map[string]any{
		"title": "Deep work", "effort": 4,
	})
	created := decode[taskPayload](t, rec)

	rec = doJSON(t, router, "POST", "/api/focus/start", map[string]any{
		"taskId": created.ID, "userEnergy": "high",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	started := decode[focusStartResponse](t, rec)
	if started.SessionID == "" {
		t.Error("Expected session id")
	}
	if started.TaskTitle != "Deep work" {
		t.Errorf("Expected task title echoed, got %s", started.TaskTitle)
	}
	if started.Intention != "Focus on Deep work" {
		t.Errorf("Unexpected intention: %s", started.Intention)
	}

	rec = doJSON(t, router, "POST", "/api/focus/complete", map[string]any{
		"sessionId": started.SessionID, "success": true, "distractions": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	done := decode[sessionPayload](t, rec)
	if done.Status != "completed" {
		t.Errorf("Expected completed, got %s", done.Status)
	}
	if done.Distractions != 2 {
		t.Errorf("Expected 2 distractions, got %d", done.Distractions)
	}

	// Second completion conflicts without mutating anything
	rec = doJSON(t, router, "POST", "/api/focus/complete", map[string]any{
		"sessionId": started.SessionID, "success": false,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on double complete, got %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/api/focus/sessions/"+started.SessionID, nil)
	fetched := decode[sessionPayload](t, rec)
	if fetched.Status != "completed" {
		t.Errorf("Double complete should not flip state, got %s", fetched.Status)
	}
}

func TestFocusStartUnknownTask(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "POST", "/api/focus/start", map[string]any{
		"taskId": "nope", "userEnergy": "low",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestDeadlineCheckAndNotifications(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	deadlineAt := time.Now().Add(60 * time.Minute)
	rec := doJSON(t, router, "POST", "/api/tasks", map[string]any{
		"title":    "Pay invoice",
		"deadline": deadlineAt.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, "POST", "/api/deadline/check", nil)
	fired := decode[map[string]int](t, rec)
	if fired["fired"] != 1 {
		t.Fatalf("Expected 1 fired event, got %d", fired["fired"])
	}

	// Same window again: deduped
	rec = doJSON(t, router, "POST", "/api/deadline/check", nil)
	fired = decode[map[string]int](t, rec)
	if fired["fired"] != 0 {
		t.Errorf("Expected dedup on second check, got %d", fired["fired"])
	}

	rec = doJSON(t, router, "GET", "/api/notifications?unread=true", nil)
	items := decode[[]notificationPayload](t, rec)
	if len(items) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(items))
	}
	if items[0].Title != "GravityBoard: Task Due Soon" {
		t.Errorf("Unexpected title: %s", items[0].Title)
	}
	if items[0].Body != fmt.Sprintf("%q is due in 1 hour.", "Pay invoice") {
		t.Errorf("Unexpected body: %s", items[0].Body)
	}

	rec = doJSON(t, router, "POST", "/api/notifications/"+items[0].ID+"/read", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, router, "GET", "/api/notifications?unread=true", nil)
	if items := decode[[]notificationPayload](t, rec); len(items) != 0 {
		t.Errorf("Expected empty unread list, got %d", len(items))
	}
}

func TestReadAllNotifications(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for i := 0; i < 2; i++ {
		deadlineAt := time.Now().Add(60 * time.Minute)
		doJSON(t, router, "POST", "/api/tasks", map[string]any{
			"title":    fmt.Sprintf("Task %d", i),
			"deadline": deadlineAt.Format(time.RFC3339),
		})
	}
	doJSON(t, router, "POST", "/api/deadline/check", nil)

	rec := doJSON(t, router, "POST", "/api/notifications/read-all", nil)
	marked := decode[map[string]int](t, rec)
	if marked["marked"] != 2 {
		t.Errorf("Expected 2 marked, got %d", marked["marked"])
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
