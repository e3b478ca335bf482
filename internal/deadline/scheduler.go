package deadline

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gravityboard/gravityd/internal/logging"
	"github.com/gravityboard/gravityd/internal/task"
)

// DefaultTickInterval is how often the scheduler scans for
// approaching deadlines
const DefaultTickInterval = time.Minute

// ThresholdKind names a minutes-remaining alert threshold
type ThresholdKind string

const (
	ThresholdOneHour    ThresholdKind = "1hour"
	ThresholdTenMinutes ThresholdKind = "10min"
)

// Each threshold fires inside a plus/minus one minute window around
// its nominal value, so a minute-granularity tick cannot miss it and
// cannot fire it twice in one pass.
type window struct {
	kind     ThresholdKind
	min, max int // diffMinutes bounds, inclusive
	title    string
	body     string // fmt pattern taking the task title
}

var windows = []window{
	{ThresholdOneHour, 59, 61, "GravityBoard: Task Due Soon", "%q is due in 1 hour."},
	{ThresholdTenMinutes, 9, 11, "GravityBoard: Task Immediate Deadline", "%q is due in 10 minutes!"},
}

// Event is a deadline alert emitted at most once per (task, threshold)
// pair for the lifetime of one scheduler
type Event struct {
	TaskID    string        `json:"task_id"`
	TaskTitle string        `json:"task_title"`
	Threshold ThresholdKind `json:"threshold"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	FiredAt   time.Time     `json:"fired_at"`
}

// TaskSource supplies the task set to scan on each tick
type TaskSource interface {
	ActiveTasks() ([]task.Snapshot, error)
}

// Sink receives emitted events. Called synchronously from the tick;
// implementations should hand off quickly.
type Sink interface {
	Notify(ev Event)
}

type firedKey struct {
	taskID    string
	threshold ThresholdKind
}

// Scheduler scans active tasks once per tick and emits a notification
// event as each deadline enters a threshold window.
//
// The fired-set lives in process memory only. After a restart an
// already-sent alert can repeat once if the deadline is still inside
// its window; within one process lifetime duplicates are impossible.
type Scheduler struct {
	source   TaskSource
	sink     Sink
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	fired map[firedKey]time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTickInterval overrides the scan interval
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the wall clock (used in tests)
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a deadline notification scheduler
func NewScheduler(source TaskSource, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		sink:     sink,
		interval: DefaultTickInterval,
		now:      time.Now,
		fired:    make(map[firedKey]time.Time),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking on the configured interval, with an immediate
// first check
func (s *Scheduler) Start() {
	go s.tickLoop()
	logging.Info("deadline", "Scheduler started (tick every %v)", s.interval)
}

// Stop halts future ticks. An in-flight tick finishes; fired state is
// kept. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	logging.Info("deadline", "Scheduler stopped")
}

func (s *Scheduler) tickLoop() {
	s.runTick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runTick()
		}
	}
}

func (s *Scheduler) runTick() {
	events := s.Tick(s.now())
	for _, ev := range events {
		logging.Debug("deadline", "Fired %s for task %s", ev.Threshold, ev.TaskID)
	}
}

// Tick runs one scan as of `now` and returns the events it emitted.
// Callable on demand, independent of the timer loop; ticks serialize
// on the fired-set lock so overlapping calls cannot double-fire.
func (s *Scheduler) Tick(now time.Time) []Event {
	tasks, err := s.source.ActiveTasks()
	if err != nil {
		logging.Warn("deadline", "Failed to load tasks: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var events []Event
	for _, t := range tasks {
		if t.Deadline == nil || t.Status == task.StatusCompleted {
			continue
		}

		diffMinutes := int(math.Floor(t.Deadline.Sub(now).Minutes()))

		for _, w := range windows {
			if diffMinutes < w.min || diffMinutes > w.max {
				continue
			}
			key := firedKey{taskID: t.ID, threshold: w.kind}
			if _, done := s.fired[key]; done {
				continue
			}

			ev := Event{
				TaskID:    t.ID,
				TaskTitle: t.Title,
				Threshold: w.kind,
				Title:     w.title,
				Body:      fmt.Sprintf(w.body, t.Title),
				FiredAt:   now,
			}
			s.fired[key] = now
			events = append(events, ev)

			if s.sink != nil {
				s.sink.Notify(ev)
			}
		}
	}
	return events
}

// FiredCount returns how many (task, threshold) pairs have fired so
// far in this process
func (s *Scheduler) FiredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fired)
}
