package gravity

import (
	"math"
	"sort"
	"time"

	"github.com/gravityboard/gravityd/internal/task"
)

// RankedTask is a task snapshot with its gravity score attached for
// the duration of one scoring pass. Scores are advisory and recomputed
// on every call; they are never ground truth.
type RankedTask struct {
	task.Snapshot
	GravityScore float64 `json:"gravity_score"`
}

// Engine applies the gravity formula across task collections. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	rules []Rule
	now   func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the wall clock (used in tests)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a scoring engine with the standard rule chain
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: defaultRules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the names of the rule chain, in application order
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Score computes the gravity score for a single task at the engine's
// current time, rounded to one decimal place. Never negative, never
// an error: malformed inputs are clamped or defaulted.
func (e *Engine) Score(t task.Snapshot, ctx task.Context) float64 {
	return e.ScoreAt(t, ctx, e.now())
}

// ScoreAt computes the gravity score as of an explicit instant
func (e *Engine) ScoreAt(t task.Snapshot, ctx task.Context, now time.Time) float64 {
	var score float64
	for _, rule := range e.rules {
		score = rule.Apply(score, t, ctx, now)
	}
	return math.Round(score*10) / 10
}

// Rank scores every task and returns them ordered by descending
// gravity. The sort is stable: equal-score tasks keep their input
// order, so repeated calls with identical input never reorder them.
func (e *Engine) Rank(tasks []task.Snapshot, ctx task.Context) []RankedTask {
	now := e.now()
	ranked := make([]RankedTask, len(tasks))
	for i, t := range tasks {
		ranked[i] = RankedTask{
			Snapshot:     t,
			GravityScore: e.ScoreAt(t, ctx, now),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].GravityScore > ranked[j].GravityScore
	})

	return ranked
}
