package gravity

import (
	"testing"
	"time"

	"github.com/gravityboard/gravityd/internal/task"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return testNow }))
}

func TestBaseScore(t *testing.T) {
	e := testEngine()

	// 5 * 5 * 1.0 = 25.0, the canonical medium task
	got := e.Score(task.Snapshot{
		Urgency:     5,
		Effort:      5,
		EnergyLevel: task.EnergyMedium,
	}, task.Context{})
	if got != 25.0 {
		t.Errorf("Expected 25.0, got %v", got)
	}
}

func TestEnergyModifiers(t *testing.T) {
	e := testEngine()

	cases := []struct {
		level task.EnergyLevel
		want  float64
	}{
		{task.EnergyLow, 20.0},    // 25 * 0.8
		{task.EnergyMedium, 25.0}, // 25 * 1.0
		{task.EnergyHigh, 30.0},   // 25 * 1.2
		{"", 25.0},                // absent -> 1.0
		{"frantic", 25.0},         // unrecognized -> 1.0, never an error
	}
	for _, c := range cases {
		got := e.Score(task.Snapshot{Urgency: 5, Effort: 5, EnergyLevel: c.level}, task.Context{})
		if got != c.want {
			t.Errorf("energy %q: expected %v, got %v", c.level, c.want, got)
		}
	}
}

func TestMetricClamping(t *testing.T) {
	e := testEngine()

	// Negative urgency clamps to 0, not rejected
	if got := e.Score(task.Snapshot{Urgency: -3, Effort: 5, EnergyLevel: task.EnergyMedium}, task.Context{}); got != 0 {
		t.Errorf("Expected 0 for negative urgency, got %v", got)
	}

	// Values above 10 clamp to 10
	if got := e.Score(task.Snapshot{Urgency: 50, Effort: 10, EnergyLevel: task.EnergyMedium}, task.Context{}); got != 100.0 {
		t.Errorf("Expected 100.0 for clamped metrics, got %v", got)
	}
}

func TestDeadlinePressure(t *testing.T) {
	e := testEngine()

	cases := []struct {
		name     string
		deadline time.Time
		want     float64
	}{
		{"overdue 30m triples", testNow.Add(-30 * time.Minute), 75.0},
		{"within 24h doubles", testNow.Add(6 * time.Hour), 50.0},
		{"within 72h times 1.5", testNow.Add(48 * time.Hour), 37.5},
		{"far future unchanged", testNow.Add(200 * time.Hour), 25.0},
	}
	for _, c := range cases {
		d := c.deadline
		got := e.Score(task.Snapshot{
			Urgency:     5,
			Effort:      5,
			EnergyLevel: task.EnergyMedium,
			Deadline:    &d,
		}, task.Context{})
		if got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestContextEnergyMatch(t *testing.T) {
	e := testEngine()

	// Matching energy pulls the task closer: 25 * 1.2 = 30
	got := e.Score(
		task.Snapshot{Urgency: 5, Effort: 5, EnergyLevel: task.EnergyMedium},
		task.Context{EnergyLevel: task.EnergyMedium},
	)
	if got != 30.0 {
		t.Errorf("Expected 30.0 for energy match, got %v", got)
	}

	// No context energy, no boost
	got = e.Score(
		task.Snapshot{Urgency: 5, Effort: 5, EnergyLevel: task.EnergyMedium},
		task.Context{},
	)
	if got != 25.0 {
		t.Errorf("Expected 25.0 without context, got %v", got)
	}
}

func TestContextEnergyMismatch(t *testing.T) {
	e := testEngine()

	// Low-energy user, high-energy task: 5*5*1.2 = 30, halved to 15
	got := e.Score(
		task.Snapshot{Urgency: 5, Effort: 5, EnergyLevel: task.EnergyHigh},
		task.Context{EnergyLevel: task.EnergyLow},
	)
	if got != 15.0 {
		t.Errorf("Expected 15.0 for low/high mismatch, got %v", got)
	}

	// Low-energy user, low-energy task: match boost applies, no penalty
	got = e.Score(
		task.Snapshot{Urgency: 5, Effort: 5, EnergyLevel: task.EnergyLow},
		task.Context{EnergyLevel: task.EnergyLow},
	)
	if got != 24.0 { // 25 * 0.8 * 1.2
		t.Errorf("Expected 24.0 for low/low match, got %v", got)
	}
}

func TestRounding(t *testing.T) {
	e := testEngine()

	// 3 * 7 * 0.8 = 16.8 exactly one decimal
	got := e.Score(task.Snapshot{Urgency: 3, Effort: 7, EnergyLevel: task.EnergyLow}, task.Context{})
	if got != 16.8 {
		t.Errorf("Expected 16.8, got %v", got)
	}

	// 7 * 7 * 0.8 = 39.2
	got = e.Score(task.Snapshot{Urgency: 7, Effort: 7, EnergyLevel: task.EnergyLow}, task.Context{})
	if got != 39.2 {
		t.Errorf("Expected 39.2, got %v", got)
	}
}

func TestRankOrdersByDescendingScore(t *testing.T) {
	e := testEngine()

	tasks := []task.Snapshot{
		{ID: "small", Urgency: 2, Effort: 2, EnergyLevel: task.EnergyMedium},
		{ID: "big", Urgency: 9, Effort: 9, EnergyLevel: task.EnergyMedium},
		{ID: "mid", Urgency: 5, Effort: 5, EnergyLevel: task.EnergyMedium},
	}

	ranked := e.Rank(tasks, task.Context{})
	if len(ranked) != 3 {
		t.Fatalf("Expected 3 ranked tasks, got %d", len(ranked))
	}
	wantOrder := []string{"big", "mid", "small"}
	for i, want := range wantOrder {
		if ranked[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, ranked[i].ID)
		}
	}
}

func TestRankStability(t *testing.T) {
	e := testEngine()

	// Three tasks with identical scores must keep input order,
	// call after call.
	tasks := []task.Snapshot{
		{ID: "first", Urgency: 5, Effort: 5, EnergyLevel: task.EnergyMedium},
		{ID: "second", Urgency: 5, Effort: 5, EnergyLevel: task.EnergyMedium},
		{ID: "third", Urgency: 5, Effort: 5, EnergyLevel: task.EnergyMedium},
	}

	for call := 0; call < 3; call++ {
		ranked := e.Rank(tasks, task.Context{})
		for i, want := range []string{"first", "second", "third"} {
			if ranked[i].ID != want {
				t.Fatalf("Call %d position %d: expected %s, got %s", call, i, want, ranked[i].ID)
			}
		}
	}
}

func TestRankIsIdempotent(t *testing.T) {
	e := testEngine()

	deadline := testNow.Add(3 * time.Hour)
	tasks := []task.Snapshot{
		{ID: "a", Urgency: 8, Effort: 4, EnergyLevel: task.EnergyHigh, Deadline: &deadline},
		{ID: "b", Urgency: 4, Effort: 8, EnergyLevel: task.EnergyLow},
		{ID: "c", Urgency: 6, Effort: 6, EnergyLevel: task.EnergyMedium},
	}
	ctx := task.Context{EnergyLevel: task.EnergyHigh}

	first := e.Rank(tasks, ctx)
	second := e.Rank(tasks, ctx)

	if len(first) != len(second) {
		t.Fatalf("Length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].GravityScore != second[i].GravityScore {
			t.Errorf("Position %d differs between calls: %s/%v vs %s/%v",
				i, first[i].ID, first[i].GravityScore, second[i].ID, second[i].GravityScore)
		}
	}
}

func TestRuleChainOrder(t *testing.T) {
	e := testEngine()

	want := []string{"base", "deadline_pressure", "energy_match", "energy_mismatch", "context_tags"}
	got := e.Rules()
	if len(got) != len(want) {
		t.Fatalf("Expected %d rules, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Rule %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
