package gravity

import (
	"time"

	"github.com/gravityboard/gravityd/internal/task"
)

// Rule is one named step of the gravity formula. Rules run in order,
// each transforming the running score. They are pure: same inputs,
// same output.
type Rule struct {
	Name  string
	Apply func(score float64, t task.Snapshot, ctx task.Context, now time.Time) float64
}

// defaultRules returns the gravity formula as an ordered rule chain.
// The order is part of the product's visible behavior.
func defaultRules() []Rule {
	return []Rule{
		{
			Name: "base",
			// urgency x effort x task energy modifier, inputs clamped to [0,10]
			Apply: func(_ float64, t task.Snapshot, _ task.Context, _ time.Time) float64 {
				return task.ClampMetric(t.Urgency) * task.ClampMetric(t.Effort) * t.EnergyLevel.Modifier()
			},
		},
		{
			Name: "deadline_pressure",
			Apply: func(score float64, t task.Snapshot, _ task.Context, now time.Time) float64 {
				if t.Deadline == nil {
					return score
				}
				hoursRemaining := t.Deadline.Sub(now).Hours()
				switch {
				case hoursRemaining < 0:
					return score * 3.0 // overdue
				case hoursRemaining < 24:
					return score * 2.0
				case hoursRemaining < 72:
					return score * 1.5
				default:
					return score
				}
			},
		},
		{
			Name: "energy_match",
			// user's current energy matches the task's needed energy:
			// pull it closer
			Apply: func(score float64, t task.Snapshot, ctx task.Context, _ time.Time) float64 {
				if ctx.EnergyLevel != "" && ctx.EnergyLevel == t.EnergyLevel {
					return score * 1.2
				}
				return score
			},
		},
		{
			Name: "energy_mismatch",
			// low-energy users should not be shown high-energy tasks.
			// Independent of energy_match, same order as always.
			Apply: func(score float64, t task.Snapshot, ctx task.Context, _ time.Time) float64 {
				if ctx.EnergyLevel == task.EnergyLow && t.EnergyLevel == task.EnergyHigh {
					return score * 0.5
				}
				return score
			},
		},
		{
			Name: "context_tags",
			// Location/device tag matching. The product reserves this
			// slot but applies no adjustment yet.
			Apply: func(score float64, _ task.Snapshot, _ task.Context, _ time.Time) float64 {
				return score
			},
		},
	}
}
