package focus

import (
	"time"

	"github.com/gravityboard/gravityd/internal/task"
)

// Session length bounds in minutes
const (
	MinDuration = 5
	MaxDuration = 90
)

// ProposeDuration sizes a focus session for a task given the user's
// requested energy and the current local time. Pure function; the
// caller decides whose clock and timezone `now` carries.
func ProposeDuration(t task.Snapshot, energy task.EnergyLevel, now time.Time) int {
	var base int
	switch energy {
	case task.EnergyLow:
		base = 15 // micro-focus
	case task.EnergyHigh:
		base = 45 // deep work
	default:
		base = 25 // classic pomodoro, also for unrecognized input
	}

	// Hard tasks stretch a high-energy session and shrink a
	// low-energy one (avoid burnout)
	if t.Effort > 7 {
		switch energy {
		case task.EnergyHigh:
			base += 10
		case task.EnergyLow:
			base -= 5
		}
	}

	// Late-night cap
	hour := now.Hour()
	if hour >= 22 || hour < 5 {
		if base > 20 {
			base = 20
		}
	}

	if base < MinDuration {
		base = MinDuration
	}
	if base > MaxDuration {
		base = MaxDuration
	}
	return base
}
