package task

import "time"

// EnergyLevel is the mental-effort capacity a task demands (or a user has)
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

// Modifier returns the scoring multiplier for this energy level.
// Unrecognized values behave like medium.
func (e EnergyLevel) Modifier() float64 {
	switch e {
	case EnergyLow:
		return 0.8
	case EnergyHigh:
		return 1.2
	default:
		return 1.0
	}
}

// Status represents where a task sits on the board
type Status string

const (
	StatusFloating  Status = "floating" // in the pool, waiting to surface
	StatusSurfaced  Status = "surfaced" // actively shown to the user
	StatusCompleted Status = "completed"
)

// Kind classifies what acting on a task means
type Kind string

const (
	KindGeneral  Kind = "general"
	KindEmail    Kind = "email"
	KindReminder Kind = "reminder"
	KindCalendar Kind = "calendar"
)

// Recurrence describes how a task repeats
type Recurrence struct {
	Frequency string `json:"frequency"` // none, daily, weekly, monthly
	Interval  int    `json:"interval"`  // e.g. every 2 weeks
}

// DefaultMetric is used when urgency or effort is not supplied
const DefaultMetric = 5

// Snapshot is a read-only view of a task as the engines see it.
// Urgency and effort are 0-10; out-of-range values are clamped at
// scoring time, never rejected.
type Snapshot struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Urgency     float64     `json:"urgency"`
	Effort      float64     `json:"effort"`
	EnergyLevel EnergyLevel `json:"energy_level"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	ContextTags []string    `json:"context_tags,omitempty"`
	Status      Status      `json:"status"`
	Kind        Kind        `json:"kind"`
	Priority    string      `json:"priority,omitempty"` // low, medium, high
	Section     string      `json:"section,omitempty"`  // e.g. Work, Personal, Health
	Recurrence  Recurrence  `json:"recurrence"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Context is the user's ephemeral state, supplied per scoring call
// and never persisted.
type Context struct {
	EnergyLevel EnergyLevel `json:"energy_level,omitempty"` // "" means unknown
	LocationTag string      `json:"location_tag,omitempty"`
}

// ClampMetric bounds an urgency/effort value to [0,10]
func ClampMetric(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// ApplyDefaults fills zero-value fields the way the board expects
// new tasks to look
func (s *Snapshot) ApplyDefaults() {
	if s.EnergyLevel == "" {
		s.EnergyLevel = EnergyMedium
	}
	if s.Status == "" {
		s.Status = StatusFloating
	}
	if s.Kind == "" {
		s.Kind = KindGeneral
	}
	if s.Priority == "" {
		s.Priority = "medium"
	}
	if s.Section == "" {
		s.Section = "General"
	}
	if s.Recurrence.Frequency == "" {
		s.Recurrence.Frequency = "none"
	}
	if s.Recurrence.Interval == 0 {
		s.Recurrence.Interval = 1
	}
}
