package core

import (
	"time"
)

// Priority describes how urgent a task is to the user.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// BumpReason explains why a task was rescheduled.
type BumpReason string

const (
	BumpReasonOverdue        BumpReason = "overdue"
	BumpReasonMissedSchedule BumpReason = "missed_schedule"
	BumpReasonAutomatic      BumpReason = "automatic_reschedule"
	BumpReasonManual         BumpReason = "manual_reschedule"
)

// Task represents a user's todo item. Scheduling fields are pointers so
// "never set" is distinguishable from a zero value.
type Task struct {
	ID               string
	UserID           string
	Title            string
	Priority         Priority
	Status           TaskStatus
	Category         string
	EstimatedMinutes *int
	DueDate          *time.Time
	ScheduledDate    *time.Time
	ScheduledTime    *TimeOfDay
	BumpCount        int
	AutoBumped       bool
	AutoGenerated    bool
	LastBumpedAt     *time.Time
	OriginalDueDate  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Commitment is a fixed calendar event. The engine only reads these for
// conflict checking and never mutates them.
type Commitment struct {
	ID        string
	UserID    string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
}

// Preferences holds per-user scheduling switches.
type Preferences struct {
	UserID         string
	EnableAutoBump bool
	UpdatedAt      time.Time
}

// BumpContext captures the scoring state behind a single bump decision.
// Stored as a JSON blob alongside the log entry.
type BumpContext struct {
	BumpScore        float64    `json:"bump_score,omitempty"`
	SuggestedTime    *TimeOfDay `json:"suggested_time,omitempty"`
	OriginalPriority Priority   `json:"original_priority,omitempty"`
	BumpCount        int        `json:"bump_count"`
	ManualBump       bool       `json:"manual_bump,omitempty"`
	TargetTime       *TimeOfDay `json:"target_time,omitempty"`
}

// BumpLog is one append-only audit record for a bump.
type BumpLog struct {
	ID               string
	TaskID           string
	UserID           string
	Reason           BumpReason
	OldScheduledDate *time.Time
	NewScheduledDate *time.Time
	OldDueDate       *time.Time
	NewDueDate       *time.Time
	Context          BumpContext
	AISuggested      bool
	UserConfirmed    bool
	CreatedAt        time.Time
}

// BumpUpdate carries the task fields a bump is allowed to write. These are
// the only task fields the engine ever mutates.
type BumpUpdate struct {
	ScheduledDate   time.Time
	ScheduledTime   *TimeOfDay
	AutoBumped      bool
	BumpCount       int
	LastBumpedAt    time.Time
	OriginalDueDate *time.Time
}

// BumpResult aggregates the outcome of one auto-bump run.
type BumpResult struct {
	Success      bool
	BumpedCount  int
	SkippedCount int
	Errors       []string
}

// CategoryConfig holds scheduling preferences for one task category.
// BufferTime is advisory metadata and is not consulted during slot search.
type CategoryConfig struct {
	PreferredTimes []TimeOfDay
	MaxDuration    int
	BufferTime     int
}

// WorkingHours bounds the hour sweep in slot search, [Start, End).
type WorkingHours struct {
	Start int
	End   int
}

// SchedulingConfig controls the auto-bump engine. Immutable per run.
type SchedulingConfig struct {
	MaxBumpsPerTask    int
	BumpHour           int
	WorkingDays        []time.Weekday
	WorkingHours       WorkingHours
	PriorityWeights    map[Priority]float64
	CategoryScheduling map[string]CategoryConfig
}

// DefaultSchedulingConfig returns the stock scheduling configuration.
func DefaultSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{
		MaxBumpsPerTask: 3,
		BumpHour:        21,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		WorkingHours: WorkingHours{Start: 9, End: 17},
		PriorityWeights: map[Priority]float64{
			PriorityUrgent: 4,
			PriorityHigh:   3,
			PriorityMedium: 2,
			PriorityLow:    1,
		},
		CategoryScheduling: map[string]CategoryConfig{
			"video": {
				PreferredTimes: mustTimes("10:00", "14:00", "16:00"),
				MaxDuration:    60,
				BufferTime:     15,
			},
			"practice": {
				PreferredTimes: mustTimes("10:30", "14:30", "16:30"),
				MaxDuration:    120,
				BufferTime:     30,
			},
			"learn": {
				PreferredTimes: mustTimes("09:00", "13:00", "15:00"),
				MaxDuration:    90,
				BufferTime:     15,
			},
			"review": {
				PreferredTimes: mustTimes("17:00", "18:00", "19:00"),
				MaxDuration:    45,
				BufferTime:     10,
			},
			"build": {
				PreferredTimes: mustTimes("10:00", "14:00"),
				MaxDuration:    180,
				BufferTime:     30,
			},
		},
	}
}

// IsWorkingDay reports whether the configured working-days set contains d.
func (c SchedulingConfig) IsWorkingDay(d time.Weekday) bool {
	for _, wd := range c.WorkingDays {
		if wd == d {
			return true
		}
	}
	return false
}

func mustTimes(values ...string) []TimeOfDay {
	times := make([]TimeOfDay, 0, len(values))
	for _, v := range values {
		times = append(times, MustParseTimeOfDay(v))
	}
	return times
}
