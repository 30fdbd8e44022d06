package core

import (
	"time"
)

const (
	// maxLookaheadDays bounds the forward scan of the slot finder.
	maxLookaheadDays = 14

	// defaultDurationMinutes is assumed for tasks without an estimate.
	defaultDurationMinutes = 30
)

// defaultPreferredTimes is used for categories without configured preferences.
var defaultPreferredTimes = mustTimes("10:00", "14:00", "16:00")

// Slot is a candidate (date, time-of-day) placement for a task.
type Slot struct {
	Date time.Time
	Time TimeOfDay
}

// IsSlotAvailable reports whether a task of the given duration can start at
// time on date without overlapping any commitment or already-scheduled task
// on that day. Touching endpoints are not conflicts.
func IsSlotAvailable(date time.Time, tod TimeOfDay, durationMinutes int, commitments []*Commitment, scheduled []*Task) bool {
	if durationMinutes <= 0 {
		durationMinutes = defaultDurationMinutes
	}
	slotStart := tod.On(date)
	slotEnd := slotStart.Add(time.Duration(durationMinutes) * time.Minute)

	for _, c := range commitments {
		if intervalsConflict(slotStart, slotEnd, c.StartTime, c.EndTime) {
			return false
		}
	}

	for _, t := range scheduled {
		if t.ScheduledDate == nil || t.ScheduledTime == nil {
			continue
		}
		if !sameDay(*t.ScheduledDate, date) {
			continue
		}
		otherStart := t.ScheduledTime.On(date)
		otherEnd := otherStart.Add(time.Duration(taskDuration(t)) * time.Minute)
		if intervalsConflict(slotStart, slotEnd, otherStart, otherEnd) {
			return false
		}
	}

	return true
}

// FindSlot walks forward day by day looking for the first free slot for the
// task: preferred category times first, then a sweep of whole working hours.
// It always returns a slot; when the whole lookahead window is full it falls
// back to tomorrow at the category's first preferred time without checking
// for conflicts.
func FindSlot(task *Task, startFrom time.Time, commitments []*Commitment, scheduled []*Task, cfg SchedulingConfig) Slot {
	category, hasCategory := cfg.CategoryScheduling[taskCategory(task)]
	preferred := defaultPreferredTimes
	if hasCategory && len(category.PreferredTimes) > 0 {
		preferred = category.PreferredTimes
	}
	duration := taskDuration(task)

	for offset := 1; offset <= maxLookaheadDays; offset++ {
		date := startFrom.AddDate(0, 0, offset)

		// The weekend test is subsumed by the working-days test under the
		// stock Mon-Fri config; both are applied, matching the original
		// behavior in case the sets diverge.
		if isWeekend(date.Weekday()) && !cfg.IsWorkingDay(date.Weekday()) {
			continue
		}
		if !cfg.IsWorkingDay(date.Weekday()) {
			continue
		}

		for _, tod := range preferred {
			if IsSlotAvailable(date, tod, duration, commitments, scheduled) {
				return Slot{Date: date, Time: tod}
			}
		}

		for hour := cfg.WorkingHours.Start; hour < cfg.WorkingHours.End; hour++ {
			tod := HourOfDay(hour)
			if IsSlotAvailable(date, tod, duration, commitments, scheduled) {
				return Slot{Date: date, Time: tod}
			}
		}
	}

	// Forced terminal placement; not guaranteed conflict-free.
	return Slot{Date: startFrom.AddDate(0, 0, 1), Time: preferred[0]}
}

// intervalsConflict applies the three-way overlap test: full containment,
// left overlap and right overlap. Intervals are half-open, so a slot ending
// exactly when another begins is free.
func intervalsConflict(slotStart, slotEnd, otherStart, otherEnd time.Time) bool {
	if !slotStart.Before(otherStart) && slotStart.Before(otherEnd) {
		return true
	}
	if slotEnd.After(otherStart) && !slotEnd.After(otherEnd) {
		return true
	}
	if !slotStart.After(otherStart) && !slotEnd.Before(otherEnd) {
		return true
	}
	return false
}

func taskDuration(t *Task) int {
	if t.EstimatedMinutes != nil && *t.EstimatedMinutes > 0 {
		return *t.EstimatedMinutes
	}
	return defaultDurationMinutes
}

func taskCategory(t *Task) string {
	if t.Category == "" {
		return "other"
	}
	return t.Category
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
