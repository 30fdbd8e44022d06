package core

import (
	"math"
	"time"
)

// BumpScore computes the urgency score used to rank bump candidates.
// Higher means the task should claim a slot earlier. The value is a relative
// ranking key only, never shown to users as an absolute metric.
func BumpScore(task *Task, now time.Time, cfg SchedulingConfig) float64 {
	score := cfg.PriorityWeights[task.Priority] * 10

	if task.DueDate != nil {
		score += float64(max(0, wholeDaysBetween(*task.DueDate, now))) * 5
	}
	if task.ScheduledDate != nil {
		score += float64(max(0, wholeDaysBetween(*task.ScheduledDate, now))) * 3
	}

	// Fewer prior bumps rank higher.
	score += float64(cfg.MaxBumpsPerTask-task.BumpCount) * 2

	// Short tasks are easier to slot in.
	if task.EstimatedMinutes != nil && *task.EstimatedMinutes <= 30 {
		score += 5
	}

	if task.AutoGenerated {
		score -= 2
	}

	return score
}

// ClassifyBumpReason decides why a task needs bumping: overdue wins over a
// missed schedule, anything else is a plain automatic reschedule.
func ClassifyBumpReason(task *Task, now time.Time) BumpReason {
	if task.DueDate != nil && task.DueDate.Before(now) {
		return BumpReasonOverdue
	}
	if task.ScheduledDate != nil && task.ScheduledDate.Before(now) {
		return BumpReasonMissedSchedule
	}
	return BumpReasonAutomatic
}

// wholeDaysBetween returns floor((to - from) / 24h). Negative when from is
// in the future.
func wholeDaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
