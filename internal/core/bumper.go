package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// ErrTaskNotFound is returned when a bump targets a task that does not exist
// or belongs to a different user.
var ErrTaskNotFound = errors.New("task not found")

// scheduleWindowDays is how far ahead existing commitments and scheduled
// tasks are loaded for conflict checking.
const scheduleWindowDays = 30

// defaultHistoryLimit caps BumpHistory results when the caller passes none.
const defaultHistoryLimit = 50

// Store abstracts the persistence layer consumed by the bump engine.
type Store interface {
	// GetPreferences returns nil without error when the user has none.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)

	// QueryBumpCandidates returns tasks with status pending or in_progress,
	// bump_count below maxBumps, and a due date or scheduled date in the past.
	QueryBumpCandidates(ctx context.Context, userID string, now time.Time, maxBumps int) ([]*Task, error)

	ListCommitments(ctx context.Context, userID string, start, end time.Time) ([]*Commitment, error)

	// ListScheduledTasks returns tasks with a non-null scheduled time whose
	// scheduled date falls in [start, end].
	ListScheduledTasks(ctx context.Context, userID string, start, end time.Time) ([]*Task, error)

	GetTaskForUser(ctx context.Context, taskID, userID string) (*Task, error)
	ApplyBump(ctx context.Context, taskID string, update BumpUpdate) error

	InsertBumpLog(ctx context.Context, entry *BumpLog) error
	ListBumpLogs(ctx context.Context, userID, taskID string, limit int) ([]*BumpLog, error)
}

// bumpCandidate wraps a task with its computed urgency for one run.
type bumpCandidate struct {
	task   *Task
	score  float64
	reason BumpReason
}

// Bumper reschedules overdue and missed tasks. One instance serves all
// users; each ProcessAutoBump call is an independent sequential run.
type Bumper struct {
	store  Store
	cfg    SchedulingConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewBumper constructs the bump engine with its storage collaborator and
// scheduling configuration.
func NewBumper(store Store, cfg SchedulingConfig, logger *slog.Logger) *Bumper {
	return &Bumper{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Config returns the scheduling configuration the engine was built with.
func (b *Bumper) Config() SchedulingConfig {
	return b.cfg
}

// ProcessAutoBump scores and reschedules all bump-eligible tasks for a user.
// Fetch failures abort the run; per-task persistence failures are isolated
// and reported in Errors while the rest of the batch proceeds.
func (b *Bumper) ProcessAutoBump(ctx context.Context, userID string) BumpResult {
	now := b.now()

	prefs, err := b.store.GetPreferences(ctx, userID)
	if err != nil {
		return fatalResult(fmt.Errorf("load preferences: %w", err))
	}
	if prefs != nil && !prefs.EnableAutoBump {
		b.logger.Info("auto-bump disabled for user", "user_id", userID)
		return BumpResult{
			Success: true,
			Errors:  []string{"Auto-bump disabled in user preferences"},
		}
	}

	tasks, err := b.store.QueryBumpCandidates(ctx, userID, now, b.cfg.MaxBumpsPerTask)
	if err != nil {
		return fatalResult(fmt.Errorf("fetch bump candidates: %w", err))
	}
	b.logger.Info("found bump candidates", "user_id", userID, "count", len(tasks))
	if len(tasks) == 0 {
		return BumpResult{Success: true}
	}

	windowEnd := now.AddDate(0, 0, scheduleWindowDays)
	commitments, err := b.store.ListCommitments(ctx, userID, now, windowEnd)
	if err != nil {
		return fatalResult(fmt.Errorf("fetch existing commitments: %w", err))
	}
	scheduled, err := b.store.ListScheduledTasks(ctx, userID, now, windowEnd)
	if err != nil {
		return fatalResult(fmt.Errorf("fetch scheduled tasks: %w", err))
	}

	candidates := make([]bumpCandidate, 0, len(tasks))
	for _, task := range tasks {
		candidates = append(candidates, bumpCandidate{
			task:   task,
			score:  BumpScore(task, now, b.cfg),
			reason: ClassifyBumpReason(task, now),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	result := BumpResult{Success: true}

	// Sequential greedy allocation: each placed task joins the busy set so
	// later candidates cannot claim the same slot.
	busy := scheduled
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("run aborted: %v", err))
			result.SkippedCount += len(candidates) - i
			break
		}

		slot := FindSlot(candidate.task, now, commitments, busy, b.cfg)
		if err := b.executeBump(ctx, candidate, slot, now); err != nil {
			b.logger.Error("bump task", "task_id", candidate.task.ID, "err", err)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to bump %q: %v", candidate.task.Title, err))
			result.SkippedCount++
			continue
		}
		busy = append(busy, placedTask(candidate.task, slot))
		result.BumpedCount++
	}

	b.logger.Info("auto-bump complete",
		"user_id", userID, "bumped", result.BumpedCount, "skipped", result.SkippedCount)
	return result
}

// executeBump persists the new schedule and appends the audit record. Audit
// failure does not undo an already-applied bump.
func (b *Bumper) executeBump(ctx context.Context, candidate bumpCandidate, slot Slot, now time.Time) error {
	task := candidate.task
	slotTime := slot.Time

	update := BumpUpdate{
		ScheduledDate:   slot.Date,
		ScheduledTime:   &slotTime,
		AutoBumped:      true,
		BumpCount:       task.BumpCount + 1,
		LastBumpedAt:    now,
		OriginalDueDate: firstSet(task.OriginalDueDate, task.DueDate),
	}
	if err := b.store.ApplyBump(ctx, task.ID, update); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	entry := &BumpLog{
		ID:               NewID(),
		TaskID:           task.ID,
		UserID:           task.UserID,
		Reason:           candidate.reason,
		OldScheduledDate: task.ScheduledDate,
		NewScheduledDate: &slot.Date,
		OldDueDate:       task.DueDate,
		NewDueDate:       task.DueDate,
		Context: BumpContext{
			BumpScore:        candidate.score,
			SuggestedTime:    &slotTime,
			OriginalPriority: task.Priority,
			BumpCount:        task.BumpCount + 1,
		},
		AISuggested:   true,
		UserConfirmed: false,
	}
	if err := b.store.InsertBumpLog(ctx, entry); err != nil {
		b.logger.Warn("record bump log", "task_id", task.ID, "err", err)
	}
	return nil
}

// ManualBump reschedules one task to a caller-chosen date and time. No
// scoring, no conflict check and no bump-count cap: this is the user's
// escape hatch. Fails before any mutation when the task is missing or owned
// by someone else.
func (b *Bumper) ManualBump(ctx context.Context, taskID, userID string, targetDate time.Time, targetTime *TimeOfDay, reason BumpReason) error {
	if reason == "" {
		reason = BumpReasonManual
	}

	task, err := b.store.GetTaskForUser(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return fmt.Errorf("manual bump %s: %w", taskID, ErrTaskNotFound)
		}
		return fmt.Errorf("fetch task %s: %w", taskID, err)
	}

	now := b.now()
	update := BumpUpdate{
		ScheduledDate:   targetDate,
		ScheduledTime:   targetTime,
		AutoBumped:      false,
		BumpCount:       task.BumpCount + 1,
		LastBumpedAt:    now,
		OriginalDueDate: firstSet(task.OriginalDueDate, task.DueDate),
	}
	if err := b.store.ApplyBump(ctx, taskID, update); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}

	entry := &BumpLog{
		ID:               NewID(),
		TaskID:           taskID,
		UserID:           userID,
		Reason:           reason,
		OldScheduledDate: task.ScheduledDate,
		NewScheduledDate: &targetDate,
		OldDueDate:       task.DueDate,
		NewDueDate:       task.DueDate,
		Context: BumpContext{
			ManualBump: true,
			TargetTime: targetTime,
			BumpCount:  task.BumpCount + 1,
		},
		AISuggested:   false,
		UserConfirmed: true,
	}
	if err := b.store.InsertBumpLog(ctx, entry); err != nil {
		b.logger.Warn("record manual bump log", "task_id", taskID, "err", err)
	}
	return nil
}

// BumpHistory lists audit entries for a user, newest first. taskID narrows
// the history to one task when non-empty.
func (b *Bumper) BumpHistory(ctx context.Context, userID, taskID string, limit int) ([]*BumpLog, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := b.store.ListBumpLogs(ctx, userID, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch bump history: %w", err)
	}
	return entries, nil
}

// PreviewSlot runs the slot finder against the user's current schedule
// without persisting anything.
func (b *Bumper) PreviewSlot(ctx context.Context, taskID, userID string) (Slot, error) {
	task, err := b.store.GetTaskForUser(ctx, taskID, userID)
	if err != nil {
		return Slot{}, err
	}
	now := b.now()
	windowEnd := now.AddDate(0, 0, scheduleWindowDays)
	commitments, err := b.store.ListCommitments(ctx, userID, now, windowEnd)
	if err != nil {
		return Slot{}, fmt.Errorf("fetch existing commitments: %w", err)
	}
	scheduled, err := b.store.ListScheduledTasks(ctx, userID, now, windowEnd)
	if err != nil {
		return Slot{}, fmt.Errorf("fetch scheduled tasks: %w", err)
	}
	return FindSlot(task, now, commitments, scheduled, b.cfg), nil
}

// placedTask returns a copy of the task carrying its newly claimed slot, for
// use as a conflict source against later candidates.
func placedTask(task *Task, slot Slot) *Task {
	placed := *task
	date := slot.Date
	slotTime := slot.Time
	placed.ScheduledDate = &date
	placed.ScheduledTime = &slotTime
	return &placed
}

func firstSet(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func fatalResult(err error) BumpResult {
	return BumpResult{Success: false, Errors: []string{err.Error()}}
}
