package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autobump/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.DB.Close() })
	return s
}

func pendingTask(id, userID string) *core.Task {
	return &core.Task{
		ID:       id,
		UserID:   userID,
		Title:    "title " + id,
		Priority: core.PriorityMedium,
		Status:   core.TaskStatusPending,
		Category: "learn",
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.InsertTask(ctx, pendingTask("t1", "u1")))
	require.NoError(t, s.DB.Close())

	// Reopening must not re-apply migrations or lose data.
	s, err = Open(ctx, dir)
	require.NoError(t, err)
	defer s.DB.Close()
	got, err := s.GetTaskForUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "title t1", got.Title)
}

func TestTaskRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	scheduledDate := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tod := core.MustParseTimeOfDay("10:30")
	minutes := 45
	task := pendingTask("t1", "u1")
	task.Priority = core.PriorityUrgent
	task.EstimatedMinutes = &minutes
	task.DueDate = &due
	task.ScheduledDate = &scheduledDate
	task.ScheduledTime = &tod
	task.AutoGenerated = true
	require.NoError(t, s.InsertTask(ctx, task))

	got, err := s.GetTaskForUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, core.PriorityUrgent, got.Priority)
	assert.Equal(t, core.TaskStatusPending, got.Status)
	assert.Equal(t, "learn", got.Category)
	require.NotNil(t, got.EstimatedMinutes)
	assert.Equal(t, 45, *got.EstimatedMinutes)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	require.NotNil(t, got.ScheduledDate)
	assert.Equal(t, "2025-06-03", got.ScheduledDate.Format("2006-01-02"))
	require.NotNil(t, got.ScheduledTime)
	assert.Equal(t, "10:30", got.ScheduledTime.String())
	assert.True(t, got.AutoGenerated)
	assert.Nil(t, got.LastBumpedAt)
	assert.Nil(t, got.OriginalDueDate)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetTaskForUserEnforcesOwnership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertTask(ctx, pendingTask("t1", "u1")))

	_, err := s.GetTaskForUser(ctx, "t1", "u2")
	assert.ErrorIs(t, err, core.ErrTaskNotFound)
	_, err = s.GetTaskForUser(ctx, "missing", "u1")
	assert.ErrorIs(t, err, core.ErrTaskNotFound)
}

func TestListTasksStatusFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	done := pendingTask("t2", "u1")
	done.Status = core.TaskStatusCompleted
	require.NoError(t, s.InsertTask(ctx, pendingTask("t1", "u1")))
	require.NoError(t, s.InsertTask(ctx, done))
	require.NoError(t, s.InsertTask(ctx, pendingTask("t3", "u2")))

	all, err := s.ListTasks(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := core.TaskStatusCompleted
	completed, err := s.ListTasks(ctx, "u1", &status)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "t2", completed[0].ID)
}

func TestDeleteTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertTask(ctx, pendingTask("t1", "u1")))

	assert.ErrorIs(t, s.DeleteTask(ctx, "t1", "u2"), core.ErrTaskNotFound)
	require.NoError(t, s.DeleteTask(ctx, "t1", "u1"))
	assert.ErrorIs(t, s.DeleteTask(ctx, "t1", "u1"), core.ErrTaskNotFound)
}

func TestQueryBumpCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	pastDate := now.AddDate(0, 0, -2)

	overdue := pendingTask("overdue", "u1")
	overdue.DueDate = &past

	missed := pendingTask("missed", "u1")
	missed.ScheduledDate = &pastDate

	upcoming := pendingTask("upcoming", "u1")
	upcoming.DueDate = &future

	finished := pendingTask("finished", "u1")
	finished.Status = core.TaskStatusCompleted
	finished.DueDate = &past

	capped := pendingTask("capped", "u1")
	capped.DueDate = &past
	capped.BumpCount = 3

	foreign := pendingTask("foreign", "u2")
	foreign.DueDate = &past

	for _, task := range []*core.Task{overdue, missed, upcoming, finished, capped, foreign} {
		require.NoError(t, s.InsertTask(ctx, task))
	}

	candidates, err := s.QueryBumpCandidates(ctx, "u1", now, 3)
	require.NoError(t, err)
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"overdue", "missed"}, ids)
}

func TestApplyBump(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	task := pendingTask("t1", "u1")
	task.DueDate = &due
	require.NoError(t, s.InsertTask(ctx, task))

	tod := core.MustParseTimeOfDay("14:00")
	now := time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC)
	update := core.BumpUpdate{
		ScheduledDate:   time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		ScheduledTime:   &tod,
		AutoBumped:      true,
		BumpCount:       1,
		LastBumpedAt:    now,
		OriginalDueDate: &due,
	}
	require.NoError(t, s.ApplyBump(ctx, "t1", update))

	got, err := s.GetTaskForUser(ctx, "t1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got.ScheduledDate)
	assert.Equal(t, "2025-06-03", got.ScheduledDate.Format("2006-01-02"))
	require.NotNil(t, got.ScheduledTime)
	assert.Equal(t, "14:00", got.ScheduledTime.String())
	assert.True(t, got.AutoBumped)
	assert.Equal(t, 1, got.BumpCount)
	require.NotNil(t, got.LastBumpedAt)
	assert.True(t, now.Equal(*got.LastBumpedAt))
	require.NotNil(t, got.OriginalDueDate)
	assert.True(t, due.Equal(*got.OriginalDueDate))

	assert.ErrorIs(t, s.ApplyBump(ctx, "missing", update), core.ErrTaskNotFound)
}

func TestListScheduledTasksWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tod := core.MustParseTimeOfDay("10:00")

	inWindow := pendingTask("in", "u1")
	inDate := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	inWindow.ScheduledDate = &inDate
	inWindow.ScheduledTime = &tod

	noTime := pendingTask("no-time", "u1")
	noTime.ScheduledDate = &inDate

	late := pendingTask("late", "u1")
	lateDate := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	late.ScheduledDate = &lateDate
	late.ScheduledTime = &tod

	for _, task := range []*core.Task{inWindow, noTime, late} {
		require.NoError(t, s.InsertTask(ctx, task))
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	scheduled, err := s.ListScheduledTasks(ctx, "u1", start, end)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "in", scheduled[0].ID)
}

func TestCommitments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	early := &core.Commitment{
		ID:        "c1",
		UserID:    "u1",
		Title:     "standup",
		StartTime: time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 3, 9, 30, 0, 0, time.UTC),
	}
	late := &core.Commitment{
		ID:        "c2",
		UserID:    "u1",
		Title:     "review",
		StartTime: time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertCommitment(ctx, early))
	require.NoError(t, s.InsertCommitment(ctx, late))

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	commitments, err := s.ListCommitments(ctx, "u1", start, start.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, commitments, 1)
	assert.Equal(t, "c1", commitments[0].ID)
	assert.Equal(t, "standup", commitments[0].Title)
	assert.True(t, early.StartTime.Equal(commitments[0].StartTime))
	assert.True(t, early.EndTime.Equal(commitments[0].EndTime))

	assert.ErrorIs(t, s.DeleteCommitment(ctx, "c1", "u2"), ErrCommitmentNotFound)
	require.NoError(t, s.DeleteCommitment(ctx, "c1", "u1"))
	assert.ErrorIs(t, s.DeleteCommitment(ctx, "c1", "u1"), ErrCommitmentNotFound)
}

func TestBumpLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tod := core.MustParseTimeOfDay("10:00")
	newDate := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	entries := []*core.BumpLog{
		{
			ID: "l1", TaskID: "t1", UserID: "u1",
			Reason:           core.BumpReasonOverdue,
			NewScheduledDate: &newDate,
			Context: core.BumpContext{
				BumpScore:        51,
				SuggestedTime:    &tod,
				OriginalPriority: core.PriorityHigh,
				BumpCount:        1,
			},
			AISuggested: true,
		},
		{
			ID: "l2", TaskID: "t2", UserID: "u1",
			Reason:  core.BumpReasonManual,
			Context: core.BumpContext{ManualBump: true, BumpCount: 1},
		},
		{
			ID: "l3", TaskID: "t1", UserID: "u1",
			Reason:  core.BumpReasonMissedSchedule,
			Context: core.BumpContext{BumpCount: 2},
		},
	}
	for _, entry := range entries {
		require.NoError(t, s.InsertBumpLog(ctx, entry))
		// InsertBumpLog stamps created_at; keep the timestamps distinct so
		// the newest-first ordering is deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.ListBumpLogs(ctx, "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "l3", all[0].ID)
	assert.Equal(t, "l1", all[2].ID)

	limited, err := s.ListBumpLogs(ctx, "u1", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "l3", limited[0].ID)

	forTask, err := s.ListBumpLogs(ctx, "u1", "t1", 10)
	require.NoError(t, err)
	require.Len(t, forTask, 2)
	assert.Equal(t, "l3", forTask[0].ID)
	assert.Equal(t, "l1", forTask[1].ID)

	first := forTask[1]
	assert.Equal(t, core.BumpReasonOverdue, first.Reason)
	assert.True(t, first.AISuggested)
	require.NotNil(t, first.NewScheduledDate)
	assert.Equal(t, "2025-06-03", first.NewScheduledDate.Format("2006-01-02"))
	assert.Equal(t, float64(51), first.Context.BumpScore)
	require.NotNil(t, first.Context.SuggestedTime)
	assert.Equal(t, "10:00", first.Context.SuggestedTime.String())
	assert.Equal(t, core.PriorityHigh, first.Context.OriginalPriority)

	other, err := s.ListBumpLogs(ctx, "u2", "", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPreferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	prefs, err := s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, prefs, "absent preferences are nil, not an error")

	require.NoError(t, s.UpsertPreferences(ctx, &core.Preferences{UserID: "u1", EnableAutoBump: false}))
	prefs, err = s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.False(t, prefs.EnableAutoBump)
	assert.False(t, prefs.UpdatedAt.IsZero())

	require.NoError(t, s.UpsertPreferences(ctx, &core.Preferences{UserID: "u1", EnableAutoBump: true}))
	prefs, err = s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.True(t, prefs.EnableAutoBump)
}

func TestListAutoBumpUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertTask(ctx, pendingTask("t1", "no-prefs")))
	require.NoError(t, s.InsertTask(ctx, pendingTask("t2", "enabled")))
	require.NoError(t, s.InsertTask(ctx, pendingTask("t3", "disabled")))
	require.NoError(t, s.UpsertPreferences(ctx, &core.Preferences{UserID: "enabled", EnableAutoBump: true}))
	require.NoError(t, s.UpsertPreferences(ctx, &core.Preferences{UserID: "disabled", EnableAutoBump: false}))
	// Preferences without any tasks do not make a user.
	require.NoError(t, s.UpsertPreferences(ctx, &core.Preferences{UserID: "taskless", EnableAutoBump: true}))

	users, err := s.ListAutoBumpUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"enabled", "no-prefs"}, users)
}
