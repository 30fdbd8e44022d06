package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autobump/internal/core"
)

const dateLayout = "2006-01-02"

const taskColumns = `id, user_id, title, priority, status, category, estimated_minutes,
	due_date, scheduled_date, scheduled_time, bump_count, auto_bumped, auto_generated,
	last_bumped_at, original_due_date, created_at, updated_at`

func (s *Store) InsertTask(ctx context.Context, task *core.Task) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.UserID, task.Title, task.Priority, task.Status, task.Category,
		nullableInt(task.EstimatedMinutes), nullableTime(task.DueDate),
		nullableDate(task.ScheduledDate), nullableTimeOfDay(task.ScheduledTime),
		task.BumpCount, task.AutoBumped, task.AutoGenerated,
		nullableTime(task.LastBumpedAt), nullableTime(task.OriginalDueDate),
		task.CreatedAt.Format(time.RFC3339Nano), task.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) GetTaskForUser(ctx context.Context, id, userID string) (*core.Task, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?
	`, id, userID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, userID string, status *core.TaskStatus) ([]*core.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) DeleteTask(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrTaskNotFound
	}
	return nil
}

// QueryBumpCandidates returns incomplete tasks below the bump cap whose due
// date or scheduled date has passed.
func (s *Store) QueryBumpCandidates(ctx context.Context, userID string, now time.Time, maxBumps int) ([]*core.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ?
		  AND status IN (?, ?)
		  AND bump_count < ?
		  AND (
			(due_date IS NOT NULL AND due_date < ?)
			OR (scheduled_date IS NOT NULL AND scheduled_date < ?)
		  )
		ORDER BY created_at
	`, userID, core.TaskStatusPending, core.TaskStatusInProgress, maxBumps,
		now.UTC().Format(time.RFC3339Nano), now.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query bump candidates: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListScheduledTasks returns tasks with a concrete scheduled time whose
// scheduled date falls within [start, end].
func (s *Store) ListScheduledTasks(ctx context.Context, userID string, start, end time.Time) ([]*core.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ?
		  AND scheduled_time IS NOT NULL
		  AND scheduled_date >= ?
		  AND scheduled_date <= ?
		ORDER BY scheduled_date, scheduled_time
	`, userID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query scheduled tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ApplyBump writes the bump-owned fields of a task. Other task fields are
// never touched by the engine.
func (s *Store) ApplyBump(ctx context.Context, id string, update core.BumpUpdate) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE tasks
		SET scheduled_date = ?, scheduled_time = ?, auto_bumped = ?, bump_count = ?,
		    last_bumped_at = ?, original_due_date = ?, updated_at = ?
		WHERE id = ?
	`, update.ScheduledDate.Format(dateLayout), nullableTimeOfDay(update.ScheduledTime),
		update.AutoBumped, update.BumpCount,
		update.LastBumpedAt.UTC().Format(time.RFC3339Nano), nullableTime(update.OriginalDueDate),
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("apply bump: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply bump rows: %w", err)
	}
	if rows == 0 {
		return core.ErrTaskNotFound
	}
	return nil
}

func collectTasks(rows *sql.Rows) ([]*core.Task, error) {
	var tasks []*core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*core.Task, error) {
	var (
		id            string
		userID        string
		title         string
		priority      string
		status        string
		category      string
		estimated     sql.NullInt64
		dueDate       sql.NullString
		scheduledDate sql.NullString
		scheduledTime sql.NullString
		bumpCount     int
		autoBumped    bool
		autoGenerated bool
		lastBumpedAt  sql.NullString
		originalDue   sql.NullString
		createdAt     string
		updatedAt     string
	)
	if err := scanner.Scan(&id, &userID, &title, &priority, &status, &category, &estimated,
		&dueDate, &scheduledDate, &scheduledTime, &bumpCount, &autoBumped, &autoGenerated,
		&lastBumpedAt, &originalDue, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task := &core.Task{
		ID:            id,
		UserID:        userID,
		Title:         title,
		Priority:      core.Priority(priority),
		Status:        core.TaskStatus(status),
		Category:      category,
		BumpCount:     bumpCount,
		AutoBumped:    autoBumped,
		AutoGenerated: autoGenerated,
	}
	if estimated.Valid {
		val := int(estimated.Int64)
		task.EstimatedMinutes = &val
	}
	task.DueDate = parseNullableTime(dueDate)
	task.LastBumpedAt = parseNullableTime(lastBumpedAt)
	task.OriginalDueDate = parseNullableTime(originalDue)
	if scheduledDate.Valid {
		if t, err := time.Parse(dateLayout, scheduledDate.String); err == nil {
			task.ScheduledDate = &t
		}
	}
	if scheduledTime.Valid {
		if tod, err := core.ParseTimeOfDay(scheduledTime.String); err == nil {
			task.ScheduledTime = &tod
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		task.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		task.UpdatedAt = t
	}
	return task, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value.String); err == nil {
		return &t
	}
	return nil
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.Format(dateLayout)
}

func nullableTimeOfDay(value *core.TimeOfDay) any {
	if value == nil {
		return nil
	}
	return value.String()
}
