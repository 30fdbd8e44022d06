package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"autobump/internal/core"
)

func (s *Store) InsertBumpLog(ctx context.Context, entry *core.BumpLog) error {
	entry.CreatedAt = time.Now().UTC()
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("encode bump context: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO bump_logs (id, task_id, user_id, bump_reason,
			old_scheduled_date, new_scheduled_date, old_due_date, new_due_date,
			bump_context, ai_suggested, user_confirmed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TaskID, entry.UserID, entry.Reason,
		nullableDate(entry.OldScheduledDate), nullableDate(entry.NewScheduledDate),
		nullableTime(entry.OldDueDate), nullableTime(entry.NewDueDate),
		string(contextJSON), entry.AISuggested, entry.UserConfirmed,
		entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert bump log: %w", err)
	}
	return nil
}

// ListBumpLogs returns audit entries for a user, newest first. A non-empty
// taskID narrows the result to one task.
func (s *Store) ListBumpLogs(ctx context.Context, userID, taskID string, limit int) ([]*core.BumpLog, error) {
	query := `
		SELECT id, task_id, user_id, bump_reason,
			old_scheduled_date, new_scheduled_date, old_due_date, new_due_date,
			bump_context, ai_suggested, user_confirmed, created_at
		FROM bump_logs
		WHERE user_id = ?`
	args := []any{userID}
	if taskID != "" {
		query += ` AND task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bump logs: %w", err)
	}
	defer rows.Close()
	var entries []*core.BumpLog
	for rows.Next() {
		entry, err := scanBumpLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanBumpLog(rows *sql.Rows) (*core.BumpLog, error) {
	var (
		id            string
		taskID        string
		userID        string
		reason        string
		oldScheduled  sql.NullString
		newScheduled  sql.NullString
		oldDue        sql.NullString
		newDue        sql.NullString
		contextJSON   string
		aiSuggested   bool
		userConfirmed bool
		createdAt     string
	)
	if err := rows.Scan(&id, &taskID, &userID, &reason, &oldScheduled, &newScheduled,
		&oldDue, &newDue, &contextJSON, &aiSuggested, &userConfirmed, &createdAt); err != nil {
		return nil, fmt.Errorf("scan bump log: %w", err)
	}
	entry := &core.BumpLog{
		ID:            id,
		TaskID:        taskID,
		UserID:        userID,
		Reason:        core.BumpReason(reason),
		AISuggested:   aiSuggested,
		UserConfirmed: userConfirmed,
	}
	entry.OldScheduledDate = parseNullableDate(oldScheduled)
	entry.NewScheduledDate = parseNullableDate(newScheduled)
	entry.OldDueDate = parseNullableTime(oldDue)
	entry.NewDueDate = parseNullableTime(newDue)
	if err := json.Unmarshal([]byte(contextJSON), &entry.Context); err != nil {
		return nil, fmt.Errorf("decode bump context: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = t
	}
	return entry, nil
}

func parseNullableDate(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	if t, err := time.Parse(dateLayout, value.String); err == nil {
		return &t
	}
	return nil
}
