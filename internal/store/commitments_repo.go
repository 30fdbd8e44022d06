package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autobump/internal/core"
)

var ErrCommitmentNotFound = errors.New("commitment not found")

func (s *Store) InsertCommitment(ctx context.Context, c *core.Commitment) error {
	c.CreatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO commitments (id, user_id, title, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Title,
		c.StartTime.UTC().Format(time.RFC3339Nano), c.EndTime.UTC().Format(time.RFC3339Nano),
		c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	return nil
}

// ListCommitments returns calendar commitments starting within [start, end].
func (s *Store) ListCommitments(ctx context.Context, userID string, start, end time.Time) ([]*core.Commitment, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, title, start_time, end_time, created_at
		FROM commitments
		WHERE user_id = ? AND start_time >= ? AND start_time <= ?
		ORDER BY start_time
	`, userID, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()
	var commitments []*core.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return commitments, nil
}

func (s *Store) DeleteCommitment(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM commitments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete commitment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCommitmentNotFound
	}
	return nil
}

func scanCommitment(rows *sql.Rows) (*core.Commitment, error) {
	var (
		id        string
		userID    string
		title     string
		startTime string
		endTime   string
		createdAt string
	)
	if err := rows.Scan(&id, &userID, &title, &startTime, &endTime, &createdAt); err != nil {
		return nil, fmt.Errorf("scan commitment: %w", err)
	}
	c := &core.Commitment{
		ID:     id,
		UserID: userID,
		Title:  title,
	}
	if t, err := time.Parse(time.RFC3339Nano, startTime); err == nil {
		c.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, endTime); err == nil {
		c.EndTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		c.CreatedAt = t
	}
	return c, nil
}
