package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autobump/internal/core"
)

// GetPreferences returns the user's scheduling preferences, or nil when the
// user has never saved any.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*core.Preferences, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT user_id, enable_auto_bump, updated_at FROM preferences WHERE user_id = ?
	`, userID)
	var (
		id        string
		enabled   bool
		updatedAt string
	)
	if err := row.Scan(&id, &enabled, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan preferences: %w", err)
	}
	prefs := &core.Preferences{
		UserID:         id,
		EnableAutoBump: enabled,
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		prefs.UpdatedAt = t
	}
	return prefs, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, prefs *core.Preferences) error {
	prefs.UpdatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO preferences (user_id, enable_auto_bump, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET enable_auto_bump = excluded.enable_auto_bump,
			updated_at = excluded.updated_at
	`, prefs.UserID, prefs.EnableAutoBump, prefs.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// ListAutoBumpUsers returns the distinct owners of tasks who have not
// disabled auto-bump. Users without saved preferences are included; the
// feature defaults to on.
func (s *Store) ListAutoBumpUsers(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT t.user_id
		FROM tasks t
		LEFT JOIN preferences p ON p.user_id = t.user_id
		WHERE p.user_id IS NULL OR p.enable_auto_bump = 1
		ORDER BY t.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query auto-bump users: %w", err)
	}
	defer rows.Close()
	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
}
