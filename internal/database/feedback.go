// internal/database/feedback.go
package database

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/partycards/internal/models"
)

// SaveFeedback inserts one feedback entry.
func (s *Store) SaveFeedback(ctx context.Context, fb *models.Feedback) error {
	q := `
		INSERT INTO feedback (id, game_id, name, message, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.Pool.Exec(ctx, q, fb.ID, fb.GameID, fb.Name, fb.Message, fb.UserAgent, fb.CreatedAt); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// RecentFeedback returns up to limit entries, newest first.
func (s *Store) RecentFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	q := `
		SELECT id, game_id, name, message, user_agent, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.GameID, &fb.Name, &fb.Message, &fb.UserAgent, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
