// internal/database/room_events.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partycards/internal/models"
)

// InsertRoomEvents persists a batch of room events in a single transaction
// and keeps the rooms table in step with the lifecycle events it contains.
// Events already stored are skipped, so a retried batch is harmless.
func (s *Store) InsertRoomEvents(ctx context.Context, events []models.RoomEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			if err := insertRoomEventTx(ctx, tx, ev); err != nil {
				return fmt.Errorf("insert room event %s: %w", ev.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert room events: %w", err)
	}
	return nil
}

func insertRoomEventTx(ctx context.Context, tx pgx.Tx, ev models.RoomEvent) error {
	at := time.UnixMilli(ev.Timestamp).UTC()

	switch ev.ActionType {
	case models.ActionRoomCreated:
		// Room ids are reused once a room is destroyed, so a create reopens the row.
		q := `
			INSERT INTO rooms (id, status, created_at, last_activity)
			VALUES ($1, 'active', $2, $2)
			ON CONFLICT (id)
			DO UPDATE SET status = 'active', created_at = $2, last_activity = $2, closed_at = NULL
		`
		if _, err := tx.Exec(ctx, q, ev.GameID, at); err != nil {
			return err
		}
	case models.ActionRoomDestroyed:
		q := `
			UPDATE rooms
			SET status = 'closed', closed_at = $2, last_activity = $2
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, q, ev.GameID, at); err != nil {
			return err
		}
	default:
		q := `
			INSERT INTO rooms (id, status, created_at, last_activity)
			VALUES ($1, 'active', $2, $2)
			ON CONFLICT (id)
			DO UPDATE SET last_activity = GREATEST(rooms.last_activity, $2)
		`
		if _, err := tx.Exec(ctx, q, ev.GameID, at); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO room_events (id, room_id, action_index, actor_id, action_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, q, ev.ID, ev.GameID, ev.ActionIndex, ev.ActorID, ev.ActionType, payload, at)
	return err
}

// MarkIdleRoomsAbandoned closes rooms still marked active whose last event
// is older than idle. It returns how many rooms were marked.
func (s *Store) MarkIdleRoomsAbandoned(ctx context.Context, idle time.Duration) (int64, error) {
	q := `
		UPDATE rooms
		SET status = 'abandoned', closed_at = NOW()
		WHERE status = 'active' AND last_activity < $1
	`
	tag, err := s.Pool.Exec(ctx, q, time.Now().Add(-idle).UTC())
	if err != nil {
		return 0, fmt.Errorf("mark idle rooms abandoned: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RoomStatus returns the stored status of a room.
func (s *Store) RoomStatus(ctx context.Context, gameID string) (string, error) {
	var status string
	err := s.Pool.QueryRow(ctx, `SELECT status FROM rooms WHERE id = $1`, gameID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("room status %s: %w", gameID, err)
	}
	return status, nil
}

// CountRoomEvents returns how many events are stored for a room.
func (s *Store) CountRoomEvents(ctx context.Context, gameID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM room_events WHERE room_id = $1`, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count room events %s: %w", gameID, err)
	}
	return n, nil
}
