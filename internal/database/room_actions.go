// internal/database/room_actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// InsertRoomActions writes a batch of actions in one transaction. Each action also
// bumps the room's activity row, and a finished game marks the room completed.
func InsertRoomActions(ctx context.Context, pool *pgxpool.Pool, actions []models.RoomAction) error {
	if len(actions) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range actions {
			if err := insertRoomActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %s/%d: %w", rec.Room, rec.Version, err)
			}
		}
		return nil
	})
}

func insertRoomActionTx(ctx context.Context, tx pgx.Tx, rec models.RoomAction) error {
	at := time.UnixMilli(rec.Timestamp)

	upsertRoomQ := `
		INSERT INTO rooms (room_key, status, first_action_at, last_action_at)
		VALUES ($1, 'in_progress', $2, $2)
		ON CONFLICT (room_key)
		DO UPDATE SET last_action_at = GREATEST(rooms.last_action_at, EXCLUDED.last_action_at),
		              status = CASE WHEN rooms.status = 'abandoned' THEN 'in_progress' ELSE rooms.status END
	`
	if _, err := tx.Exec(ctx, upsertRoomQ, rec.Room, at); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	var actor *uuid.UUID
	if rec.ActorID != uuid.Nil {
		actor = &rec.ActorID
	}
	insertQ := `
		INSERT INTO room_actions (room_key, version, actor_id, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insertQ, rec.Room, rec.Version, actor, rec.ActionType, payload, at); err != nil {
		return err
	}

	switch rec.ActionType {
	case models.ActionGameOver:
		_, err = tx.Exec(ctx, `UPDATE rooms SET status = 'completed' WHERE room_key = $1`, rec.Room)
	case models.ActionReset:
		_, err = tx.Exec(ctx, `UPDATE rooms SET status = 'in_progress' WHERE room_key = $1`, rec.Room)
	}
	return err
}

// MarkRoomAbandoned flags a room that is still in progress as abandoned.
// Reports whether a row changed.
func MarkRoomAbandoned(ctx context.Context, pool *pgxpool.Pool, roomKey string) (bool, error) {
	tag, err := pool.Exec(ctx,
		`UPDATE rooms SET status = 'abandoned' WHERE room_key = $1 AND status = 'in_progress'`,
		roomKey,
	)
	if err != nil {
		return false, fmt.Errorf("mark room %s abandoned: %w", roomKey, err)
	}
	return tag.RowsAffected() > 0, nil
}
