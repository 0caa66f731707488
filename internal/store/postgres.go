// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// Postgres stores snapshots as JSONB rows in room_snapshots.
// The table is created by database.EnsureSchema.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connected pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Load reads the snapshot for roomKey.
func (s *Postgres) Load(ctx context.Context, roomKey string) (*models.RoomSnapshot, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM room_snapshots WHERE room_key = $1`, roomKey,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select snapshot %s: %w", roomKey, err)
	}
	var snap models.RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", roomKey, err)
	}
	return &snap, true, nil
}

// Save inserts the first version of a room or updates the row whose version is
// exactly one behind snap. Zero affected rows means someone else got there first.
func (s *Postgres) Save(ctx context.Context, roomKey string, snap *models.RoomSnapshot) error {
	if snap == nil {
		return fmt.Errorf("save %s: nil snapshot", roomKey)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", roomKey, err)
	}

	var affected int64
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if expectedPrevious(snap) == 0 {
			q := `
				INSERT INTO room_snapshots (room_key, version, snapshot, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (room_key) DO NOTHING
			`
			tag, e := tx.Exec(ctx, q, roomKey, snap.Version, data, time.Now())
			affected = tag.RowsAffected()
			return e
		}
		q := `
			UPDATE room_snapshots
			SET version = $2, snapshot = $3, updated_at = $4
			WHERE room_key = $1 AND version = $5
		`
		tag, e := tx.Exec(ctx, q, roomKey, snap.Version, data, time.Now(), expectedPrevious(snap))
		affected = tag.RowsAffected()
		return e
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", roomKey, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}
