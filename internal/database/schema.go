// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup by both binaries.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS room_snapshots (
		room_key   TEXT PRIMARY KEY,
		version    BIGINT NOT NULL,
		snapshot   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		room_key       TEXT PRIMARY KEY,
		status         TEXT NOT NULL DEFAULT 'in_progress',
		first_action_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_action_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS room_actions (
		id             BIGSERIAL PRIMARY KEY,
		room_key       TEXT NOT NULL,
		version        BIGINT NOT NULL,
		actor_id       UUID,
		action_type    TEXT NOT NULL,
		action_payload JSONB,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS room_actions_room_key_idx ON room_actions (room_key, version)`,
}

// EnsureSchema creates the tables used by the snapshot store and the historian.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
