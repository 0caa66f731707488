package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// loggedActions reads back a room's actions in version order.
func loggedActions(t *testing.T, ctx context.Context, pool *pgxpool.Pool, roomKey string) []models.RoomAction {
	t.Helper()
	rows, err := pool.Query(ctx, `
		SELECT version, actor_id, action_type, action_payload
		FROM room_actions
		WHERE room_key = $1
		ORDER BY version, id
	`, roomKey)
	require.NoError(t, err)
	defer rows.Close()

	var out []models.RoomAction
	for rows.Next() {
		var (
			rec     = models.RoomAction{Room: roomKey}
			actor   *uuid.UUID
			payload []byte
		)
		require.NoError(t, rows.Scan(&rec.Version, &actor, &rec.ActionType, &payload))
		if actor != nil {
			rec.ActorID = *actor
		}
		if len(payload) > 0 {
			require.NoError(t, json.Unmarshal(payload, &rec.Payload))
		}
		out = append(out, rec)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestRoomActionsRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, EnsureSchema(ctx, pool))

	room := "test-" + uuid.NewString()
	actor := uuid.New()
	now := time.Now().UnixMilli()
	actions := []models.RoomAction{
		{Room: room, Version: 1, ActorID: actor, ActionType: models.ActionJoin, Payload: map[string]interface{}{"seat": float64(0)}, Timestamp: now},
		{Room: room, Version: 2, ActorID: actor, ActionType: models.ActionDraw, Timestamp: now + 1},
	}
	require.NoError(t, InsertRoomActions(ctx, pool, actions))

	got := loggedActions(t, ctx, pool, room)
	require.Len(t, got, 2)
	assert.Equal(t, models.ActionJoin, got[0].ActionType)
	assert.Equal(t, actor, got[0].ActorID)
	assert.Equal(t, float64(0), got[0].Payload["seat"])
	assert.Equal(t, int64(2), got[1].Version)

	changed, err := MarkRoomAbandoned(ctx, pool, room)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = MarkRoomAbandoned(ctx, pool, room)
	require.NoError(t, err)
	assert.False(t, changed, "only in-progress rooms are abandoned")

	// a finished game is not abandoned later
	finished := "test-" + uuid.NewString()
	require.NoError(t, InsertRoomActions(ctx, pool, []models.RoomAction{
		{Room: finished, Version: 1, ActionType: models.ActionGameOver, Timestamp: now},
	}))
	changed, err = MarkRoomAbandoned(ctx, pool, finished)
	require.NoError(t, err)
	assert.False(t, changed)
}
