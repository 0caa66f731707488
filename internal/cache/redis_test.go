package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	mr.Close()
	_, err = ConnectRedis(context.Background(), mr.Addr(), 0)
	assert.Error(t, err)
}

func TestPublishRoomAction(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()

	q := NewActionQueue(rdb, "")
	assert.Equal(t, DefaultQueueName, q.Name())

	rec := models.RoomAction{
		Room:       "currentGame",
		Version:    4,
		ActorID:    uuid.New(),
		ActionType: models.ActionDraw,
		Payload:    map[string]interface{}{"seat": float64(1)},
		Timestamp:  1_700_000_000_000,
	}
	require.NoError(t, q.PublishRoomAction(context.Background(), rec))
	require.NoError(t, q.PublishRoomAction(context.Background(), rec))

	items, err := mr.List(DefaultQueueName)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var got models.RoomAction
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, rec, got)
}
