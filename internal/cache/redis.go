// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// DefaultQueueName is the Redis list (queue) name for room action logs.
const DefaultQueueName = "room_actions"

// ConnectRedis creates a client for addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionQueue pushes room actions onto a Redis list for the historian.
type ActionQueue struct {
	rdb   redis.UniversalClient
	queue string
}

// NewActionQueue returns a publisher for the named list. An empty name uses DefaultQueueName.
func NewActionQueue(rdb redis.UniversalClient, queue string) *ActionQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionQueue{rdb: rdb, queue: queue}
}

// Name is the Redis key of the queue.
func (q *ActionQueue) Name() string {
	return q.queue
}

// PublishRoomAction serializes the record to JSON and RPUSHes it onto the queue.
func (q *ActionQueue) PublishRoomAction(ctx context.Context, record models.RoomAction) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomAction: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}
