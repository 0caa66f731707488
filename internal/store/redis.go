// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// DefaultKeyPrefix namespaces room snapshots inside Redis.
const DefaultKeyPrefix = "room:"

// Redis stores each snapshot as a JSON string under prefix+roomKey.
// Every save refreshes the key's TTL so abandoned rooms expire on their own.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis wraps a connected client. A zero ttl keeps snapshots forever.
func NewRedis(rdb redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (s *Redis) key(roomKey string) string {
	return s.prefix + roomKey
}

// Load fetches and decodes the snapshot.
func (s *Redis) Load(ctx context.Context, roomKey string) (*models.RoomSnapshot, bool, error) {
	return loadRedis(ctx, s.rdb, s.key(roomKey))
}

// getter is the slice of redis.Cmdable shared by clients and WATCH transactions.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadRedis(ctx context.Context, c getter, key string) (*models.RoomSnapshot, bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var snap models.RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, true, nil
}

// Save writes the snapshot inside a WATCH/MULTI transaction so a concurrent
// writer on another instance turns into ErrVersionConflict instead of a lost update.
func (s *Redis) Save(ctx context.Context, roomKey string, snap *models.RoomSnapshot) error {
	if snap == nil {
		return fmt.Errorf("save %s: nil snapshot", roomKey)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", roomKey, err)
	}
	key := s.key(roomKey)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		prev, ok, err := loadRedis(ctx, tx, key)
		if err != nil {
			return err
		}
		var current int64
		if ok {
			current = prev.Version
		}
		if current != expectedPrevious(snap) {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}
