// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/cache"
	"github.com/teamboningen/yunoDaifugo/internal/database"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// Sink is where the historian persists what it pops off the queue.
type Sink interface {
	InsertRoomActions(ctx context.Context, actions []models.RoomAction) error
	MarkRoomAbandoned(ctx context.Context, roomKey string) (bool, error)
}

// PostgresSink writes to the room_actions and rooms tables.
type PostgresSink struct {
	Pool *pgxpool.Pool
}

func (s PostgresSink) InsertRoomActions(ctx context.Context, actions []models.RoomAction) error {
	return database.InsertRoomActions(ctx, s.Pool, actions)
}

func (s PostgresSink) MarkRoomAbandoned(ctx context.Context, roomKey string) (bool, error) {
	return database.MarkRoomAbandoned(ctx, s.Pool, roomKey)
}

// Options tunes a Service. Zero values fall back to the defaults below.
type Options struct {
	Queue         string
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration
	CheckInterval time.Duration
	PopTimeout    time.Duration
	Logger        *logrus.Logger
}

// Service drains the room action queue into a Sink in batches and marks
// rooms abandoned once they have been quiet for longer than Inactivity.
type Service struct {
	rdb    redis.UniversalClient
	sink   Sink
	logger *logrus.Logger

	queue         string
	batchSize     int
	flushDelay    time.Duration
	inactivity    time.Duration
	checkInterval time.Duration
	popTimeout    time.Duration

	lastActivity sync.Map // room key -> time.Time
	now          func() time.Time

	batchMu sync.Mutex
	batch   []models.RoomAction
}

// New builds a Service reading from rdb.
func New(rdb redis.UniversalClient, sink Sink, opts Options) *Service {
	s := &Service{
		rdb:           rdb,
		sink:          sink,
		logger:        opts.Logger,
		queue:         opts.Queue,
		batchSize:     opts.BatchSize,
		flushDelay:    opts.FlushDelay,
		inactivity:    opts.Inactivity,
		checkInterval: opts.CheckInterval,
		popTimeout:    opts.PopTimeout,
		now:           time.Now,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.queue == "" {
		s.queue = cache.DefaultQueueName
	}
	if s.batchSize <= 0 {
		s.batchSize = 20
	}
	if s.flushDelay <= 0 {
		s.flushDelay = 500 * time.Millisecond
	}
	if s.inactivity <= 0 {
		s.inactivity = 10 * time.Minute
	}
	if s.checkInterval <= 0 {
		s.checkInterval = time.Minute
	}
	if s.popTimeout <= 0 {
		s.popTimeout = 3 * time.Second
	}
	s.batch = make([]models.RoomAction, 0, s.batchSize)
	return s
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.WithField("queue", s.queue).Info("historian started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.readLoop(ctx)
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.logger.Info("historian stopped")
	return nil
}

func (s *Service) readLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		default:
			// bounded so ticker flushes and cancellation are noticed
			res, err := s.rdb.BLPop(ctx, s.popTimeout, s.queue).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				s.logger.WithError(err).Error("BLPOP failed")
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}
			if len(res) < 2 {
				continue
			}
			s.handle(ctx, res[1])
		}
	}
}

// handle decodes one queued payload and adds it to the batch.
func (s *Service) handle(ctx context.Context, payload string) {
	var rec models.RoomAction
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.WithError(err).Warn("invalid room action record")
		return
	}
	if rec.Room == "" {
		s.logger.Warn("room action without room key")
		return
	}
	s.lastActivity.Store(rec.Room, s.now())

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch in one transaction. A failed batch is logged and dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]models.RoomAction, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertRoomActions(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("failed to flush room actions")
		return
	}
	s.logger.WithField("count", len(pending)).Debug("flushed room actions")
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkInactivity(ctx)
		}
	}
}

// checkInactivity marks every room quiet for longer than the inactivity window as abandoned.
func (s *Service) checkInactivity(ctx context.Context) {
	now := s.now()
	s.lastActivity.Range(func(key, val interface{}) bool {
		room, ok1 := key.(string)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.inactivity {
			return true
		}
		changed, err := s.sink.MarkRoomAbandoned(ctx, room)
		if err != nil {
			s.logger.WithError(err).WithField("room", room).Error("failed to mark room abandoned")
			return true
		}
		s.lastActivity.Delete(room)
		if changed {
			s.logger.WithField("room", room).Info("marked room abandoned after inactivity")
		}
		return true
	})
}
