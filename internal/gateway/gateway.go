// internal/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/game"
	"github.com/teamboningen/yunoDaifugo/internal/models"
	"github.com/teamboningen/yunoDaifugo/internal/store"
)

const (
	// maxSaveAttempts bounds reload-and-retry after a version conflict.
	maxSaveAttempts = 3
	// backgroundOpTimeout bounds operations not tied to a live request, like grace expiry.
	backgroundOpTimeout = 5 * time.Second

	maxRoomNameLen   = 64
	maxPlayerNameLen = 32
)

// ActionLog receives every successful room mutation. cache.ActionQueue implements it.
type ActionLog interface {
	PublishRoomAction(ctx context.Context, rec models.RoomAction) error
}

// Presence reports whether an occupant has a live connection right now.
// handlers.Hub implements it.
type Presence interface {
	Connected(occupantID uuid.UUID) bool
}

// Options tunes a Gateway. Zero values fall back to defaults.
type Options struct {
	// DefaultRoom is the room used by joinGame. Defaults to "currentGame".
	DefaultRoom string
	// DisconnectGrace is how long a dropped occupant keeps its seat. 0 releases at once.
	DisconnectGrace time.Duration
	// Actions, when set, is fed a RoomAction for every saved mutation.
	Actions ActionLog
	// Presence, when set, keeps a late disconnect from flagging an occupant
	// whose new connection is already attached.
	Presence Presence
	Logger   *logrus.Logger
}

// Gateway turns client events into room operations. Each operation loads the
// room snapshot, applies one change, saves it and then fans filtered views out
// to the seated occupants. Mutations of a room are serialised in process and
// guarded by the store's version check across processes.
type Gateway struct {
	store    store.Store
	emitter  Emitter
	actions  ActionLog
	presence Presence
	logger   *logrus.Logger

	defaultRoom string
	grace       time.Duration
	locks       *roomLocks
	now         func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]string // occupant -> room name
	timers   map[uuid.UUID]graceTimer
	timerGen uint64

	pending sync.WaitGroup // in-flight action log publishes
}

type graceTimer struct {
	timer *time.Timer
	gen   uint64
}

// New builds a gateway over s that delivers events through emitter.
func New(s store.Store, emitter Emitter, opts Options) *Gateway {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "currentGame"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Gateway{
		store:       s,
		emitter:     emitter,
		actions:     opts.Actions,
		presence:    opts.Presence,
		logger:      opts.Logger,
		defaultRoom: opts.DefaultRoom,
		grace:       opts.DisconnectGrace,
		locks:       newRoomLocks(),
		now:         time.Now,
		sessions:    make(map[uuid.UUID]string),
		timers:      make(map[uuid.UUID]graceTimer),
	}
}

// Dispatch routes one inbound event. Failures are reported to the requester as
// an error event, except a full room which is answered with gameFull.
func (g *Gateway) Dispatch(ctx context.Context, occupantID uuid.UUID, in Inbound) error {
	room, player := in.names()

	var err error
	switch in.Type {
	case EventJoinGame:
		err = g.JoinGame(ctx, occupantID, player)
	case EventCreateRoom:
		err = g.CreateRoom(ctx, occupantID, room, player)
	case EventJoinRoom:
		err = g.JoinRoom(ctx, occupantID, room, player)
	case EventDrawCard:
		err = g.Draw(ctx, occupantID)
	case EventResetGame:
		err = g.Reset(ctx, occupantID)
	case EventLeaveRoom:
		err = g.Leave(ctx, occupantID)
	case EventPing:
		g.emitter.Emit(occupantID, Event{Type: EventPong})
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, in.Type)
	}

	if err != nil && !errors.Is(err, game.ErrRoomFull) {
		g.emitError(occupantID, err)
	}
	return err
}

// RoomOf reports the room an occupant last joined on this instance.
func (g *Gateway) RoomOf(occupantID uuid.UUID) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.sessions[occupantID]
	return room, ok
}

// Close stops pending grace timers and waits for queued action log writes.
func (g *Gateway) Close() {
	g.mu.Lock()
	for occ, t := range g.timers {
		t.timer.Stop()
		delete(g.timers, occ)
	}
	g.mu.Unlock()
	g.pending.Wait()
}

type loadMode int

const (
	loadOrCreate loadMode = iota
	mustCreate
	mustExist
)

// commit loads roomKey, applies fn and saves the result with the next version.
// fn may run more than once when another writer wins the save race, so it must
// only touch the room it is given. Nothing is saved when fn fails.
func (g *Gateway) commit(ctx context.Context, roomKey string, mode loadMode, fn func(r *game.Room) error) (*models.RoomSnapshot, error) {
	for attempt := 1; ; attempt++ {
		r, err := g.load(ctx, roomKey, mode)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			return nil, err
		}

		snap := r.Snapshot()
		snap.Version = r.Version() + 1
		snap.UpdatedAt = g.now().UnixMilli()

		err = g.store.Save(ctx, roomKey, snap)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt < maxSaveAttempts {
			g.logger.WithFields(logrus.Fields{"room": roomKey, "attempt": attempt}).Debug("snapshot version conflict, retrying")
			continue
		}
		return nil, fmt.Errorf("%w: save %s: %w", ErrStoreUnavailable, roomKey, err)
	}
}

func (g *Gateway) load(ctx context.Context, roomKey string, mode loadMode) (*game.Room, error) {
	snap, ok, err := g.store.Load(ctx, roomKey)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrStoreUnavailable, roomKey, err)
	}
	if !ok {
		if mode == mustExist {
			return nil, ErrRoomNotFound
		}
		return game.NewRoom(), nil
	}
	if mode == mustCreate {
		return nil, ErrRoomExists
	}
	r, err := game.FromSnapshot(snap)
	if err != nil {
		g.logger.WithError(err).WithField("room", roomKey).Error("stored snapshot is unusable")
		return nil, err
	}
	return r, nil
}

// broadcast sends gameUpdated to every seated, connected occupant except skip.
func (g *Gateway) broadcast(snap *models.RoomSnapshot, skip uuid.UUID, announcements ...string) {
	anns := g.announce(announcements...)
	for _, p := range snap.Players {
		if !p.Occupied() || !p.Connected || p.OccupantID == skip {
			continue
		}
		view := game.FormatForOccupant(snap, p.OccupantID)
		view.Announcements = anns
		g.emitter.Emit(p.OccupantID, Event{Type: EventGameUpdated, Payload: view})
	}
}

func (g *Gateway) announce(messages ...string) []game.Announcement {
	if len(messages) == 0 {
		return nil
	}
	at := g.now().UnixMilli()
	out := make([]game.Announcement, 0, len(messages))
	for _, m := range messages {
		out = append(out, game.Announcement{Message: m, Time: at})
	}
	return out
}

func (g *Gateway) emitError(occupantID uuid.UUID, err error) {
	entry := g.logger.WithError(err).WithField("occupant", occupantID)
	if errors.Is(err, ErrStoreUnavailable) {
		entry.Error("room operation failed")
	} else {
		entry.Debug("room operation rejected")
	}
	g.emitter.Emit(occupantID, Event{Type: EventError, Payload: ErrorPayload{Message: userMessage(err)}})
}

// record hands the action to the action log without holding up the caller.
func (g *Gateway) record(room string, snap *models.RoomSnapshot, actor uuid.UUID, action string, payload map[string]interface{}) {
	if g.actions == nil {
		return
	}
	rec := models.RoomAction{
		Room:       room,
		Version:    snap.Version,
		ActorID:    actor,
		ActionType: action,
		Payload:    payload,
		Timestamp:  snap.UpdatedAt,
	}
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
		defer cancel()
		if err := g.actions.PublishRoomAction(ctx, rec); err != nil {
			g.logger.WithError(err).WithFields(logrus.Fields{
				"room":   room,
				"action": action,
			}).Warn("failed to publish room action")
		}
	}()
}

func (g *Gateway) online(occupantID uuid.UUID) bool {
	return g.presence != nil && g.presence.Connected(occupantID)
}

func (g *Gateway) setSession(occupantID uuid.UUID, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[occupantID] = room
}

// clearSession forgets the occupant's room only if it still points at room.
func (g *Gateway) clearSession(occupantID uuid.UUID, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions[occupantID] == room {
		delete(g.sessions, occupantID)
	}
}

func validRoomName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n > 0 && n <= maxRoomNameLen && !strings.ContainsFunc(name, unicode.IsControl)
}

// validPlayerName also refuses the draw marker so a winner's name is never mistaken for a tie.
func validPlayerName(name string) bool {
	return utf8.RuneCountInString(name) <= maxPlayerNameLen &&
		!strings.ContainsFunc(name, unicode.IsControl) &&
		!strings.EqualFold(name, game.DrawMarker)
}
