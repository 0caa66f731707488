// internal/gateway/operations.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/game"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// JoinGame seats the occupant in the default room, creating it on first use.
func (g *Gateway) JoinGame(ctx context.Context, occupantID uuid.UUID, playerName string) error {
	return g.join(ctx, occupantID, g.defaultRoom, playerName, loadOrCreate, false)
}

// CreateRoom creates roomName and seats the occupant in it.
func (g *Gateway) CreateRoom(ctx context.Context, occupantID uuid.UUID, roomName, playerName string) error {
	return g.join(ctx, occupantID, roomName, playerName, mustCreate, false)
}

// JoinRoom seats the occupant in an existing room.
func (g *Gateway) JoinRoom(ctx context.Context, occupantID uuid.UUID, roomName, playerName string) error {
	return g.join(ctx, occupantID, roomName, playerName, mustExist, false)
}

// Resume reattaches a reconnecting occupant to the room it was in, if any.
// The seat, hand and score are kept as long as the grace period has not run out.
func (g *Gateway) Resume(ctx context.Context, occupantID uuid.UUID) error {
	room, ok := g.RoomOf(occupantID)
	if !ok {
		return nil
	}
	err := g.join(ctx, occupantID, room, "", mustExist, true)
	if errors.Is(err, game.ErrPlayerNotFound) || errors.Is(err, ErrRoomNotFound) {
		// the seat was already given away; the client has to join again
		g.clearSession(occupantID, room)
	}
	return err
}

// join seats the occupant in room. With resumeOnly it only reattaches an
// occupant that still holds a seat there. A seat held in another room is
// given up only once the new seat is saved.
func (g *Gateway) join(ctx context.Context, occupantID uuid.UUID, room, playerName string, mode loadMode, resumeOnly bool) error {
	if !validRoomName(room) || !validPlayerName(playerName) {
		return ErrInvalidName
	}
	log := g.logger.WithFields(logrus.Fields{"room": room, "occupant": occupantID, "event": "join"})
	prev, hadPrev := g.RoomOf(occupantID)

	snap, seat, returning, err := g.seat(ctx, occupantID, room, playerName, mode, resumeOnly)
	if errors.Is(err, game.ErrRoomFull) {
		log.Info("room full")
		g.emitter.Emit(occupantID, Event{Type: EventGameFull})
		return err
	}
	if err != nil {
		return err
	}

	g.cancelGrace(occupantID)
	g.setSession(occupantID, room)

	name := snap.Players[seat].DisplayName
	g.emitter.Emit(occupantID, Event{Type: EventRoomJoined, Payload: RoomJoinedPayload{RoomName: room, SeatIndex: seat}})
	g.emitter.Emit(occupantID, Event{Type: EventGameLoaded, Payload: game.FormatForOccupant(snap, occupantID)})

	msg := fmt.Sprintf("%s joined the room", name)
	if returning {
		msg = fmt.Sprintf("%s reconnected", name)
	}
	g.broadcast(snap, occupantID, msg)

	log.WithField("seat", seat).Info("occupant seated")
	g.record(room, snap, occupantID, models.ActionJoin, map[string]interface{}{
		"seat":      seat,
		"name":      name,
		"returning": returning,
	})

	if hadPrev && prev != room {
		if err := g.release(ctx, occupantID, prev, releaseSwitch); err != nil && !errors.Is(err, game.ErrPlayerNotFound) {
			log.WithError(err).WithField("previous", prev).Warn("could not release previous seat")
		}
	}
	return nil
}

// seat commits the occupant's seat in room under the room lock.
func (g *Gateway) seat(ctx context.Context, occupantID uuid.UUID, room, playerName string, mode loadMode, resumeOnly bool) (*models.RoomSnapshot, int, bool, error) {
	unlock := g.locks.lock(room)
	defer unlock()

	var (
		seat      int
		returning bool
	)
	snap, err := g.commit(ctx, room, mode, func(r *game.Room) error {
		_, returning = r.SeatOf(occupantID)
		if resumeOnly && !returning {
			return game.ErrPlayerNotFound
		}
		var err error
		seat, err = r.AssignSeat(occupantID, playerName)
		return err
	})
	return snap, seat, returning, err
}

// Draw draws a card for the occupant's seat and pushes the new state to both seats.
func (g *Gateway) Draw(ctx context.Context, occupantID uuid.UUID) error {
	room, ok := g.RoomOf(occupantID)
	if !ok {
		return ErrNotInRoom
	}
	unlock := g.locks.lock(room)
	defer unlock()

	var res game.DrawResult
	snap, err := g.commit(ctx, room, mustExist, func(r *game.Room) error {
		seat, ok := r.SeatOf(occupantID)
		if !ok {
			return game.ErrPlayerNotFound
		}
		var err error
		res, err = r.DrawCard(seat)
		return err
	})
	if err != nil {
		return err
	}

	drawer := snap.Players[res.SeatIndex].DisplayName
	messages := []string{fmt.Sprintf("%s drew a card", drawer)}
	switch {
	case res.IsGameOver && res.IsDraw:
		messages = append(messages, "The game ended in a draw")
	case res.IsGameOver:
		messages = append(messages, fmt.Sprintf("%s wins!", res.Winner))
	default:
		messages = append(messages, fmt.Sprintf("Next turn: %s", snap.Players[res.NextTurn].DisplayName))
	}
	g.broadcast(snap, uuid.Nil, messages...)

	g.logger.WithFields(logrus.Fields{
		"room":     room,
		"occupant": occupantID,
		"event":    "draw",
		"deck":     res.DeckSize,
	}).Debug("card drawn")

	g.record(room, snap, occupantID, models.ActionDraw, map[string]interface{}{
		"seat":     res.SeatIndex,
		"card":     res.Card,
		"deckSize": res.DeckSize,
	})
	if res.IsGameOver {
		scores := make([]int, len(snap.Players))
		for i, p := range snap.Players {
			scores[i] = p.Score
		}
		g.record(room, snap, uuid.Nil, models.ActionGameOver, map[string]interface{}{
			"winner": res.Winner,
			"isDraw": res.IsDraw,
			"scores": scores,
		})
	}
	return nil
}

// Reset starts a new game in the occupant's room, or in the default room for
// a caller that has not joined one. Occupants keep their seats.
func (g *Gateway) Reset(ctx context.Context, occupantID uuid.UUID) error {
	room, ok := g.RoomOf(occupantID)
	if !ok {
		room = g.defaultRoom
	}
	unlock := g.locks.lock(room)
	defer unlock()

	name := "A player"
	snap, err := g.commit(ctx, room, loadOrCreate, func(r *game.Room) error {
		if seat, ok := r.SeatOf(occupantID); ok {
			name = r.Seats[seat].DisplayName
		}
		r.Reset()
		return nil
	})
	if err != nil {
		return err
	}

	g.broadcast(snap, uuid.Nil, fmt.Sprintf("%s started a new game", name))
	g.logger.WithFields(logrus.Fields{"room": room, "occupant": occupantID, "event": "reset"}).Info("game reset")
	g.record(room, snap, occupantID, models.ActionReset, nil)
	return nil
}

// Leave frees the occupant's seat right away.
func (g *Gateway) Leave(ctx context.Context, occupantID uuid.UUID) error {
	room, ok := g.RoomOf(occupantID)
	if !ok {
		return ErrNotInRoom
	}
	g.cancelGrace(occupantID)
	return g.release(ctx, occupantID, room, releaseLeave)
}

// Disconnect handles a dropped transport. The seat is flagged disconnected and
// released once the grace period passes without a rejoin.
func (g *Gateway) Disconnect(occupantID uuid.UUID) {
	room, ok := g.RoomOf(occupantID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()
	log := g.logger.WithFields(logrus.Fields{"room": room, "occupant": occupantID, "event": "disconnect"})

	if g.grace <= 0 {
		if err := g.release(ctx, occupantID, room, releaseDropped); err != nil {
			log.WithError(err).Warn("release on disconnect failed")
		}
		return
	}

	unlock := g.locks.lock(room)
	defer unlock()

	var name string
	snap, err := g.commit(ctx, room, mustExist, func(r *game.Room) error {
		seat, ok := r.SeatOf(occupantID)
		if !ok {
			return game.ErrPlayerNotFound
		}
		if g.online(occupantID) {
			return errStillConnected
		}
		name = r.Seats[seat].DisplayName
		return r.SetConnected(occupantID, false)
	})
	if errors.Is(err, errStillConnected) {
		log.Debug("occupant already reconnected")
		return
	}
	if err != nil {
		if errors.Is(err, game.ErrPlayerNotFound) || errors.Is(err, ErrRoomNotFound) {
			g.clearSession(occupantID, room)
		}
		log.WithError(err).Warn("could not flag occupant disconnected")
		return
	}

	g.broadcast(snap, occupantID, fmt.Sprintf("%s disconnected", name))
	g.record(room, snap, occupantID, models.ActionDisconnect, nil)
	g.startGrace(occupantID, room)
	log.WithField("grace", g.grace).Info("occupant disconnected, seat held")
}

type releaseReason int

const (
	// releaseLeave is an explicit leaveRoom; the leaver gets roomLeft.
	releaseLeave releaseReason = iota
	// releaseSwitch gives up the old seat after joining another room.
	releaseSwitch
	// releaseDropped is a transport loss without a grace period.
	releaseDropped
	// releaseExpired is the end of a grace period.
	releaseExpired
)

// release frees the occupant's seat in room. Dropped and expired releases
// leave the seat alone when the occupant is connected again.
func (g *Gateway) release(ctx context.Context, occupantID uuid.UUID, room string, reason releaseReason) error {
	unlock := g.locks.lock(room)
	defer unlock()

	var (
		name string
		seat int
	)
	snap, err := g.commit(ctx, room, mustExist, func(r *game.Room) error {
		idx, ok := r.SeatOf(occupantID)
		if !ok {
			return game.ErrPlayerNotFound
		}
		switch reason {
		case releaseDropped:
			if g.online(occupantID) {
				return errStillConnected
			}
		case releaseExpired:
			if r.Seats[idx].Connected || g.online(occupantID) {
				return errStillConnected
			}
		}
		seat, name = idx, r.Seats[idx].DisplayName
		r.ReleaseSeat(occupantID)
		return nil
	})
	if errors.Is(err, errStillConnected) {
		return nil
	}
	if err == nil || errors.Is(err, game.ErrPlayerNotFound) || errors.Is(err, ErrRoomNotFound) {
		g.clearSession(occupantID, room)
	}
	if err != nil {
		return err
	}

	if reason == releaseLeave {
		g.emitter.Emit(occupantID, Event{Type: EventRoomLeft, Payload: RoomLeftPayload{RoomName: room}})
	}
	left := Event{Type: EventPlayerLeft, Payload: PlayerLeftPayload{PlayerID: occupantID, SeatIndex: seat, Name: name}}
	for _, p := range snap.Players {
		if p.Occupied() && p.Connected {
			g.emitter.Emit(p.OccupantID, left)
		}
	}
	g.broadcast(snap, occupantID, fmt.Sprintf("%s left the room", name))

	g.logger.WithFields(logrus.Fields{"room": room, "occupant": occupantID, "event": "leave", "seat": seat}).Info("seat released")
	g.record(room, snap, occupantID, models.ActionLeave, map[string]interface{}{"seat": seat})
	return nil
}

func (g *Gateway) startGrace(occupantID uuid.UUID, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.timers[occupantID]; ok {
		prev.timer.Stop()
	}
	g.timerGen++
	gen := g.timerGen
	g.timers[occupantID] = graceTimer{
		gen:   gen,
		timer: time.AfterFunc(g.grace, func() { g.expireGrace(occupantID, room, gen) }),
	}
}

func (g *Gateway) cancelGrace(occupantID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.timers[occupantID]; ok {
		t.timer.Stop()
		delete(g.timers, occupantID)
	}
}

func (g *Gateway) expireGrace(occupantID uuid.UUID, room string, gen uint64) {
	g.mu.Lock()
	t, ok := g.timers[occupantID]
	if !ok || t.gen != gen {
		g.mu.Unlock()
		return
	}
	delete(g.timers, occupantID)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()
	if err := g.release(ctx, occupantID, room, releaseExpired); err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{"room": room, "occupant": occupantID}).Warn("grace expiry release failed")
	}
}

// RoomSummary is the public, hand-free description of a room.
type RoomSummary struct {
	Name        string        `json:"name"`
	Phase       game.Phase    `json:"phase"`
	Seats       []SeatSummary `json:"seats"`
	Occupied    int           `json:"occupied"`
	DeckSize    int           `json:"deckSize"`
	CurrentTurn int           `json:"currentTurn"`
	IsGameOver  bool          `json:"isGameOver"`
	Winner      string        `json:"winner"`
	IsDraw      bool          `json:"isDraw"`
	Version     int64         `json:"version"`
}

// SeatSummary describes one seat without its cards.
type SeatSummary struct {
	Name      string `json:"name"`
	Occupied  bool   `json:"occupied"`
	Connected bool   `json:"connected"`
	HandSize  int    `json:"handSize"`
}

// Summary describes a room for lobby screens.
func (g *Gateway) Summary(ctx context.Context, room string) (RoomSummary, error) {
	if !validRoomName(room) {
		return RoomSummary{}, ErrInvalidName
	}
	r, err := g.load(ctx, room, mustExist)
	if err != nil {
		return RoomSummary{}, err
	}
	sum := RoomSummary{
		Name:        room,
		Phase:       r.Phase(),
		DeckSize:    r.Deck.Size(),
		CurrentTurn: r.CurrentTurn,
		IsGameOver:  r.IsGameOver,
		Winner:      r.Winner,
		IsDraw:      r.IsDraw,
		Version:     r.Version(),
		Occupied:    len(r.Occupants()),
	}
	for _, s := range r.Seats {
		sum.Seats = append(sum.Seats, SeatSummary{
			Name:      s.DisplayName,
			Occupied:  s.Occupied(),
			Connected: s.Connected,
			HandSize:  len(s.Hand),
		})
	}
	return sum, nil
}
