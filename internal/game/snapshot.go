// internal/game/snapshot.go
package game

import (
	"fmt"
	"time"

	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// Snapshot exports the room as plain data. The result shares no memory with the room.
func (r *Room) Snapshot() *models.RoomSnapshot {
	snap := &models.RoomSnapshot{
		Players:     make([]models.Seat, SeatCount),
		Deck:        r.Deck.Cards(),
		CurrentTurn: r.CurrentTurn,
		IsGameOver:  r.IsGameOver,
		Winner:      r.Winner,
		IsDraw:      r.IsDraw,
		Version:     r.version,
	}
	for i, s := range r.Seats {
		seat := *s
		seat.Hand = make([]models.Card, len(s.Hand))
		copy(seat.Hand, s.Hand)
		snap.Players[i] = seat
	}
	return snap
}

// FromSnapshot rebuilds a room from a snapshot produced by Snapshot.
func FromSnapshot(snap *models.RoomSnapshot) (*Room, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrCorruptSnapshot)
	}
	if len(snap.Players) != SeatCount {
		return nil, fmt.Errorf("%w: %d seats", ErrCorruptSnapshot, len(snap.Players))
	}
	if snap.CurrentTurn < 0 || snap.CurrentTurn >= SeatCount {
		return nil, fmt.Errorf("%w: turn %d", ErrCorruptSnapshot, snap.CurrentTurn)
	}
	if snap.IsGameOver != (snap.Winner != "") {
		return nil, fmt.Errorf("%w: game over %v with winner %q", ErrCorruptSnapshot, snap.IsGameOver, snap.Winner)
	}

	r := &Room{
		Deck:        NewDeckFromCards(snap.Deck),
		CurrentTurn: snap.CurrentTurn,
		IsGameOver:  snap.IsGameOver,
		Winner:      snap.Winner,
		IsDraw:      snap.IsDraw,
		version:     snap.Version,
		now:         time.Now,
	}
	for i, p := range snap.Players {
		seat := p
		seat.SeatIndex = i
		seat.Hand = make([]models.Card, len(p.Hand))
		copy(seat.Hand, p.Hand)
		r.Seats[i] = &seat
	}
	return r, nil
}
