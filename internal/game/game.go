// internal/game/game.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

const (
	// SeatCount is the fixed number of seats in a room.
	SeatCount = 2
	// HandLimit is the hand size at which a seat stops drawing.
	HandLimit = 5
	// DrawMarker is stored as the winner when the highest score is shared.
	DrawMarker = "draw"
)

// Phase is the coarse lifecycle state of a room.
type Phase string

const (
	PhaseWaiting    Phase = "WAITING"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseFinished   Phase = "FINISHED"
)

// DrawResult describes the outcome of a successful draw.
type DrawResult struct {
	Card       models.Card `json:"card"`
	SeatIndex  int         `json:"seatIndex"`
	NextTurn   int         `json:"nextTurn"`
	DeckSize   int         `json:"deckSize"`
	IsGameOver bool        `json:"isGameOver"`
	Winner     string      `json:"winner"`
	IsDraw     bool        `json:"isDraw"`
}

// Room holds the authoritative state of one two-seat game.
// A Room is not safe for concurrent use; callers rebuild it per operation
// from a snapshot and serialise access per room name.
type Room struct {
	Deck        *Deck
	Seats       [SeatCount]*models.Seat
	CurrentTurn int
	IsGameOver  bool
	Winner      string
	IsDraw      bool

	version int64
	now     func() time.Time
}

// NewRoom builds a fresh room: shuffled deck, empty seats, seat 0 to play.
func NewRoom() *Room {
	r := newBareRoom(NewDeck())
	r.Deck.Initialize()
	return r
}

// NewRoomWithDeck builds a fresh room around a prepared deck. The deck is not shuffled.
func NewRoomWithDeck(d *Deck) *Room {
	return newBareRoom(d)
}

func newBareRoom(d *Deck) *Room {
	r := &Room{Deck: d, now: time.Now}
	for i := range r.Seats {
		r.Seats[i] = &models.Seat{
			SeatIndex:   i,
			DisplayName: models.DefaultSeatName(i),
			Hand:        []models.Card{},
		}
	}
	return r
}

// Version is the snapshot version this room was loaded from.
func (r *Room) Version() int64 {
	return r.version
}

// Phase reports WAITING while a seat is free, FINISHED once the game is over,
// IN_PROGRESS otherwise.
func (r *Room) Phase() Phase {
	if r.IsGameOver {
		return PhaseFinished
	}
	for _, s := range r.Seats {
		if !s.Occupied() {
			return PhaseWaiting
		}
	}
	return PhaseInProgress
}

// SeatOf returns the seat index held by occupantID.
func (r *Room) SeatOf(occupantID uuid.UUID) (int, bool) {
	if occupantID == uuid.Nil {
		return -1, false
	}
	for i, s := range r.Seats {
		if s.OccupantID == occupantID {
			return i, true
		}
	}
	return -1, false
}

// AssignSeat seats occupantID and returns the seat index.
// An already seated occupant gets its own seat back, marked connected again,
// and keeps its name unless a new one is given. Otherwise the first free seat
// is taken, named displayName or the seat's default name.
// ErrRoomFull leaves the room untouched.
func (r *Room) AssignSeat(occupantID uuid.UUID, displayName string) (int, error) {
	if occupantID == uuid.Nil {
		return -1, ErrPlayerNotFound
	}
	idx, seated := r.SeatOf(occupantID)
	if !seated {
		for i, s := range r.Seats {
			if !s.Occupied() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return -1, ErrRoomFull
		}
	}

	seat := r.Seats[idx]
	seat.OccupantID = occupantID
	switch {
	case displayName != "":
		seat.DisplayName = displayName
	case !seated:
		seat.DisplayName = models.DefaultSeatName(idx)
	}
	seat.Connected = true
	seat.DisconnectedAt = 0
	return idx, nil
}

// ReleaseSeat frees the seat held by occupantID. Hand and score are kept.
// Reports false when the occupant was not seated.
func (r *Room) ReleaseSeat(occupantID uuid.UUID) bool {
	idx, ok := r.SeatOf(occupantID)
	if !ok {
		return false
	}
	seat := r.Seats[idx]
	seat.OccupantID = uuid.Nil
	seat.Connected = false
	seat.DisconnectedAt = 0
	return true
}

// SetConnected flags whether the occupant's transport is attached.
func (r *Room) SetConnected(occupantID uuid.UUID, connected bool) error {
	idx, ok := r.SeatOf(occupantID)
	if !ok {
		return ErrPlayerNotFound
	}
	seat := r.Seats[idx]
	seat.Connected = connected
	if connected {
		seat.DisconnectedAt = 0
	} else {
		seat.DisconnectedAt = r.now().UnixMilli()
	}
	return nil
}

// DrawCard draws the top card into the hand of seatIndex.
// Nothing changes when it returns an error.
func (r *Room) DrawCard(seatIndex int) (DrawResult, error) {
	if seatIndex < 0 || seatIndex >= SeatCount {
		return DrawResult{}, ErrSeatOutOfRange
	}
	if r.IsGameOver {
		return DrawResult{}, ErrGameOver
	}
	if r.Deck.Size() == 0 {
		return DrawResult{}, ErrDeckEmpty
	}
	if seatIndex != r.CurrentTurn {
		return DrawResult{}, ErrNotYourTurn
	}

	card, err := r.Deck.Draw()
	if err != nil {
		return DrawResult{}, err
	}
	seat := r.Seats[seatIndex]
	seat.Hand = append(seat.Hand, card)
	seat.Score += card.Value

	if r.allHandsFull() || r.Deck.Size() == 0 {
		r.finish()
	}
	// the turn advances even on the final draw
	r.CurrentTurn = (r.CurrentTurn + 1) % SeatCount

	return DrawResult{
		Card:       card,
		SeatIndex:  seatIndex,
		NextTurn:   r.CurrentTurn,
		DeckSize:   r.Deck.Size(),
		IsGameOver: r.IsGameOver,
		Winner:     r.Winner,
		IsDraw:     r.IsDraw,
	}, nil
}

func (r *Room) allHandsFull() bool {
	for _, s := range r.Seats {
		if len(s.Hand) < HandLimit {
			return false
		}
	}
	return true
}

// finish marks the game over and records the single highest scorer, or the draw marker on a tie.
func (r *Room) finish() {
	r.IsGameOver = true
	best := -1
	var leaders []*models.Seat
	for _, s := range r.Seats {
		switch {
		case s.Score > best:
			best = s.Score
			leaders = []*models.Seat{s}
		case s.Score == best:
			leaders = append(leaders, s)
		}
	}
	if len(leaders) == 1 {
		r.Winner = leaders[0].DisplayName
		r.IsDraw = false
		return
	}
	r.Winner = DrawMarker
	r.IsDraw = true
}

// Reset deals a fresh shuffled deck and clears every hand and score.
// Occupants keep their seats.
func (r *Room) Reset() {
	if r.Deck == nil {
		r.Deck = NewDeck()
	}
	r.Deck.Initialize()
	for _, s := range r.Seats {
		s.Hand = []models.Card{}
		s.Score = 0
	}
	r.CurrentTurn = 0
	r.IsGameOver = false
	r.Winner = ""
	r.IsDraw = false
}

// Occupants returns the ids of every seated occupant in seat order.
func (r *Room) Occupants() []uuid.UUID {
	var ids []uuid.UUID
	for _, s := range r.Seats {
		if s.Occupied() {
			ids = append(ids, s.OccupantID)
		}
	}
	return ids
}
