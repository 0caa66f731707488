// internal/models/room.go
package models

// RoomSnapshot is the complete plain-data export of a room and the unit of persistence.
type RoomSnapshot struct {
	Players     []Seat `json:"players"`
	Deck        []Card `json:"deck"`
	CurrentTurn int    `json:"currentTurn"`
	IsGameOver  bool   `json:"isGameOver"`
	Winner      string `json:"winner"`
	IsDraw      bool   `json:"isDraw"`

	// Version increments on every persisted mutation.
	Version   int64 `json:"version"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers can mutate it freely.
func (s *RoomSnapshot) Clone() *RoomSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Deck = copyCards(s.Deck)
	out.Players = make([]Seat, len(s.Players))
	for i, p := range s.Players {
		p.Hand = copyCards(p.Hand)
		out.Players[i] = p
	}
	return &out
}

func copyCards(src []Card) []Card {
	if src == nil {
		return nil
	}
	out := make([]Card, len(src))
	copy(out, src)
	return out
}
