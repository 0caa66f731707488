// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// PlayerView is one seat as seen by a particular occupant.
// Exactly one of Hand (own seat) or HandSize (any other seat) is set.
type PlayerView struct {
	Name      string         `json:"name"`
	SeatIndex int            `json:"seatIndex"`
	Hand      *[]models.Card `json:"hand,omitempty"`
	HandSize  *int           `json:"handSize,omitempty"`
	Score     *int           `json:"score,omitempty"`
	Occupied  bool           `json:"occupied"`
	Connected bool           `json:"connected"`
	IsSelf    bool           `json:"isSelf,omitempty"`
}

// Announcement is a human readable, timestamped log line shown alongside a state update.
type Announcement struct {
	Message string `json:"message"`
	Time    int64  `json:"time"`
}

// GameView is the filtered room state pushed to a single occupant.
type GameView struct {
	Players       []PlayerView   `json:"players"`
	DeckSize      int            `json:"deckSize"`
	CurrentTurn   int            `json:"currentTurn"`
	IsGameOver    bool           `json:"isGameOver"`
	Winner        string         `json:"winner"`
	IsDraw        bool           `json:"isDraw"`
	Announcements []Announcement `json:"announcements,omitempty"`
}

// FormatForOccupant projects a snapshot for occupantID. The occupant's own seat
// carries its cards and score; every other seat only reveals how many cards it holds.
// uuid.Nil sees no hands at all.
func FormatForOccupant(snap *models.RoomSnapshot, occupantID uuid.UUID) GameView {
	view := GameView{
		Players:     make([]PlayerView, 0, len(snap.Players)),
		DeckSize:    len(snap.Deck),
		CurrentTurn: snap.CurrentTurn,
		IsGameOver:  snap.IsGameOver,
		Winner:      snap.Winner,
		IsDraw:      snap.IsDraw,
	}

	for _, p := range snap.Players {
		pv := PlayerView{
			Name:      p.DisplayName,
			SeatIndex: p.SeatIndex,
			Occupied:  p.Occupied(),
			Connected: p.Connected,
		}
		if occupantID != uuid.Nil && p.OccupantID == occupantID {
			hand := make([]models.Card, len(p.Hand))
			copy(hand, p.Hand)
			score := p.Score
			pv.Hand = &hand
			pv.Score = &score
			pv.IsSelf = true
		} else {
			size := len(p.Hand)
			pv.HandSize = &size
		}
		view.Players = append(view.Players, pv)
	}
	return view
}
