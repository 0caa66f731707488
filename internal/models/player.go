// internal/models/player.go
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Seat is one of the two permanent player slots of a room.
// OccupantID is uuid.Nil while nobody holds the seat.
type Seat struct {
	OccupantID  uuid.UUID `json:"id"`
	DisplayName string    `json:"name"`
	SeatIndex   int       `json:"seatIndex"`
	Hand        []Card    `json:"cards"`
	Score       int       `json:"score"`

	// Connected reports whether the occupant's transport is attached.
	// A seat can stay claimed while disconnected until the grace period ends.
	Connected bool `json:"connected"`
	// DisconnectedAt is unix millis of the last transport drop, 0 while connected.
	DisconnectedAt int64 `json:"disconnectedAt,omitempty"`
}

// DefaultSeatName is the placeholder name of an unclaimed seat.
func DefaultSeatName(seatIndex int) string {
	return fmt.Sprintf("Player %d", seatIndex+1)
}

// Occupied reports whether an occupant holds the seat.
func (s *Seat) Occupied() bool {
	return s.OccupantID != uuid.Nil
}
