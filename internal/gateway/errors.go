// internal/gateway/errors.go
package gateway

import (
	"errors"

	"github.com/teamboningen/yunoDaifugo/internal/game"
)

var (
	// ErrStoreUnavailable wraps any failure to load or save a snapshot.
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrRoomExists       = errors.New("room already exists")
	ErrRoomNotFound     = errors.New("room not found")
	ErrInvalidName      = errors.New("invalid room or player name")
	ErrNotInRoom        = errors.New("not in a room")
	ErrUnknownEvent     = errors.New("unknown event type")
)

// errStillConnected aborts a disconnect or grace expiry when the occupant came back in time.
var errStillConnected = errors.New("occupant reconnected")

// userMessage maps an operation error to the text sent in an error event.
// Store and internal failures collapse into one generic message.
func userMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomFull):
		return "The room is full."
	case errors.Is(err, game.ErrNotYourTurn):
		return "It is not your turn."
	case errors.Is(err, game.ErrGameOver):
		return "The game is over. Reset to play again."
	case errors.Is(err, game.ErrDeckEmpty):
		return "The deck is empty."
	case errors.Is(err, game.ErrPlayerNotFound):
		return "You are not seated in this room."
	case errors.Is(err, ErrNotInRoom):
		return "Join a room first."
	case errors.Is(err, ErrRoomExists):
		return "A room with that name already exists."
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, ErrInvalidName):
		return "Room names need 1-64 characters and player names at most 32."
	case errors.Is(err, ErrUnknownEvent):
		return "Unknown event."
	default:
		return "Something went wrong. Please try again."
	}
}
