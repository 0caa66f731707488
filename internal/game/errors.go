package game

import "errors"

var (
	// ErrRoomFull means both seats are held by other occupants.
	ErrRoomFull = errors.New("room is full")
	// ErrPlayerNotFound means the occupant holds no seat in the room.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrDeckEmpty means there is nothing left to draw.
	ErrDeckEmpty = errors.New("deck is empty")
	// ErrGameOver means the game has finished and needs a reset.
	ErrGameOver = errors.New("game is over")
	// ErrNotYourTurn means a seat tried to draw out of turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrSeatOutOfRange means a seat index outside 0..SeatCount-1.
	ErrSeatOutOfRange = errors.New("seat index out of range")
	// ErrCorruptSnapshot means a stored snapshot does not describe a valid room.
	ErrCorruptSnapshot = errors.New("corrupt room snapshot")
)
