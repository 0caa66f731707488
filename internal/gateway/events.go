// internal/gateway/events.go
package gateway

import (
	"strings"

	"github.com/google/uuid"
)

// Inbound event types.
const (
	EventJoinGame   = "joinGame"
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventDrawCard   = "drawCard"
	EventResetGame  = "resetGame"
	EventLeaveRoom  = "leaveRoom"
	EventPing       = "ping"
)

// Outbound event types.
const (
	EventSession     = "session"
	EventRoomJoined  = "roomJoined"
	EventGameLoaded  = "gameLoaded"
	EventGameUpdated = "gameUpdated"
	EventGameFull    = "gameFull"
	EventRoomLeft    = "roomLeft"
	EventPlayerLeft  = "playerLeft"
	EventError       = "error"
	EventPong        = "pong"
)

// Event is one outbound message. Payload is omitted for bare signals like gameFull.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Emitter delivers events to whatever transport currently holds an occupant.
// Emit must not block; undeliverable events are dropped.
type Emitter interface {
	Emit(occupantID uuid.UUID, ev Event)
}

// Inbound is a client request. Room and player names may be sent at the top
// level or nested under payload.
type Inbound struct {
	Type       string          `json:"type"`
	RoomName   string          `json:"roomName,omitempty"`
	PlayerName string          `json:"playerName,omitempty"`
	Payload    *InboundPayload `json:"payload,omitempty"`
}

// InboundPayload is the nested form of the join fields.
type InboundPayload struct {
	RoomName   string `json:"roomName,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
}

func (in Inbound) names() (room, player string) {
	room, player = in.RoomName, in.PlayerName
	if in.Payload != nil {
		if room == "" {
			room = in.Payload.RoomName
		}
		if player == "" {
			player = in.Payload.PlayerName
		}
	}
	return strings.TrimSpace(room), strings.TrimSpace(player)
}

// SessionPayload tells a client which occupant id it was given and the token
// to present when it reconnects.
type SessionPayload struct {
	OccupantID uuid.UUID `json:"occupantId"`
	Token      string    `json:"token"`
}

// RoomJoinedPayload acknowledges a join.
type RoomJoinedPayload struct {
	RoomName  string `json:"roomName"`
	SeatIndex int    `json:"seatIndex"`
}

// RoomLeftPayload acknowledges a leave.
type RoomLeftPayload struct {
	RoomName string `json:"roomName"`
}

// PlayerLeftPayload tells the remaining occupant who left.
type PlayerLeftPayload struct {
	PlayerID  uuid.UUID `json:"playerId"`
	SeatIndex int       `json:"seatIndex"`
	Name      string    `json:"name"`
}

// ErrorPayload carries a human readable failure to the requester only.
type ErrorPayload struct {
	Message string `json:"message"`
}
