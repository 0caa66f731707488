package models

import "github.com/google/uuid"

// Action types written to the room action log.
const (
	ActionJoin       = "join"
	ActionLeave      = "leave"
	ActionDraw       = "draw"
	ActionReset      = "reset"
	ActionDisconnect = "disconnect"
	ActionGameOver   = "game_over"
)

// RoomAction captures one successful mutation of a room for the action log.
type RoomAction struct {
	Room       string                 `json:"room"`
	Version    int64                  `json:"version"`
	ActorID    uuid.UUID              `json:"actor_id"`
	ActionType string                 `json:"action_type"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  int64                  `json:"timestamp"`
}
