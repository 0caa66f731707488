// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room handler.
// These give more specific reasons for closure than the standard codes.
const (
	// SessionReplacedError closes an older connection when the same occupant connects again.
	SessionReplacedError websocket.StatusCode = 3004
	// ServerShutdownError is sent to every client when the process stops.
	ServerShutdownError websocket.StatusCode = 3005
)
