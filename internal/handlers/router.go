// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/gateway"
	"github.com/teamboningen/yunoDaifugo/internal/middleware"
)

// NewRouter wires every HTTP and WebSocket endpoint of the room server.
func NewRouter(logger *logrus.Logger, gw *gateway.Gateway, hub *Hub, originPatterns []string) http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	mux.Handle("GET /{$}", logged(http.HandlerFunc(PingHandler)))
	mux.Handle("GET /rooms/{name}", logged(RoomSummaryHandler(logger, gw)))
	// upgrades are logged on connect and disconnect instead
	mux.Handle("GET /ws", RoomWSHandler(logger, gw, hub, originPatterns))
	return mux
}
