// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/gateway"
)

// RoomSummaryHandler serves GET /rooms/{name}: seat names, phase and deck size, never cards.
func RoomSummaryHandler(logger *logrus.Logger, gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		sum, err := gw.Summary(r.Context(), name)
		switch {
		case errors.Is(err, gateway.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case errors.Is(err, gateway.ErrInvalidName):
			http.Error(w, "invalid room name", http.StatusBadRequest)
			return
		case err != nil:
			logger.WithError(err).WithField("room", name).Error("room summary failed")
			http.Error(w, "could not load room", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sum); err != nil {
			logger.WithError(err).Warn("failed to encode room summary")
		}
	}
}

// PingHandler answers health checks.
func PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
