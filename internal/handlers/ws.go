// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/gateway"
	"github.com/teamboningen/yunoDaifugo/internal/middleware"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	// opTimeout bounds one room operation, independent of the connection's lifetime.
	opTimeout = 10 * time.Second
	// maxMessageBytes caps inbound frames; requests are tiny JSON objects.
	maxMessageBytes = 4096
)

// RoomWSHandler upgrades the HTTP connection to WebSocket, resolves the
// occupant's session and then feeds every inbound message to the gateway.
// Outbound events reach the connection through the hub.
func RoomWSHandler(logger *logrus.Logger, gw *gateway.Gateway, hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The cookie has to be set before the upgrade writes the response headers.
		occupantID, token, err := EnsureSession(w, r)
		if err != nil {
			logger.WithError(err).Error("could not issue session")
			http.Error(w, "could not issue session", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")
		c.SetReadLimit(maxMessageBytes)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client := hub.Register(occupantID, c, cancel)
		pumpDone := make(chan struct{})
		go func() {
			defer close(pumpDone)
			writePump(ctx, c, client, logger)
		}()

		client.Write(gateway.Event{
			Type:    gateway.EventSession,
			Payload: gateway.SessionPayload{OccupantID: occupantID, Token: token},
		})

		// a reconnect inside the grace period picks the old seat back up
		opCtx, opCancel := opContext(ctx)
		if err := gw.Resume(opCtx, occupantID); err != nil {
			logger.WithError(err).WithField("occupant", occupantID).Debug("previous seat not resumed")
		}
		opCancel()

		readErr := readPump(ctx, c, gw, client, logger)
		cancel()
		<-pumpDone

		if hub.Unregister(client) {
			gw.Disconnect(occupantID)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readPump reads client messages until the connection closes and dispatches each one.
// Returns nil for an orderly close.
func readPump(ctx context.Context, c *websocket.Conn, gw *gateway.Gateway, client *Client, logger *logrus.Logger) error {
	log := logger.WithField("occupant", client.OccupantID)
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Debug("websocket closed normally")
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			default:
				log.Warnf("read error: %v (CloseStatus: %d)", err, status)
				return err
			}
		}

		if typ != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var in gateway.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Warnf("invalid json: %v", err)
			client.Write(gateway.Event{Type: gateway.EventError, Payload: gateway.ErrorPayload{Message: "Invalid JSON format."}})
			continue
		}

		log.WithField("event", in.Type).Trace("received")
		opCtx, cancel := opContext(ctx)
		_ = gw.Dispatch(opCtx, client.OccupantID, in)
		cancel()
	}
}

// writePump drains the client's OutChan onto the socket and pings periodically.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	log := logger.WithField("occupant", client.OccupantID)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-client.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Warnf("failed to marshal %s event: %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				// readPump notices the broken connection on its own
				log.Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("ping failed: %v. Assuming disconnect.", err)
				return
			}
		}
	}
}

// opContext detaches an operation from the connection so a client hanging up
// mid-save does not abort it halfway.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
}
