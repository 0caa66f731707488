// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/gateway"
)

// outboxSize is how many events may queue for a slow client before new ones are dropped.
const outboxSize = 32

// Client is one occupant's live WebSocket connection.
type Client struct {
	OccupantID uuid.UUID
	OutChan    chan gateway.Event

	conn   *websocket.Conn
	cancel context.CancelFunc
	logger *logrus.Logger
	once   sync.Once
}

// Write pushes an event onto the client's OutChan without blocking. Logs if it was dropped.
func (c *Client) Write(ev gateway.Event) {
	select {
	case c.OutChan <- ev:
	default:
		c.logger.WithFields(logrus.Fields{
			"occupant": c.OccupantID,
			"event":    ev.Type,
		}).Warn("client outbox full, dropping event")
	}
}

// closeWith sends a close frame with code, then stops the client's pumps.
func (c *Client) closeWith(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		go func() {
			if c.conn != nil {
				_ = c.conn.Close(code, reason)
			}
			c.cancel()
		}()
	})
}

// Hub tracks the live connection of every occupant on this instance and
// implements gateway.Emitter for them.
type Hub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*Client
	logger  *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		logger:  logger,
	}
}

// Register makes a new client the current connection for occupantID.
// A previous connection of the same occupant is closed with SessionReplacedError.
func (h *Hub) Register(occupantID uuid.UUID, conn *websocket.Conn, cancel context.CancelFunc) *Client {
	client := &Client{
		OccupantID: occupantID,
		OutChan:    make(chan gateway.Event, outboxSize),
		conn:       conn,
		cancel:     cancel,
		logger:     h.logger,
	}

	h.mu.Lock()
	prev := h.clients[occupantID]
	h.clients[occupantID] = client
	h.mu.Unlock()

	if prev != nil {
		h.logger.WithField("occupant", occupantID).Info("replacing existing connection")
		prev.closeWith(SessionReplacedError, "session opened elsewhere")
	}
	return client
}

// Unregister removes client if it is still the occupant's current connection.
// Reports false for a connection that was already replaced, so callers only
// treat the latest connection's exit as a disconnect.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.OccupantID] != client {
		return false
	}
	delete(h.clients, client.OccupantID)
	return true
}

// Emit delivers ev to the occupant's connection, if it is attached here.
func (h *Hub) Emit(occupantID uuid.UUID, ev gateway.Event) {
	h.mu.Lock()
	client := h.clients[occupantID]
	h.mu.Unlock()
	if client != nil {
		client.Write(ev)
	}
}

// Connected reports whether the occupant has a live connection on this instance.
func (h *Hub) Connected(occupantID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[occupantID]
	return ok
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeWith(ServerShutdownError, "server shutting down")
	}
}
