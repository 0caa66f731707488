// internal/fanout/fanout.go
package fanout

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/gateway"
)

// SubjectPrefix is prepended to the occupant id for every published event.
const SubjectPrefix = "cardroom.occupant."

// Connect dials the NATS server at url.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Subject is the NATS subject carrying events for occupantID.
func Subject(occupantID uuid.UUID) string {
	return SubjectPrefix + occupantID.String()
}

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encode(ev gateway.Event) ([]byte, error) {
	out := wireEvent{Type: ev.Type}
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

func decode(subject string, data []byte) (uuid.UUID, gateway.Event, error) {
	id, err := uuid.Parse(strings.TrimPrefix(subject, SubjectPrefix))
	if err != nil {
		return uuid.Nil, gateway.Event{}, fmt.Errorf("bad subject %q: %w", subject, err)
	}
	var in wireEvent
	if err := json.Unmarshal(data, &in); err != nil {
		return uuid.Nil, gateway.Event{}, err
	}
	if in.Type == "" {
		return uuid.Nil, gateway.Event{}, fmt.Errorf("event without type on %s", subject)
	}
	ev := gateway.Event{Type: in.Type}
	if len(in.Payload) > 0 {
		ev.Payload = in.Payload
	}
	return id, ev, nil
}

// publisher is the part of *nats.Conn the Emitter needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Emitter publishes every event to NATS so whichever instance holds the
// occupant's connection can deliver it.
type Emitter struct {
	pub    publisher
	logger *logrus.Logger
}

// NewEmitter returns an Emitter publishing on nc.
func NewEmitter(nc *nats.Conn, logger *logrus.Logger) *Emitter {
	return &Emitter{pub: nc, logger: logger}
}

// Emit implements gateway.Emitter.
func (e *Emitter) Emit(occupantID uuid.UUID, ev gateway.Event) {
	data, err := encode(ev)
	if err != nil {
		e.logger.WithError(err).WithField("event", ev.Type).Error("failed to encode event for fanout")
		return
	}
	if err := e.pub.Publish(Subject(occupantID), data); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"occupant": occupantID,
			"event":    ev.Type,
		}).Warn("failed to publish event")
	}
}

// Subscribe delivers every fanned out event to local. Events for occupants
// not connected to this instance are dropped by local itself.
func Subscribe(nc *nats.Conn, local gateway.Emitter, logger *logrus.Logger) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(SubjectPrefix+"*", func(m *nats.Msg) {
		deliver(local, logger, m.Subject, m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s*: %w", SubjectPrefix, err)
	}
	return sub, nil
}

func deliver(local gateway.Emitter, logger *logrus.Logger, subject string, data []byte) {
	id, ev, err := decode(subject, data)
	if err != nil {
		logger.WithError(err).Warn("dropping malformed fanout message")
		return
	}
	local.Emit(id, ev)
}
