// internal/pubsub/nats.go
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultURL is used when no broker URL is configured.
	DefaultURL = "nats://localhost:4222"
	// StatusSubject answers requests with the server's room stats.
	StatusSubject = "partycards.status"

	statusTimeout = 2 * time.Second
)

// RoomSubject is the subject a room's events are published on.
func RoomSubject(gameID string) string {
	return "rooms." + gameID + ".events"
}

// BrokerConnect dials the broker with the reconnect policy shared by every
// service in the deployment.
func BrokerConnect(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = DefaultURL
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSRecorder publishes room events so other services can follow rooms live.
type NATSRecorder struct {
	nc *nats.Conn
}

func NewNATSRecorder(nc *nats.Conn) *NATSRecorder {
	return &NATSRecorder{nc: nc}
}

// Record publishes ev on its room's subject.
func (r *NATSRecorder) Record(_ context.Context, ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEvent: %w", err)
	}
	if err := r.nc.Publish(RoomSubject(ev.GameID), data); err != nil {
		return fmt.Errorf("publish %s: %w", RoomSubject(ev.GameID), err)
	}
	return nil
}

// ServeStatus replies to requests on StatusSubject with the JSON encoding of
// whatever stats returns.
func ServeStatus(nc *nats.Conn, logger *logrus.Logger, stats func(ctx context.Context) (interface{}, error)) (*nats.Subscription, error) {
	return nc.Subscribe(StatusSubject, func(m *nats.Msg) {
		if m.Reply == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()

		payload := map[string]interface{}{"server_time": time.Now().UnixMilli()}
		s, err := stats(ctx)
		if err != nil {
			payload["error"] = err.Error()
		} else {
			payload["stats"] = s
		}
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Warnf("Failed to marshal status reply: %v", err)
			return
		}
		if err := m.Respond(data); err != nil {
			logger.Warnf("Failed to answer status request: %v", err)
		}
	})
}
