// internal/session/conn.go
package session

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/partycards/internal/game"
	"github.com/sirupsen/logrus"
)

// outQueueSize bounds the per-connection outbound queue.
const outQueueSize = 64

// Conn is one client connection. The transport drains OutChan; everything
// else is owned by the manager loop.
type Conn struct {
	id      string
	Remote  string
	OutChan chan game.Event

	// loop-owned
	gameID  string
	lockIDs []string
	joined  bool
	closed  bool

	log *logrus.Entry
}

// NewConn returns a connection with a fresh id and an empty outbound queue.
func NewConn(remote string, logger *logrus.Logger) *Conn {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := uuid.NewString()
	return &Conn{
		id:      id,
		Remote:  remote,
		OutChan: make(chan game.Event, outQueueSize),
		log:     logger.WithFields(logrus.Fields{"conn": id, "remote": remote}),
	}
}

func (c *Conn) ID() string { return c.id }

// GameID is the room the connection joined, or "" before the handshake.
func (c *Conn) GameID() string { return c.gameID }

// LockIDs is the room's allow-list cached at handshake time.
func (c *Conn) LockIDs() []string { return c.lockIDs }

// Send queues ev without blocking. A full queue drops the event.
func (c *Conn) Send(ev game.Event) {
	select {
	case c.OutChan <- ev:
	default:
		c.log.Warnf("Outbound queue full, dropped event '%s'", ev.Type)
	}
}

// Logger returns the connection's log entry.
func (c *Conn) Logger() *logrus.Entry { return c.log }
