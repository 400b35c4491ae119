// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partycards/internal/game"
	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	taskQueueSize   = 256
	recordQueueSize = 1024
	recordTimeout   = 3 * time.Second
)

var (
	// ErrStopped is returned when the manager loop is no longer running.
	ErrStopped = errors.New("session manager stopped")
	// ErrConnClosed is returned when a join races with the connection closing.
	ErrConnClosed = errors.New("connection closed before join")
)

// Recorder receives room events for the history log.
type Recorder interface {
	Record(ctx context.Context, ev models.RoomEvent) error
}

// Manager owns the room registry and the broadcast groups. All of their
// state is touched only by tasks executed on the loop started by Run, one at
// a time in submission order.
type Manager struct {
	store *game.GameStore
	hub   *Hub
	rules game.HouseRules

	recorders []Recorder
	records   chan models.RoomEvent

	tasks   chan func()
	stopped chan struct{}
	logger  *logrus.Logger
}

// NewManager builds a manager; nothing runs until Run is called.
func NewManager(logger *logrus.Logger, rules game.HouseRules, recorders ...Recorder) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		store:     game.NewGameStore(logger),
		hub:       NewHub(),
		rules:     rules,
		recorders: recorders,
		records:   make(chan models.RoomEvent, recordQueueSize),
		tasks:     make(chan func(), taskQueueSize),
		stopped:   make(chan struct{}),
		logger:    logger,
	}
}

// Run executes tasks until ctx is done. It must be called exactly once.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.stopped)

	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		m.drainRecords()
	}()
	defer func() {
		close(m.records)
		<-recDone
	}()

	m.logger.Info("Session manager started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Infof("Session manager stopping with %d active rooms", m.store.Len())
			return
		case task := <-m.tasks:
			m.runTask(task)
		}
	}
}

// runTask isolates the loop from a panicking handler.
func (m *Manager) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("Recovered panic in session task: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}

// do runs fn on the loop and waits for it to finish.
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case m.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopped:
		return ErrStopped
	}
}

// Join attaches c to the room p.GameID, creating the room bound to d if it
// does not exist. Subscription and the init snapshot happen in one loop task,
// so c sees every broadcast that follows its snapshot and none before it.
func (m *Manager) Join(ctx context.Context, c *Conn, p JoinParams, d *models.Deck) error {
	var joinErr error
	err := m.do(ctx, func() {
		if c.closed {
			joinErr = ErrConnClosed
			return
		}
		g, created := m.store.CreateOrGet(p.GameID, p.LockIDs, d, m.rules)
		if created {
			m.bindGame(g)
			m.record(g.ID, "", models.ActionRoomCreated, map[string]interface{}{
				"lock_ids": append([]string(nil), g.LockIDs...),
				"deck_url": p.DeckURL,
			})
		}

		// The room's allow-list wins over the one this connection asked for.
		c.gameID = g.ID
		c.lockIDs = append([]string(nil), g.LockIDs...)
		c.joined = true
		m.hub.Subscribe(GroupName(g.ID), c)
		c.Send(g.Snapshot().Event())

		c.log.WithField("game", g.ID).Infof("Client joined room, %d connected", m.hub.Len(GroupName(g.ID)))
	})
	if err != nil {
		return err
	}
	return joinErr
}

// bindGame wires a new room's broadcasts to its group and its actions to the recorders.
func (m *Manager) bindGame(g *game.Game) {
	group := GroupName(g.ID)
	g.BroadcastFn = func(ev game.Event, except game.Client) {
		m.hub.Broadcast(group, ev, except)
	}
	id := g.ID
	g.OnAction = func(actorID, actionType string, payload map[string]interface{}) {
		m.record(id, actorID, actionType, payload)
	}
}

// Disconnect runs the leave cascade for a closed connection: its pending join
// requests are dropped, the player bound to it leaves the table, the connection leaves its group, and the room is
// destroyed once its group is empty.
func (m *Manager) Disconnect(ctx context.Context, c *Conn) error {
	return m.do(ctx, func() {
		c.closed = true
		if !c.joined {
			return
		}
		c.joined = false
		group := GroupName(c.gameID)

		g, ok := m.store.GetGame(c.gameID)
		if ok {
			g.ForgetClient(c)
			if p := g.PlayerForClient(c); p != nil {
				if err := g.Leave(c, p.ID, p.DisplayName, p.DisplayName+" has disconnected.", "disconnect"); err != nil {
					c.log.WithField("game", c.gameID).Warnf("Leave on disconnect failed: %v", err)
				}
			}
		}
		m.hub.Unsubscribe(group, c)
		c.log.WithField("game", c.gameID).Info("Client left room")

		if ok && m.hub.Empty(group) {
			m.store.DeleteGame(g.ID)
			m.record(g.ID, "", models.ActionRoomDestroyed, nil)
		}
	})
}

// Dispatch routes an inbound message from c on the loop.
func (m *Manager) Dispatch(ctx context.Context, c *Conn, msg Message) error {
	return m.do(ctx, func() { m.route(c, msg) })
}

// GenerateID returns a room id no active room uses.
func (m *Manager) GenerateID(ctx context.Context) (string, error) {
	var id string
	err := m.do(ctx, func() { id = m.store.GenerateID() })
	return id, err
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Rooms   int      `json:"rooms"`
	RoomIDs []string `json:"roomIds"`
}

// Stats reports the active rooms.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.do(ctx, func() {
		s = Stats{Rooms: m.store.Len(), RoomIDs: m.store.IDs()}
	})
	return s, err
}

// record queues a room event for the recorders without blocking the loop.
func (m *Manager) record(gameID, actorID, actionType string, payload map[string]interface{}) {
	if len(m.recorders) == 0 {
		return
	}
	ev := models.RoomEvent{
		ID:         uuid.New(),
		GameID:     gameID,
		ActorID:    actorID,
		ActionType: actionType,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	if idx, ok := payload["action_index"].(int); ok {
		ev.ActionIndex = idx
	}
	select {
	case m.records <- ev:
	default:
		m.logger.WithField("game", gameID).Warnf("Record queue full, dropped '%s'", actionType)
	}
}

// drainRecords delivers queued events in order until the queue is closed.
func (m *Manager) drainRecords() {
	for ev := range m.records {
		for _, r := range m.recorders {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			if err := r.Record(ctx, ev); err != nil {
				m.logger.WithField("game", ev.GameID).Warnf("Failed to record '%s': %v", ev.ActionType, err)
			}
			cancel()
		}
	}
}
