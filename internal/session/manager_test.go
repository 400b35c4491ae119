// internal/session/manager_test.go
package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/partycards/internal/game"
	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func smallDeck() *models.Deck {
	return &models.Deck{Black: []string{"Q1"}, White: []string{"A1", "A2"}}
}

// memRecorder keeps recorded events in memory.
type memRecorder struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (r *memRecorder) Record(_ context.Context, ev models.RoomEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.ActionType)
	}
	return out
}

func startManager(t *testing.T, recorders ...Recorder) (*Manager, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(quietLogger(), game.HouseRules{HandSize: 2, MaxPlayers: 8}, recorders...)
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.stopped
	})
	return m, ctx
}

// drain returns every event queued on c so far.
func drain(c *Conn) []game.Event {
	var out []game.Event
	for {
		select {
		case ev := <-c.OutChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func join(t *testing.T, ctx context.Context, m *Manager, gameID string) *Conn {
	t.Helper()
	c := NewConn("test", quietLogger())
	require.NoError(t, m.Join(ctx, c, JoinParams{GameID: gameID}, smallDeck()))
	return c
}

func TestConcurrentJoinsCreateOneRoom(t *testing.T) {
	m, ctx := startManager(t)
	const n = 50

	conns := make([]*Conn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewConn(fmt.Sprintf("client-%d", i), quietLogger())
			params := JoinParams{GameID: "shared", LockIDs: []string{fmt.Sprintf("p%d", i)}}
			assert.NoError(t, m.Join(ctx, c, params, smallDeck()))
			conns[i] = c
		}(i)
	}
	wg.Wait()

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, []string{"shared"}, stats.RoomIDs)

	// Every connection cached the first writer's allow-list.
	want := conns[0].LockIDs()
	require.Len(t, want, 1)
	for _, c := range conns {
		assert.Equal(t, want, c.LockIDs())
		evs := drain(c)
		require.NotEmpty(t, evs)
		assert.Equal(t, game.EventInit, evs[0].Type)
	}
}

func TestLateJoinerGetsSnapshot(t *testing.T) {
	m, ctx := startManager(t)
	a := join(t, ctx, m, "g1")

	require.NoError(t, m.Dispatch(ctx, a, JoinRequestMessage{ID: "p1", DisplayName: "Alice"}))
	require.NoError(t, m.Dispatch(ctx, a, DealCardsMessage{}))

	b := join(t, ctx, m, "g1")
	evs := drain(b)
	require.Len(t, evs, 1)
	snap := evs[0]
	assert.Equal(t, game.EventInit, snap.Type)
	require.Len(t, snap.Args, 5)

	turnOrder, ok := snap.Args[0].([]game.PublicPlayer)
	require.True(t, ok)
	require.Len(t, turnOrder, 1)
	assert.Equal(t, "p1", turnOrder[0].ID)
	assert.Equal(t, 2, turnOrder[0].HandSize)
	assert.Equal(t, game.StateDealing, snap.Args[1])
	assert.Equal(t, "Q1", snap.Args[2])
	assert.Equal(t, "p1", snap.Args[3])
	assert.Nil(t, snap.Args[4])
}

func TestFreshRoomSnapshot(t *testing.T) {
	m, ctx := startManager(t)
	c := join(t, ctx, m, "fresh")

	evs := drain(c)
	require.Len(t, evs, 1)
	assert.Equal(t, game.NewEvent(game.EventInit, []game.PublicPlayer{}, game.StateLobby, nil, nil, nil), evs[0])
}

func TestInitPrecedesLaterBroadcasts(t *testing.T) {
	m, ctx := startManager(t)
	a := join(t, ctx, m, "g1")
	b := join(t, ctx, m, "g1")

	require.NoError(t, m.Dispatch(ctx, a, ReloadMessage{}))

	evs := drain(b)
	require.Len(t, evs, 2)
	assert.Equal(t, game.EventInit, evs[0].Type)
	assert.Equal(t, game.EventReload, evs[1].Type)
}

func TestDisconnectCascade(t *testing.T) {
	m, ctx := startManager(t)
	a := join(t, ctx, m, "g1")
	b := join(t, ctx, m, "g1")
	require.NoError(t, m.Dispatch(ctx, a, JoinRequestMessage{ID: "p1", DisplayName: "Alice"}))
	drain(b)

	require.NoError(t, m.Disconnect(ctx, a))
	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rooms, "room survives while a connection remains")

	evs := drain(b)
	require.Len(t, evs, 1)
	assert.Equal(t, game.EventPlayerLeave, evs[0].Type)
	assert.Equal(t, "Alice has disconnected.", evs[0].Args[2])
	assert.Equal(t, "disconnect", evs[0].Args[3])

	require.NoError(t, m.Disconnect(ctx, b))
	stats, err = m.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Rooms, "last disconnect destroys the room")

	// A later connection to the same id gets a brand new room.
	c := join(t, ctx, m, "g1")
	snap := drain(c)[0]
	assert.Equal(t, []game.PublicPlayer{}, snap.Args[0])
}

func TestDisconnectDropsPendingJoinRequest(t *testing.T) {
	m, ctx := startManager(t)
	a := join(t, ctx, m, "g1")
	b := join(t, ctx, m, "g1")
	require.NoError(t, m.Dispatch(ctx, a, JoinRequestMessage{ID: "pa", DisplayName: "Alice"}))
	require.NoError(t, m.Dispatch(ctx, b, JoinRequestMessage{ID: "pb", DisplayName: "Bob"}))
	require.NoError(t, m.Disconnect(ctx, b))
	drain(a)

	// Approving the gone requester must not seat a player without a connection.
	require.NoError(t, m.Dispatch(ctx, a, JoinMessage{ID: "pb", DisplayName: "Bob"}))
	evs := drain(a)
	require.Len(t, evs, 1)
	assert.Equal(t, game.EventError, evs[0].Type)

	c := join(t, ctx, m, "g1")
	snap := drain(c)[0]
	turnOrder, ok := snap.Args[0].([]game.PublicPlayer)
	require.True(t, ok)
	require.Len(t, turnOrder, 1)
	assert.Equal(t, "pa", turnOrder[0].ID)
}

func TestJoinAfterDisconnectIsRefused(t *testing.T) {
	m, ctx := startManager(t)
	c := NewConn("test", quietLogger())

	require.NoError(t, m.Disconnect(ctx, c))
	err := m.Join(ctx, c, JoinParams{GameID: "late"}, smallDeck())
	assert.ErrorIs(t, err, ErrConnClosed)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Rooms)
}

func TestHandlerErrorAnsweredToSender(t *testing.T) {
	m, ctx := startManager(t)
	a := join(t, ctx, m, "g1")
	b := join(t, ctx, m, "g1")
	drain(a)
	drain(b)

	require.NoError(t, m.Dispatch(ctx, a, RoundStartMessage{}))

	evs := drain(a)
	require.Len(t, evs, 1)
	assert.Equal(t, game.ErrorEvent(game.ErrBadPhase.Error()), evs[0])
	assert.Empty(t, drain(b))
}

func TestDispatchToMissingRoomIsNoop(t *testing.T) {
	m, ctx := startManager(t)
	c := join(t, ctx, m, "gone")
	drain(c)
	require.NoError(t, m.do(ctx, func() { m.store.DeleteGame("gone") }))

	assert.NotPanics(t, func() {
		require.NoError(t, m.Dispatch(ctx, c, DealCardsMessage{}))
	})
	assert.Empty(t, drain(c))
}

func TestUnjoinedConnectionIsIgnored(t *testing.T) {
	m, ctx := startManager(t)
	c := NewConn("test", quietLogger())

	require.NoError(t, m.Dispatch(ctx, c, ReloadMessage{}))
	assert.Empty(t, drain(c))
}

func TestObjectUpdateSkipsSender(t *testing.T) {
	m, ctx := startManager(t)
	a := join(t, ctx, m, "g1")
	b := join(t, ctx, m, "g1")
	drain(a)
	drain(b)

	tr := models.Transform{Name: "card-3", Position: [3]float64{0, 1, 0}}
	require.NoError(t, m.Dispatch(ctx, a, ObjectUpdateMessage{Transform: tr}))

	assert.Empty(t, drain(a))
	evs := drain(b)
	require.Len(t, evs, 1)
	assert.Equal(t, game.EventObjectUpdate, evs[0].Type)
}

func TestPanickingTaskKeepsLoopAlive(t *testing.T) {
	m, ctx := startManager(t)

	require.NoError(t, m.do(ctx, func() { panic("boom") }))

	id, err := m.GenerateID(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9]{16}$`, id)
}

func TestStoppedManagerRefusesWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(quietLogger(), game.DefaultHouseRules())
	go m.Run(ctx)
	cancel()
	<-m.stopped

	_, err := m.GenerateID(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRoomLifecycleIsRecorded(t *testing.T) {
	rec := &memRecorder{}
	m, ctx := startManager(t, rec)
	c := join(t, ctx, m, "g1")
	require.NoError(t, m.Dispatch(ctx, c, JoinRequestMessage{ID: "p1", DisplayName: "Alice"}))
	require.NoError(t, m.Disconnect(ctx, c))

	want := []string{
		models.ActionRoomCreated,
		string(game.EventPlayerJoin),
		string(game.EventPlayerLeave),
		models.ActionRoomDestroyed,
	}
	require.Eventually(t, func() bool {
		return len(rec.types()) == len(want)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, rec.types())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.events[1].ActionIndex)
	assert.Equal(t, "p1", rec.events[1].ActorID)
	assert.Equal(t, "g1", rec.events[3].GameID)
}
