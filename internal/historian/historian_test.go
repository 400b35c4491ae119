// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

// chanQueue serves events pushed onto a channel.
type chanQueue struct {
	events chan models.RoomEvent
}

func (q *chanQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RoomEvent, error) {
	select {
	case ev := <-q.events:
		return &ev, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// memStore records batches and can be told to fail.
type memStore struct {
	mu      sync.Mutex
	batches [][]models.RoomEvent
	fail    bool
	sweeps  int
}

func (s *memStore) InsertRoomEvents(_ context.Context, events []models.RoomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.batches = append(s.batches, append([]models.RoomEvent(nil), events...))
	return nil
}

func (s *memStore) MarkIdleRoomsAbandoned(context.Context, time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return 1, nil
}

func (s *memStore) stored() []models.RoomEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RoomEvent
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func event(gameID string, idx int) models.RoomEvent {
	return models.RoomEvent{ID: uuid.New(), GameID: gameID, ActionIndex: idx, ActionType: "cardSelection"}
}

func quiet() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestBatchesFlushAtSize(t *testing.T) {
	q := &chanQueue{events: make(chan models.RoomEvent, 10)}
	store := &memStore{}
	svc := NewService(q, store, Options{BatchSize: 3, FlushInterval: time.Hour, Inactivity: time.Hour, SweepInterval: time.Hour}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	for i := 0; i < 3; i++ {
		q.events <- event("g1", i)
	}
	assert.Eventually(t, func() bool { return len(store.stored()) == 3 }, 2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	assert.Len(t, store.batches, 1)
	store.mu.Unlock()

	cancel()
	<-done
}

func TestPartialBatchFlushesOnInterval(t *testing.T) {
	q := &chanQueue{events: make(chan models.RoomEvent, 10)}
	store := &memStore{}
	svc := NewService(q, store, Options{BatchSize: 100, FlushInterval: 20 * time.Millisecond, Inactivity: time.Hour, SweepInterval: time.Hour}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	q.events <- event("g1", 0)
	assert.Eventually(t, func() bool { return len(store.stored()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFailedFlushIsRetried(t *testing.T) {
	q := &chanQueue{events: make(chan models.RoomEvent, 10)}
	store := &memStore{fail: true}
	svc := NewService(q, store, Options{BatchSize: 1, FlushInterval: 10 * time.Millisecond, Inactivity: time.Hour, SweepInterval: time.Hour}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	ev := event("g1", 0)
	q.events <- ev
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.stored())

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	assert.Eventually(t, func() bool {
		got := store.stored()
		return len(got) == 1 && got[0].ID == ev.ID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownFlushesBuffered(t *testing.T) {
	q := &chanQueue{events: make(chan models.RoomEvent, 10)}
	store := &memStore{}
	svc := NewService(q, store, Options{BatchSize: 100, FlushInterval: time.Hour, Inactivity: time.Hour, SweepInterval: time.Hour}, quiet())

	q.events <- event("g1", 0)
	q.events <- event("g1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, svc.Run(ctx))
	}()

	assert.Eventually(t, func() bool { return len(q.events) == 0 }, 2*time.Second, 5*time.Millisecond)
	// Give Run a moment to buffer the second pop before stopping it.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Len(t, store.stored(), 2)
}

func TestSweepMarksIdleRooms(t *testing.T) {
	q := &chanQueue{events: make(chan models.RoomEvent)}
	store := &memStore{}
	svc := NewService(q, store, Options{BatchSize: 10, FlushInterval: time.Hour, Inactivity: time.Minute, SweepInterval: 10 * time.Millisecond}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.sweeps >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
