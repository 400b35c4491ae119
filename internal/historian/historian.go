// Package historian drains room events from the queue the game server writes
// to and persists them in batches, closing rooms that went quiet.
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
)

// Queue is where room events are read from.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.RoomEvent, error)
}

// Store is where room events are written to.
type Store interface {
	InsertRoomEvents(ctx context.Context, events []models.RoomEvent) error
	MarkIdleRoomsAbandoned(ctx context.Context, idle time.Duration) (int64, error)
}

// Options tune batching and the inactivity sweep.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration
}

const (
	popErrorBackoff = time.Second
	finalFlushLimit = 5 * time.Second
	// pendingFactor bounds how many batches may pile up while the store is down.
	pendingFactor = 50
)

// Service is the historian. Run it once.
type Service struct {
	queue  Queue
	store  Store
	opts   Options
	logger *logrus.Logger

	batch     []models.RoomEvent
	lastFlush time.Time
}

func NewService(queue Queue, store Store, opts Options, logger *logrus.Logger) *Service {
	return &Service{
		queue:  queue,
		store:  store,
		opts:   opts,
		logger: logger,
		batch:  make([]models.RoomEvent, 0, opts.BatchSize),
	}
}

// Run reads until ctx is cancelled, then flushes whatever is buffered.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("historian started")
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.sweepLoop(ctx)
	}()

	s.lastFlush = time.Now()
	for ctx.Err() == nil {
		ev, err := s.queue.Pop(ctx, s.opts.FlushInterval)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Errorf("pop room event: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(popErrorBackoff):
			}
			continue
		}
		if ev != nil {
			s.batch = append(s.batch, *ev)
		}
		if len(s.batch) >= s.opts.BatchSize || time.Since(s.lastFlush) >= s.opts.FlushInterval {
			s.flush(ctx)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushLimit)
	defer cancel()
	s.flush(flushCtx)
	<-sweepDone
	s.logger.Info("historian stopped")
	return nil
}

// flush writes the buffered batch. A failed batch stays buffered and is
// retried on the next flush; inserts skip events already stored.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.store.InsertRoomEvents(ctx, s.batch); err != nil {
		s.logger.Errorf("flush %d room events: %v", len(s.batch), err)
		if limit := s.opts.BatchSize * pendingFactor; len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.logger.Warnf("dropped %d oldest room events", dropped)
		}
		return
	}
	s.logger.Debugf("flushed %d room events", len(s.batch))
	s.batch = s.batch[:0]
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.MarkIdleRoomsAbandoned(ctx, s.opts.Inactivity)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Errorf("sweep idle rooms: %v", err)
				}
				continue
			}
			if n > 0 {
				s.logger.Infof("marked %d rooms abandoned due to inactivity", n)
			}
		}
	}
}
