// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room events.
const DefaultQueueName = "partycards_room_events"

// ConnectRedis opens a client for addr/db and checks it with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RoomEventQueue is a Redis list of JSON encoded room events. The game server
// pushes to the tail, the historian pops from the head.
type RoomEventQueue struct {
	rdb  *redis.Client
	name string
}

// NewRoomEventQueue binds a queue to a client. An empty name uses DefaultQueueName.
func NewRoomEventQueue(rdb *redis.Client, name string) *RoomEventQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &RoomEventQueue{rdb: rdb, name: name}
}

// Name returns the Redis key of the queue.
func (q *RoomEventQueue) Name() string { return q.name }

// Record serializes ev to JSON and pushes it onto the queue.
func (q *RoomEventQueue) Record(ctx context.Context, ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop waits up to timeout for the next event. It returns (nil, nil) when the
// queue stayed empty.
func (q *RoomEventQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RoomEvent, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var ev models.RoomEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("invalid room event: %w", err)
	}
	return &ev, nil
}

// Len returns the number of queued events.
func (q *RoomEventQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
