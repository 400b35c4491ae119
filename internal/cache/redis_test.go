// internal/cache/redis_test.go
package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to REDIS_ADDR (default localhost:6379) or skips.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := ConnectRedis(context.Background(), addr, 0)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRoomEventQueueRoundTrip(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	q := NewRoomEventQueue(rdb, "partycards_test_"+uuid.NewString())
	t.Cleanup(func() { rdb.Del(ctx, q.Name()) })

	first := models.RoomEvent{ID: uuid.New(), GameID: "g1", ActionType: models.ActionRoomCreated, Timestamp: time.Now().UnixMilli()}
	second := models.RoomEvent{
		ID:          uuid.New(),
		GameID:      "g1",
		ActionIndex: 1,
		ActorID:     "p1",
		ActionType:  "playerJoin",
		Payload:     map[string]interface{}{"display_name": "Alice"},
		Timestamp:   time.Now().UnixMilli(),
	}
	require.NoError(t, q.Record(ctx, first))
	require.NoError(t, q.Record(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.ActorID)
	assert.Equal(t, "Alice", got.Payload["display_name"])
}

func TestPopEmptyQueue(t *testing.T) {
	rdb := testClient(t)
	q := NewRoomEventQueue(rdb, "partycards_test_"+uuid.NewString())

	got, err := q.Pop(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDefaultQueueName(t *testing.T) {
	q := NewRoomEventQueue(nil, "")
	assert.Equal(t, DefaultQueueName, q.Name())
}
