package feed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set RELAYCHAT_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real Redis.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("RELAYCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RELAYCHAT_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	prefix := "relaychat-test-" + time.Now().Format("150405.000000000")
	broker, err := DialRedis(ctx, &redis.Options{Addr: addr}, prefix, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func TestRedisPublishSubscribe(t *testing.T) {
	broker := newTestRedis(t)
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()

	other, err := broker.Subscribe(ctx, "bob")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, broker.Publish(ctx, Update{UserID: "alice", Count: 7}))
	assert.Equal(t, Update{UserID: "alice", Count: 7}, receive(t, sub))

	select {
	case u := <-other.C():
		t.Fatalf("bob got foreign update %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisSubscriptionClose(t *testing.T) {
	broker := newTestRedis(t)
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed")
	}
}
