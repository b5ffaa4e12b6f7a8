package eventbus

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRedisClient(tb testing.TB) redis.UniversalClient {
	tb.Helper()

	addr := os.Getenv("HYPERAGENT_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		tb.Skipf("redis is not available at %s: %v", addr, err)
	}

	tb.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func testPrefix(name string) string {
	return fmt.Sprintf("hyperagent:test:%s:%d:", name, time.Now().UnixNano())
}

func TestRedisGlob(t *testing.T) {
	assert.Equal(t, "*", redisGlob(">"))
	assert.Equal(t, "hyperagent.v1.*", redisGlob("hyperagent.v1.>"))
	assert.Equal(t, "hyperagent.v1.*.g.*", redisGlob("hyperagent.v1.*.g.*"))
}

func TestRedisBus_PublishSubscribeAcrossBuses(t *testing.T) {
	client := requireRedisClient(t)
	prefix := testPrefix("cross")

	pubBus := NewRedisBus(client, prefix)
	defer pubBus.Close()
	subBus := NewRedisBus(client, prefix)
	defer subBus.Close()

	sub, err := subBus.Subscribe(GoalWildcardSubject("g1"), 16)
	require.NoError(t, err)

	// Give the Redis subscription loop a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pubBus.Publish(context.Background(), Subject(DomainCycle, "g2", EventCycleCompleted), []byte("other")))
	require.NoError(t, pubBus.Publish(context.Background(), Subject(DomainCycle, "g1", EventCycleCompleted), []byte("mine")))

	select {
	case msg := <-sub.C():
		assert.Equal(t, Subject(DomainCycle, "g1", EventCycleCompleted), msg.Subject)
		assert.Equal(t, []byte("mine"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis message")
	}
}

func TestRedisBus_CloseStopsSubscriptions(t *testing.T) {
	client := requireRedisClient(t)
	bus := NewRedisBus(client, testPrefix("close"))

	sub, err := bus.Subscribe(AllSubjects(), 4)
	require.NoError(t, err)
	assert.True(t, bus.Healthy())

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.False(t, bus.Healthy())

	_, open := <-sub.C()
	assert.False(t, open)
	assert.ErrorIs(t, bus.Publish(context.Background(), "a.b", nil), ErrBusClosed)
	_, err = bus.Subscribe(">", 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestRedisBus_Validation(t *testing.T) {
	client := requireRedisClient(t)
	bus := NewRedisBus(client, "")
	defer bus.Close()

	assert.Equal(t, DefaultChannelPrefix, bus.channelPrefix)
	_, err := bus.Subscribe("", 1)
	assert.Error(t, err)
	assert.Error(t, bus.Publish(context.Background(), "", nil))
}
