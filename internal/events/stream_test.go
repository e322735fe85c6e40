package events

import (
	"context"
	"testing"
	"time"

	"roomdesk/common/config"
	commonredis "roomdesk/common/redis"
	"roomdesk/internal/mutation"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStreamClient(t *testing.T) *commonredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c := commonredis.NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = commonredis.Close(c) })
	return c
}

func TestStreamPublisher_AppendsSuccesses(t *testing.T) {
	client := newStreamClient(t)
	p := NewStreamPublisher(client, "", 100, "proc-a", zap.NewNop())

	p.OnMutation(createdEvent())
	p.OnMutation(mutation.Event{Kind: mutation.KindCreate, Err: assert.AnError, Message: "boom"})

	n, err := client.XLen(context.Background(), DefaultStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStreamConsumer_InvalidatesForRemoteEvents(t *testing.T) {
	client := newStreamClient(t)
	ctx := context.Background()

	inv := &countingInvalidator{}
	consumer := NewStreamConsumer(client, inv, "", "proc-b", zap.NewNop())
	consumer.block = 50 * time.Millisecond
	require.NoError(t, commonredis.CreateConsumerGroup(ctx, client, DefaultStream, consumer.group))

	NewStreamPublisher(client, "", 0, "proc-a", zap.NewNop()).OnMutation(createdEvent())
	NewStreamPublisher(client, "", 0, "proc-b", zap.NewNop()).OnMutation(createdEvent())
	// malformed entry is acked and skipped
	_, err := client.XAdd(ctx, &redis.XAddArgs{Stream: DefaultStream, Values: map[string]interface{}{"data": "{bad"}}).Result()
	require.NoError(t, err)

	applied, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, inv.count())

	// everything was acked
	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{Stream: DefaultStream, Group: consumer.group, Start: "-", End: "+", Count: 10}).Result()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStreamConsumer_StartStopsOnCancel(t *testing.T) {
	client := newStreamClient(t)
	inv := &countingInvalidator{}
	consumer := NewStreamConsumer(client, inv, "", "proc-b", zap.NewNop())
	consumer.block = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	NewStreamPublisher(client, "", 0, "proc-a", zap.NewNop()).OnMutation(createdEvent())
	require.Eventually(t, func() bool { return inv.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
