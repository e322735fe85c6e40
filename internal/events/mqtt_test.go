package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"roomdesk/common/mqtt"
	"roomdesk/internal/domain"
	"roomdesk/internal/mutation"
	"roomdesk/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBroker 进程内 MQTT：Publish 直接投递给订阅者
type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string][]mqtt.MessageHandler
	failWith  error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][][]byte{}, handlers: map[string][]mqtt.MessageHandler{}}
}

func (b *fakeBroker) Publish(topic string, _ bool, payload []byte) error {
	b.mu.Lock()
	if b.failWith != nil {
		b.mu.Unlock()
		return b.failWith
	}
	b.published[topic] = append(b.published[topic], payload)
	hs := append([]mqtt.MessageHandler(nil), b.handlers[topic]...)
	b.mu.Unlock()
	for _, h := range hs {
		_ = h(topic, payload)
	}
	return nil
}

func (b *fakeBroker) Subscribe(topic string, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return nil
}

type countingInvalidator struct {
	mu   sync.Mutex
	tags []string
}

func (c *countingInvalidator) Invalidate(_ context.Context, tag string) (int, error) {
	c.mu.Lock()
	c.tags = append(c.tags, tag)
	c.mu.Unlock()
	return 1, nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tags)
}

func createdEvent() mutation.Event {
	room := domain.Room{ID: "r1", RoomNumber: "101", Type: domain.RoomTypeSuite, Price: 199.99, Status: domain.RoomStatusAvailable}
	return mutation.Event{Kind: mutation.KindCreate, RoomID: room.ID, Room: &room, Message: mutation.MsgCreated, At: time.Now()}
}

func TestMQTTPublisher_PublishesSuccessesOnly(t *testing.T) {
	b := newFakeBroker()
	p := NewMQTTPublisher(b, "", "proc-a", zap.NewNop())

	p.OnMutation(createdEvent())
	p.OnMutation(mutation.Event{Kind: mutation.KindDelete, RoomID: "r2", Err: errors.New("Room not found"), Message: "Room not found"})

	require.Len(t, b.published[DefaultTopic], 1)
	var m Message
	require.NoError(t, json.Unmarshal(b.published[DefaultTopic][0], &m))
	assert.Equal(t, "proc-a", m.Origin)
	assert.Equal(t, mutation.KindCreate, m.Kind)
	assert.Equal(t, "r1", m.RoomID)
	require.NotNil(t, m.Room)
	assert.Equal(t, "101", m.Room.RoomNumber)
}

func TestMQTTPublisher_BrokerFailureIsSwallowed(t *testing.T) {
	b := newFakeBroker()
	b.failWith = errors.New("not connected")
	p := NewMQTTPublisher(b, "t", "proc-a", zap.NewNop())

	assert.NotPanics(t, func() { p.OnMutation(createdEvent()) })
	assert.Empty(t, b.published["t"])
}

func TestSubscribeInvalidations_IgnoresOwnOrigin(t *testing.T) {
	b := newFakeBroker()
	local := &countingInvalidator{}
	remote := &countingInvalidator{}
	require.NoError(t, SubscribeInvalidations(b, "", "proc-a", local, zap.NewNop()))
	require.NoError(t, SubscribeInvalidations(b, "", "proc-b", remote, zap.NewNop()))

	NewMQTTPublisher(b, "", "proc-a", zap.NewNop()).OnMutation(createdEvent())

	assert.Zero(t, local.count())
	assert.Equal(t, 1, remote.count())
	assert.Equal(t, []string{querycache.TagRooms}, remote.tags)
}

func TestSubscribeInvalidations_RejectsGarbage(t *testing.T) {
	b := newFakeBroker()
	inv := &countingInvalidator{}
	require.NoError(t, SubscribeInvalidations(b, "t", "proc-a", inv, zap.NewNop()))

	err := b.handlers["t"][0]("t", []byte("{not json"))
	require.Error(t, err)
	assert.Zero(t, inv.count())
}
