package events

import (
	"context"
	"fmt"
	"time"

	commonredis "roomdesk/common/redis"
	"roomdesk/internal/mutation"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamPublisher appends successful mutations to a Redis stream.
type StreamPublisher struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	origin  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64, origin string, logger *zap.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		origin:  origin,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// OnMutation implements mutation.Listener.
func (p *StreamPublisher) OnMutation(ev mutation.Event) {
	if !ev.Succeeded() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	id, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, NewMessage(p.origin, ev))
	if err != nil {
		p.logger.Warn("Failed to append room event to stream",
			zap.String("stream", p.stream),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("Room event appended", zap.String("stream", p.stream), zap.String("message_id", id))
}

// StreamConsumer reads the room event stream and invalidates the local cache
// for events from other processes. Each process uses its own consumer group
// so every process sees every event.
type StreamConsumer struct {
	client    *redis.Client
	cache     Invalidator
	stream    string
	group     string
	consumer  string
	origin    string
	batchSize int64
	block     time.Duration
	logger    *zap.Logger
}

func NewStreamConsumer(client *redis.Client, cache Invalidator, stream, origin string, logger *zap.Logger) *StreamConsumer {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamConsumer{
		client:    client,
		cache:     cache,
		stream:    stream,
		group:     "roomdesk-" + origin,
		consumer:  origin,
		origin:    origin,
		batchSize: 50,
		block:     2 * time.Second,
		logger:    logger,
	}
}

// Start 启动消费循环，ctx 取消时返回
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := commonredis.CreateConsumerGroup(ctx, c.client, c.stream, c.group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	c.logger.Info("Room event consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.group),
	)

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume room events", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

// Poll reads one batch and returns how many remote events invalidated the cache.
func (c *StreamConsumer) Poll(ctx context.Context) (int, error) {
	msgs, err := commonredis.ReadFromStream(ctx, c.client, c.stream, c.group, c.consumer, c.batchSize, c.block)
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	applied := 0
	for _, msg := range msgs {
		ok, err := c.process(ctx, msg)
		if err != nil {
			// malformed entries are acked too, they would never parse
			c.logger.Warn("Failed to process room event", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if ok {
			applied++
		}
		if err := commonredis.AckMessage(ctx, c.client, c.stream, c.group, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	return applied, nil
}

func (c *StreamConsumer) process(ctx context.Context, msg commonredis.StreamMessage) (bool, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return false, fmt.Errorf("missing data field")
	}
	m, err := decodeMessage([]byte(raw))
	if err != nil {
		return false, err
	}
	return applyRemote(ctx, c.cache, c.origin, m)
}
