package stream

import (
	"context"
	"fmt"

	"github.com/erp/framework/internal/domain/stream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TopicPrefix prefixes every per-entity-type stream key.
const TopicPrefix = "events:"

// TopicFor returns the stream key for an entity type.
func TopicFor(entityType string) string {
	return TopicPrefix + entityType
}

// RedisPublisher appends messages to Redis Streams, one stream per
// entity type. XADD acknowledges durability before Publish returns, and
// appends from one publisher for the same entity type land in call
// order.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
	logger *zap.Logger
}

// NewRedisPublisher creates a publisher with approximate per-topic
// retention of maxLen entries.
func NewRedisPublisher(client *redis.Client, maxLen int64, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		maxLen: maxLen,
		logger: logger,
	}
}

// Publish appends one message and returns the log position assigned by
// the stream.
func (p *RedisPublisher) Publish(ctx context.Context, msg *stream.Message) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: TopicFor(msg.EntityType),
		MaxLen: p.maxLen,
		Approx: true,
		Values: msg.ToWire(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append event %s to stream: %w", msg.EventID, err)
	}

	p.logger.Debug("event published",
		zap.String("event_id", msg.EventID.String()),
		zap.String("event_type", msg.EventType),
		zap.String("stream_id", id),
	)
	return id, nil
}

// Ensure RedisPublisher implements stream.Publisher
var _ stream.Publisher = (*RedisPublisher)(nil)
