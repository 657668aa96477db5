package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/erp/framework/internal/domain/stream"
	"github.com/erp/framework/internal/domain/tenant"
	"github.com/erp/framework/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamClient is the subset of redis stream commands the consumer
// runtime issues. *redis.Client satisfies it.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// ConsumerConfig holds configuration for one consumer group runtime.
type ConsumerConfig struct {
	Group          string        // consumer group name
	Consumer       string        // this consumer's name within the group
	EntityTypes    []string      // topics to consume, in addition to those derived from registered handlers
	BatchSize      int           // max messages claimed per poll
	BlockTimeout   time.Duration // how long a poll blocks before returning empty
	ReclaimTimeout time.Duration // min idle time before a pending message is reclaimed from a crashed consumer
}

// DefaultConsumerConfig returns defaults suitable for development.
func DefaultConsumerConfig(group, consumer string) ConsumerConfig {
	return ConsumerConfig{
		Group:          group,
		Consumer:       consumer,
		BatchSize:      50,
		BlockTimeout:   5 * time.Second,
		ReclaimTimeout: time.Minute,
	}
}

// RedisConsumer claims messages from Redis Streams under a named
// consumer group and dispatches them to registered handlers.
//
// A message is acknowledged only after every handler for its event type
// returned success; a message with no registered handler is acknowledged
// immediately. A handler error leaves the message in the group's pending
// set, where it becomes eligible for reclaim once idle longer than the
// reclaim timeout. The runtime enforces no retry cap; a handler wanting
// bounded retries tracks attempts in its own state.
type RedisConsumer struct {
	client   StreamClient
	registry *HandlerRegistry
	cfg      ConsumerConfig
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRedisConsumer creates a consumer runtime for one group.
func NewRedisConsumer(client StreamClient, cfg ConsumerConfig, logger *zap.Logger) *RedisConsumer {
	return &RedisConsumer{
		client:   client,
		registry: NewHandlerRegistry(),
		cfg:      cfg,
		logger:   logger.With(zap.String("consumer_group", cfg.Group)),
	}
}

// RegisterHandler registers a handler for an event type. Must be called
// before Start.
func (c *RedisConsumer) RegisterHandler(eventType string, handler stream.Handler) {
	c.registry.Register(eventType, handler)
}

// Start launches one consume loop per topic and returns.
func (c *RedisConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	topics := c.topics()
	if len(topics) == 0 {
		c.logger.Warn("no entity types configured and no handlers registered, nothing to consume")
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	for _, topic := range topics {
		if err := c.ensureGroup(ctx, topic); err != nil {
			cancel()
			return err
		}
		c.wg.Add(1)
		go c.consumeLoop(loopCtx, topic)
	}

	c.started = true
	c.logger.Info("consumer runtime started",
		zap.Strings("topics", topics),
		zap.Int("batch_size", c.cfg.BatchSize),
	)
	return nil
}

// Stop cancels the consume loops and waits for in-flight dispatch to
// finish. Claims that were not acknowledged stay in the pending set for
// another consumer to pick up.
func (c *RedisConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("consumer runtime stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// topics returns the union of configured entity types and those derived
// from registered event types ("partner.updated" consumes topic
// "events:partner").
func (c *RedisConsumer) topics() []string {
	seen := make(map[string]bool)
	var topics []string

	add := func(entityType string) {
		if entityType == "" || seen[entityType] {
			return
		}
		seen[entityType] = true
		topics = append(topics, TopicFor(entityType))
	}

	for _, et := range c.cfg.EntityTypes {
		add(et)
	}
	for _, eventType := range c.registry.EventTypes() {
		entityType, _, _ := strings.Cut(eventType, ".")
		add(entityType)
	}
	return topics
}

// ensureGroup creates the consumer group, creating the stream if it does
// not exist yet. An already existing group is fine.
func (c *RedisConsumer) ensureGroup(ctx context.Context, topic string) error {
	err := c.client.XGroupCreateMkStream(ctx, topic, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// consumeLoop is one topic's claim/process/acknowledge cycle.
func (c *RedisConsumer) consumeLoop(ctx context.Context, topic string) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		// Reclaim messages another consumer claimed but never
		// acknowledged, once they have been idle past the timeout.
		c.reclaim(ctx, topic)

		entries, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{topic, ">"},
			Count:    int64(c.cfg.BatchSize),
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to read from stream",
				zap.String("topic", topic),
				zap.Error(err),
			)
			// Back off so a broken connection does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.BlockTimeout):
			}
			continue
		}

		for _, entry := range entries {
			for _, msg := range entry.Messages {
				c.process(ctx, topic, msg)
			}
		}
	}
}

// reclaim takes over pending messages idle longer than the reclaim
// timeout and runs them through the normal dispatch path.
func (c *RedisConsumer) reclaim(ctx context.Context, topic string) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ReclaimTimeout,
		Start:    "0-0",
		Count:    int64(c.cfg.BatchSize),
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			c.logger.Error("failed to reclaim pending messages",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
		return
	}

	for _, msg := range messages {
		c.process(ctx, topic, msg)
	}
}

// process dispatches one claimed log entry and acknowledges it when
// every handler succeeded.
func (c *RedisConsumer) process(ctx context.Context, topic string, raw redis.XMessage) {
	msg, err := stream.FromWire(raw.Values)
	if err != nil {
		// A malformed entry can never succeed; acknowledge it so it does
		// not poison the pending set forever.
		c.logger.Error("discarding malformed stream entry",
			zap.String("topic", topic),
			zap.String("stream_id", raw.ID),
			zap.Error(err),
		)
		c.ack(ctx, topic, raw.ID)
		return
	}

	handlers := c.registry.GetHandlers(msg.EventType)
	if len(handlers) == 0 {
		// Advisory fan-out: not every consumer subscribes to every type.
		c.ack(ctx, topic, raw.ID)
		return
	}

	// Handlers see a context carrying the originating tenant, actor and
	// correlation identifiers, so their log lines join the mutation's trail.
	hctx, _ := logger.WithTenantContext(ctx, c.logger, tenant.Context{
		TenantID:      msg.TenantID,
		ActorID:       msg.ActorID,
		CorrelationID: msg.CorrelationID,
	})

	for _, handler := range handlers {
		if err := c.dispatch(hctx, handler, msg); err != nil {
			// Leave unacknowledged; the message becomes eligible for
			// reclaim after the timeout.
			c.logger.Warn("handler failed, message left pending",
				zap.String("event_type", msg.EventType),
				zap.String("event_id", msg.EventID.String()),
				zap.String("tenant_id", msg.TenantID.String()),
				zap.Error(err),
			)
			return
		}
	}

	c.ack(ctx, topic, raw.ID)
}

// dispatch invokes one handler, converting a panic into an error so one
// bad handler cannot crash the consumer loop.
func (c *RedisConsumer) dispatch(ctx context.Context, handler stream.Handler, msg *stream.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked",
				zap.String("event_type", msg.EventType),
				zap.Any("panic", r),
			)
			err = &panicError{value: r}
		}
	}()
	return handler.Handle(ctx, msg)
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	if err := c.client.XAck(ctx, topic, c.cfg.Group, id).Err(); err != nil && ctx.Err() == nil {
		c.logger.Error("failed to acknowledge message",
			zap.String("topic", topic),
			zap.String("stream_id", id),
			zap.Error(err),
		)
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return "handler panic"
}

// Ensure RedisConsumer implements stream.Runtime
var _ stream.Runtime = (*RedisConsumer)(nil)
