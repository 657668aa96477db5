package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/framework/internal/domain/stream"
	"github.com/erp/framework/internal/domain/tenant"
	"github.com/erp/framework/internal/infrastructure/logger"
	"github.com/erp/framework/tests/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStreamClient is an in-memory StreamClient recording group creation
// and acknowledgements, and serving canned pending messages to XAutoClaim.
type fakeStreamClient struct {
	mu       sync.Mutex
	groups   map[string]string // topic -> group
	groupErr error
	acked    map[string][]string // topic -> acknowledged stream ids
	claimed  map[string][]redis.XMessage
	claimErr error
}

func newFakeStreamClient() *fakeStreamClient {
	return &fakeStreamClient{
		groups:  make(map[string]string),
		acked:   make(map[string][]string),
		claimed: make(map[string][]redis.XMessage),
	}
}

func (f *fakeStreamClient) XGroupCreateMkStream(ctx context.Context, topic, group, start string) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx)
	if f.groupErr != nil {
		cmd.SetErr(f.groupErr)
		return cmd
	}
	f.groups[topic] = group
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeStreamClient) XReadGroup(ctx context.Context, _ *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	cmd := redis.NewXStreamSliceCmd(ctx)
	cmd.SetErr(redis.Nil)
	return cmd
}

func (f *fakeStreamClient) XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewXAutoClaimCmd(ctx)
	if f.claimErr != nil {
		cmd.SetErr(f.claimErr)
		return cmd
	}
	cmd.SetVal(f.claimed[a.Stream], "0-0")
	return cmd
}

func (f *fakeStreamClient) XAck(ctx context.Context, topic, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked[topic] = append(f.acked[topic], ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (f *fakeStreamClient) ackedIDs(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked[topic]...)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "events:partner", TopicFor("partner"))
}

func TestRedisConsumer_Topics(t *testing.T) {
	t.Run("derives topics from registered event types", func(t *testing.T) {
		c := NewRedisConsumer(nil, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())
		c.RegisterHandler("partner.created", testutil.NewMockHandler())
		c.RegisterHandler("partner.updated", testutil.NewMockHandler())
		c.RegisterHandler("order.created", testutil.NewMockHandler())

		topics := c.topics()

		assert.ElementsMatch(t, []string{"events:partner", "events:order"}, topics)
	})

	t.Run("configured entity types are merged in", func(t *testing.T) {
		cfg := DefaultConsumerConfig("billing", "worker-1")
		cfg.EntityTypes = []string{"product", "partner"}
		c := NewRedisConsumer(nil, cfg, zap.NewNop())
		c.RegisterHandler("partner.created", testutil.NewMockHandler())

		topics := c.topics()

		assert.ElementsMatch(t, []string{"events:product", "events:partner"}, topics)
	})

	t.Run("wildcard handlers add no topic on their own", func(t *testing.T) {
		c := NewRedisConsumer(nil, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())
		c.RegisterHandler("", testutil.NewMockHandler())

		assert.Empty(t, c.topics())
	})
}

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, *stream.Message) error {
	panic("boom")
}

func TestRedisConsumer_DispatchRecoversPanics(t *testing.T) {
	c := NewRedisConsumer(nil, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())
	msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)

	err := c.dispatch(context.Background(), panickingHandler{}, msg)

	require.Error(t, err)
}

func wireEntry(t *testing.T, id string, msg *stream.Message) redis.XMessage {
	t.Helper()
	return redis.XMessage{ID: id, Values: msg.ToWire()}
}

func TestRedisConsumer_Process(t *testing.T) {
	ctx := context.Background()
	topic := TopicFor("partner")

	newConsumer := func(client StreamClient) *RedisConsumer {
		return NewRedisConsumer(client, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())
	}

	t.Run("acknowledges after every handler succeeded", func(t *testing.T) {
		client := newFakeStreamClient()
		c := newConsumer(client)
		first := testutil.NewMockHandler()
		second := testutil.NewMockHandler()
		c.RegisterHandler("partner.created", first)
		c.RegisterHandler("partner.created", second)

		msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)
		c.process(ctx, topic, wireEntry(t, "1-0", msg))

		assert.Len(t, first.Handled(), 1)
		assert.Len(t, second.Handled(), 1)
		assert.Equal(t, []string{"1-0"}, client.ackedIDs(topic))
	})

	t.Run("handler failure leaves the message pending", func(t *testing.T) {
		client := newFakeStreamClient()
		c := newConsumer(client)
		handler := testutil.NewMockHandler()
		handler.FailFirst(1, errors.New("downstream unavailable"))
		c.RegisterHandler("partner.created", handler)

		msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)
		c.process(ctx, topic, wireEntry(t, "1-0", msg))

		assert.Empty(t, client.ackedIDs(topic))

		// the redelivered claim succeeds and is acknowledged
		c.process(ctx, topic, wireEntry(t, "1-0", msg))
		assert.Len(t, handler.Handled(), 1)
		assert.Equal(t, []string{"1-0"}, client.ackedIDs(topic))
	})

	t.Run("one failing handler blocks the acknowledgement", func(t *testing.T) {
		client := newFakeStreamClient()
		c := newConsumer(client)
		ok := testutil.NewMockHandler()
		failing := testutil.NewMockHandler()
		failing.FailFirst(1, errors.New("downstream unavailable"))
		c.RegisterHandler("partner.created", ok)
		c.RegisterHandler("partner.created", failing)

		msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)
		c.process(ctx, topic, wireEntry(t, "1-0", msg))

		assert.Empty(t, client.ackedIDs(topic))
	})

	t.Run("a message with no handler is acknowledged immediately", func(t *testing.T) {
		client := newFakeStreamClient()
		c := newConsumer(client)
		c.RegisterHandler("order.created", testutil.NewMockHandler())

		msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)
		c.process(ctx, topic, wireEntry(t, "1-0", msg))

		assert.Equal(t, []string{"1-0"}, client.ackedIDs(topic))
	})

	t.Run("a malformed entry is acknowledged and discarded", func(t *testing.T) {
		client := newFakeStreamClient()
		c := newConsumer(client)
		handler := testutil.NewMockHandler()
		c.RegisterHandler("partner.created", handler)

		raw := redis.XMessage{ID: "1-0", Values: map[string]any{"event_id": "not a uuid"}}
		c.process(ctx, topic, raw)

		assert.Empty(t, handler.Handled())
		assert.Equal(t, []string{"1-0"}, client.ackedIDs(topic))
	})

	t.Run("handlers see the message's correlation id in context", func(t *testing.T) {
		client := newFakeStreamClient()
		c := newConsumer(client)

		var seen string
		c.RegisterHandler("partner.created", stream.HandlerFunc(func(hctx context.Context, _ *stream.Message) error {
			seen = logger.GetCorrelationID(hctx)
			return nil
		}))

		msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)
		c.process(ctx, topic, wireEntry(t, "1-0", msg))

		assert.Equal(t, msg.CorrelationID.String(), seen)
	})
}

func TestRedisConsumer_Reclaim(t *testing.T) {
	ctx := context.Background()
	topic := TopicFor("partner")

	t.Run("reclaimed pending messages run through dispatch", func(t *testing.T) {
		client := newFakeStreamClient()
		msg := stream.NewMessage(tenant.NewContext(uuid.New(), uuid.New()), "partner", "created", uuid.New(), nil)
		client.claimed[topic] = []redis.XMessage{wireEntry(t, "1-0", msg)}

		c := NewRedisConsumer(client, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())
		handler := testutil.NewMockHandler()
		c.RegisterHandler("partner.created", handler)

		c.reclaim(ctx, topic)

		require.Len(t, handler.Handled(), 1)
		assert.Equal(t, msg.EventID, handler.Handled()[0].EventID)
		assert.Equal(t, []string{"1-0"}, client.ackedIDs(topic))
	})

	t.Run("a claim error is swallowed", func(t *testing.T) {
		client := newFakeStreamClient()
		client.claimErr = errors.New("connection reset")

		c := NewRedisConsumer(client, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())
		c.reclaim(ctx, topic)

		assert.Empty(t, client.ackedIDs(topic))
	})
}

func TestRedisConsumer_StartStop(t *testing.T) {
	t.Run("creates a group per topic", func(t *testing.T) {
		client := newFakeStreamClient()
		cfg := DefaultConsumerConfig("billing", "worker-1")
		cfg.EntityTypes = []string{"partner", "order"}
		c := NewRedisConsumer(client, cfg, zap.NewNop())

		require.NoError(t, c.Start(context.Background()))
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, c.Stop(stopCtx))
		}()

		client.mu.Lock()
		defer client.mu.Unlock()
		assert.Equal(t, "billing", client.groups["events:partner"])
		assert.Equal(t, "billing", client.groups["events:order"])
	})

	t.Run("an already existing group is tolerated", func(t *testing.T) {
		client := newFakeStreamClient()
		client.groupErr = errors.New("BUSYGROUP Consumer Group name already exists")
		c := NewRedisConsumer(client, DefaultConsumerConfig("billing", "worker-1"), zap.NewNop())

		require.NoError(t, c.ensureGroup(context.Background(), TopicFor("partner")))
	})

	t.Run("other group creation errors abort the start", func(t *testing.T) {
		client := newFakeStreamClient()
		client.groupErr = errors.New("connection reset")
		cfg := DefaultConsumerConfig("billing", "worker-1")
		cfg.EntityTypes = []string{"partner"}
		c := NewRedisConsumer(client, cfg, zap.NewNop())

		require.Error(t, c.Start(context.Background()))
	})
}
