package stream

import (
	"context"
	"time"
)

// Publisher appends messages to the durable event log. Publish returns
// only after the log has acknowledged the append, not when the message
// is merely queued in a client buffer. Messages from a single publisher
// instance for the same entity type are appended in call order; no
// ordering is promised across entity types or publisher instances.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) (string, error)
}

// Handler processes delivered messages. Handlers must be idempotent:
// redelivery after a partial failure is a supported path, not an
// exceptional one. Every handler must re-check TenantID on each message
// rather than trusting topic-level separation.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Runtime is the consumer-side lifecycle exposed to collaborating
// services: register handlers before Start, Stop releases in-flight
// claims back to the pending set.
type Runtime interface {
	RegisterHandler(eventType string, handler Handler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// IdempotencyStore records processed event IDs so a handler wrapped for
// idempotence can skip redeliveries it already handled.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL. Returns true
	// if the event was newly marked, false if already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// IsProcessed checks whether an event has already been processed.
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Close releases the store's resources.
	Close() error
}
