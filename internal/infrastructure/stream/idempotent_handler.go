package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/framework/internal/domain/stream"
	"github.com/erp/framework/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// IdempotentHandler wraps a Handler with processed-event tracking so a
// redelivered message is skipped instead of re-applied. Redelivery after
// a partial-failure timeout is a supported path, so this wrapper is the
// framework-provided way for a handler to meet the idempotence contract.
type IdempotentHandler struct {
	handler stream.Handler
	store   stream.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewIdempotentHandler creates an idempotent handler wrapper. The TTL
// bounds how long processed event IDs are remembered; zero means 24h.
func NewIdempotentHandler(handler stream.Handler, store stream.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *IdempotentHandler {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     ttl,
		logger:  logger,
	}
}

// Handle processes the message unless its event ID was already handled.
// The event is marked processed only after the wrapped handler succeeds,
// so a crash between handling and marking yields a redelivery, never a
// lost message.
func (h *IdempotentHandler) Handle(ctx context.Context, msg *stream.Message) error {
	eventID := msg.EventID.String()

	processed, err := h.store.IsProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check idempotency for event %s: %w", eventID, err)
	}
	if processed {
		h.logger.Debug("skipping duplicate event",
			zap.String("event_id", eventID),
			zap.String("event_type", msg.EventType),
			zap.String("correlation_id", logger.GetCorrelationID(ctx)),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, msg); err != nil {
		return err
	}

	if _, err := h.store.MarkProcessed(ctx, eventID, h.ttl); err != nil {
		// The handler already succeeded; a failed mark only risks one
		// extra (idempotent) invocation on redelivery.
		h.logger.Warn("failed to mark event as processed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
	return nil
}

// Ensure IdempotentHandler implements stream.Handler
var _ stream.Handler = (*IdempotentHandler)(nil)
