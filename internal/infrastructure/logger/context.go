package logger

import (
	"context"

	"github.com/erp/framework/internal/domain/tenant"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// CorrelationIDKey is the context key for the correlation ID
	CorrelationIDKey contextKey = "correlation_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger
// if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithTenantContext enriches a logger with the tenant, actor, and
// correlation fields of an operation and attaches it to the context.
// Every log line produced downstream of a mutation carries these three
// identifiers.
func WithTenantContext(ctx context.Context, logger *zap.Logger, tc tenant.Context) (context.Context, *zap.Logger) {
	enriched := logger.With(
		zap.String("tenant_id", tc.TenantID.String()),
		zap.String("actor_id", tc.ActorID.String()),
		zap.String("correlation_id", tc.CorrelationID.String()),
	)
	ctx = context.WithValue(ctx, CorrelationIDKey, tc.CorrelationID.String())
	return WithContext(ctx, enriched), enriched
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
