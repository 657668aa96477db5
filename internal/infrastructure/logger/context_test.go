package logger

import (
	"context"
	"testing"

	"github.com/erp/framework/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContext(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx := WithContext(context.Background(), logger)

	assert.NotNil(t, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	// Should return a no-op logger
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithTenantContext(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)

	tc := tenant.NewContext(uuid.New(), uuid.New())
	ctx, enriched := WithTenantContext(context.Background(), logger, tc)

	assert.NotNil(t, enriched)
	assert.Equal(t, tc.CorrelationID.String(), GetCorrelationID(ctx))
	assert.Same(t, enriched, FromContext(ctx))
}

func TestGetCorrelationID_NotFound(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
}
