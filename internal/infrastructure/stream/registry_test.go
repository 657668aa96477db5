package stream

import (
	"testing"

	"github.com/erp/framework/tests/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("routes by event type", func(t *testing.T) {
		registry := NewHandlerRegistry()
		created := testutil.NewMockHandler()
		updated := testutil.NewMockHandler()

		registry.Register("partner.created", created)
		registry.Register("partner.updated", updated)

		handlers := registry.GetHandlers("partner.created")
		assert.Len(t, handlers, 1)
		assert.Empty(t, registry.GetHandlers("partner.deleted"))
	})

	t.Run("wildcard handlers receive every event type", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.Register("partner.created", testutil.NewMockHandler())
		registry.Register("", testutil.NewMockHandler())

		assert.Len(t, registry.GetHandlers("partner.created"), 2)
		assert.Len(t, registry.GetHandlers("order.created"), 1)
	})

	t.Run("event types exclude the wildcard", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.Register("partner.created", testutil.NewMockHandler())
		registry.Register("", testutil.NewMockHandler())

		types := registry.EventTypes()
		assert.Equal(t, []string{"partner.created"}, types)
	})

	t.Run("multiple handlers per type stack", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.Register("partner.created", testutil.NewMockHandler())
		registry.Register("partner.created", testutil.NewMockHandler())

		assert.Len(t, registry.GetHandlers("partner.created"), 2)
	})
}
