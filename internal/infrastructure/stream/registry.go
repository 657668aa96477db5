package stream

import (
	"sync"

	"github.com/erp/framework/internal/domain/stream"
)

// HandlerRegistry manages event handler registrations
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]stream.Handler // eventType -> handlers
	wildcard []stream.Handler            // handlers for all events
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]stream.Handler),
		wildcard: make([]stream.Handler, 0),
	}
}

// Register adds a handler for an event type. An empty event type
// registers a wildcard handler that receives all events.
func (r *HandlerRegistry) Register(eventType string, handler stream.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if eventType == "" {
		r.wildcard = append(r.wildcard, handler)
		return
	}
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// GetHandlers returns all handlers for an event type, wildcard handlers
// included.
func (r *HandlerRegistry) GetHandlers(eventType string) []stream.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeHandlers := r.handlers[eventType]
	result := make([]stream.Handler, 0, len(typeHandlers)+len(r.wildcard))
	result = append(result, typeHandlers...)
	result = append(result, r.wildcard...)
	return result
}

// EventTypes returns all event types with at least one specific handler.
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
