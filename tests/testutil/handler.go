package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/erp/framework/internal/domain/stream"
)

// MockHandler is a stream.Handler that records the messages it handled
// and can be made to fail for the first N invocations.
type MockHandler struct {
	mu        sync.Mutex
	handled   []*stream.Message
	failFirst int
	calls     int
	err       error
}

// NewMockHandler creates a mock handler.
func NewMockHandler() *MockHandler {
	return &MockHandler{}
}

// FailFirst makes the handler return err for its first n invocations.
func (h *MockHandler) FailFirst(n int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failFirst = n
	h.err = err
}

// Handle records the message, failing while configured to.
func (h *MockHandler) Handle(_ context.Context, msg *stream.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failFirst {
		return h.err
	}
	h.handled = append(h.handled, msg)
	return nil
}

// Handled returns the successfully handled messages.
func (h *MockHandler) Handled() []*stream.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]*stream.Message, len(h.handled))
	copy(result, h.handled)
	return result
}

// Calls returns the total number of invocations, failures included.
func (h *MockHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// MemoryIdempotencyStore is an in-memory stream.IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	processed map[string]time.Time
}

// NewMemoryIdempotencyStore creates an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{processed: make(map[string]time.Time)}
}

// MarkProcessed marks an event as processed.
func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry, ok := s.processed[eventID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.processed[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed checks whether an event has been processed.
func (s *MemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.processed[eventID]
	return ok && time.Now().Before(expiry), nil
}

// Close is a no-op.
func (s *MemoryIdempotencyStore) Close() error {
	return nil
}

// Ensure the test doubles implement the domain interfaces
var (
	_ stream.Handler          = (*MockHandler)(nil)
	_ stream.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
