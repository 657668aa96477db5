// Package testutil provides common test utilities for the framework.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/framework/internal/domain/stream"
)

// MemoryLog is an in-memory event log with consumer-group semantics. It
// implements stream.Publisher and exposes claim/acknowledge primitives
// so pipeline and delivery behavior can be tested without Redis.
type MemoryLog struct {
	mu      sync.Mutex
	entries []*logEntry
	nextPos int64
	err     error
}

type logEntry struct {
	position string
	message  *stream.Message
	// per group delivery state
	claimedBy map[string]string    // group -> consumer
	claimedAt map[string]time.Time // group -> claim time
	acked     map[string]bool      // group -> acknowledged
}

// ClaimedMessage is a message claimed by a consumer group.
type ClaimedMessage struct {
	Position string
	Message  *stream.Message
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// SetError makes subsequent Publish calls fail with err.
func (l *MemoryLog) SetError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Publish appends a message and returns its position.
func (l *MemoryLog) Publish(_ context.Context, msg *stream.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return "", l.err
	}

	l.nextPos++
	entry := &logEntry{
		position:  fmt.Sprintf("%d-0", l.nextPos),
		message:   msg,
		claimedBy: make(map[string]string),
		claimedAt: make(map[string]time.Time),
		acked:     make(map[string]bool),
	}
	l.entries = append(l.entries, entry)
	return entry.position, nil
}

// Claim hands up to n unclaimed messages to the consumer, plus messages
// another consumer claimed but left unacknowledged longer than
// reclaimIdle ago.
func (l *MemoryLog) Claim(group, consumer string, n int, reclaimIdle time.Duration) []ClaimedMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var claimed []ClaimedMessage
	for _, e := range l.entries {
		if len(claimed) >= n {
			break
		}
		if e.acked[group] {
			continue
		}
		if owner, ok := e.claimedBy[group]; ok {
			if owner == consumer {
				continue
			}
			if now.Sub(e.claimedAt[group]) < reclaimIdle {
				continue
			}
		}
		e.claimedBy[group] = consumer
		e.claimedAt[group] = now
		claimed = append(claimed, ClaimedMessage{Position: e.position, Message: e.message})
	}
	return claimed
}

// Ack acknowledges a message for a group, removing it from the pending set.
func (l *MemoryLog) Ack(group, position string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.position == position {
			e.acked[group] = true
			return
		}
	}
}

// Release returns a consumer's unacknowledged claims to the pending set.
func (l *MemoryLog) Release(group, consumer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.claimedBy[group] == consumer && !e.acked[group] {
			delete(e.claimedBy, group)
			delete(e.claimedAt, group)
		}
	}
}

// Messages returns all published messages in append order.
func (l *MemoryLog) Messages() []*stream.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]*stream.Message, len(l.entries))
	for i, e := range l.entries {
		msgs[i] = e.message
	}
	return msgs
}

// MessagesFor returns published messages for one entity type in append order.
func (l *MemoryLog) MessagesFor(entityType string) []*stream.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []*stream.Message
	for _, e := range l.entries {
		if e.message.EntityType == entityType {
			msgs = append(msgs, e.message)
		}
	}
	return msgs
}

// PendingCount returns the number of unacknowledged messages for a group.
func (l *MemoryLog) PendingCount(group string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, e := range l.entries {
		if !e.acked[group] {
			count++
		}
	}
	return count
}

// Ensure MemoryLog implements stream.Publisher
var _ stream.Publisher = (*MemoryLog)(nil)
