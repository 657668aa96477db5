package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/framework/internal/domain/shared"
	"github.com/google/uuid"
)

// EmissionKind distinguishes which side effect failed.
type EmissionKind string

const (
	EmissionAudit EmissionKind = "audit"
	EmissionEvent EmissionKind = "event"
)

// EmissionStatus is the replay lifecycle state of a journaled failure.
type EmissionStatus string

const (
	EmissionStatusPending EmissionStatus = "PENDING"
	EmissionStatusFailed  EmissionStatus = "FAILED"
	EmissionStatusSent    EmissionStatus = "SENT"
	EmissionStatusDead    EmissionStatus = "DEAD"
)

// Default replay configuration
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

// FailedEmission journals an audit or event side effect that could not
// be emitted after its business write committed. The business mutation
// already succeeded, so the failure is recorded with enough context to
// replay it instead of being propagated to the caller.
type FailedEmission struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Kind          EmissionKind
	EntityType    string
	EntityID      uuid.UUID
	CorrelationID uuid.UUID
	Payload       []byte
	Status        EmissionStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewFailedEmission journals one failed side effect.
func NewFailedEmission(tenantID uuid.UUID, kind EmissionKind, entityType string, entityID, correlationID uuid.UUID, payload []byte, cause error) *FailedEmission {
	now := time.Now()
	return &FailedEmission{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Kind:          kind,
		EntityType:    entityType,
		EntityID:      entityID,
		CorrelationID: correlationID,
		Payload:       payload,
		Status:        EmissionStatusPending,
		RetryCount:    0,
		MaxRetries:    DefaultMaxRetries,
		LastError:     cause.Error(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkSent marks the emission as successfully replayed.
func (f *FailedEmission) MarkSent() {
	now := time.Now()
	f.Status = EmissionStatusSent
	f.ProcessedAt = &now
	f.UpdatedAt = now
}

// MarkFailed records a replay failure and schedules the next attempt
// with exponential backoff doubling from baseBackoff: 1s, 2s, 4s, 8s, ...
// A non-positive baseBackoff falls back to DefaultBaseBackoff.
func (f *FailedEmission) MarkFailed(errMsg string, baseBackoff time.Duration) {
	if baseBackoff <= 0 {
		baseBackoff = DefaultBaseBackoff
	}

	f.RetryCount++
	f.LastError = errMsg
	f.UpdatedAt = time.Now()

	if f.RetryCount >= f.MaxRetries {
		f.Status = EmissionStatusDead
	} else {
		f.Status = EmissionStatusFailed
		backoff := baseBackoff * time.Duration(1<<uint(f.RetryCount-1))
		nextRetry := time.Now().Add(backoff)
		f.NextRetryAt = &nextRetry
	}
}

// ResetForRetry resets a dead entry for another replay round, used by
// manual reconciliation.
func (f *FailedEmission) ResetForRetry() error {
	if f.Status != EmissionStatusDead {
		return fmt.Errorf("%w: can only reset dead emissions", shared.ErrInvalidState)
	}
	f.Status = EmissionStatusPending
	f.RetryCount = 0
	f.LastError = ""
	f.NextRetryAt = nil
	f.UpdatedAt = time.Now()
	return nil
}

// IsDead reports whether the entry exhausted its retries.
func (f *FailedEmission) IsDead() bool {
	return f.Status == EmissionStatusDead
}

// FailureJournal persists failed emissions for the reconciler.
type FailureJournal interface {
	// Save persists one or more journal entries.
	Save(ctx context.Context, entries ...*FailedEmission) error
	// FindReplayable retrieves pending entries plus failed entries whose
	// next retry is due, up to limit, oldest first.
	FindReplayable(ctx context.Context, now time.Time, limit int) ([]*FailedEmission, error)
	// FindDead retrieves dead entries for manual reconciliation.
	FindDead(ctx context.Context, limit int) ([]*FailedEmission, error)
	// Update updates an existing entry.
	Update(ctx context.Context, entry *FailedEmission) error
	// DeleteOlderThan removes sent entries older than the cutoff.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
