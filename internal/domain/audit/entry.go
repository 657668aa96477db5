package audit

import (
	"context"
	"time"

	"github.com/erp/framework/internal/domain/entity"
	"github.com/erp/framework/internal/domain/tenant"
	"github.com/google/uuid"
)

// Action identifies what kind of mutation produced an audit entry.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionDeleted     Action = "deleted"
	ActionBulkCreated Action = "bulk_created"
)

// Entry is the immutable record of one completed mutation. Once written
// it is never updated or deleted; the trail for an entity is the ordered
// list of its entries.
type Entry struct {
	ID            uuid.UUID                     `json:"id"`
	Action        Action                        `json:"action"`
	EntityType    string                        `json:"entity_type"`
	EntityID      uuid.UUID                     `json:"entity_id"`
	TenantID      uuid.UUID                     `json:"tenant_id"`
	ActorID       uuid.UUID                     `json:"actor_id"`
	Timestamp     time.Time                     `json:"timestamp"`
	Changes       map[string]entity.FieldChange `json:"changes"`
	CorrelationID uuid.UUID                     `json:"correlation_id"`
}

// NewEntry creates an audit entry for a completed mutation. Changes must
// already be filtered to fields that actually differ.
func NewEntry(tc tenant.Context, action Action, entityType string, entityID uuid.UUID, changes map[string]entity.FieldChange) *Entry {
	return &Entry{
		ID:            uuid.New(),
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		TenantID:      tc.TenantID,
		ActorID:       tc.ActorID,
		Timestamp:     time.Now().UTC(),
		Changes:       changes,
		CorrelationID: tc.CorrelationID,
	}
}

// Writer appends audit entries. The interface deliberately exposes no
// update or delete; serialization of concurrent writes for the same
// entity is the mutation pipeline's job, not the writer's.
type Writer interface {
	Write(ctx context.Context, entry *Entry) error
}

// Reader serves the audit query interface consumed by admin and
// reporting collaborators.
type Reader interface {
	// GetAuditTrail returns all entries for an entity in write order.
	GetAuditTrail(ctx context.Context, entityType string, entityID, tenantID uuid.UUID) ([]*Entry, error)
	// FindByCorrelation returns all entries sharing a correlation ID,
	// across entities, in write order.
	FindByCorrelation(ctx context.Context, tenantID, correlationID uuid.UUID) ([]*Entry, error)
}
