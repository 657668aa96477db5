package entity

import (
	"context"

	"github.com/google/uuid"
)

// Store is the durable record of entity rows. All reads are scoped by
// tenant; a lookup that matches the entity ID but not the tenant behaves
// identically to a missing row so existence never leaks across tenants.
type Store interface {
	// Get loads an entity scoped by (tenantID, id). Returns
	// shared.ErrNotFound for both a missing row and a tenant mismatch.
	Get(ctx context.Context, tenantID, id uuid.UUID) (*Entity, error)

	// Insert persists a new entity row.
	Insert(ctx context.Context, e *Entity) error

	// Update persists changes to an existing row using an optimistic
	// version check; a stale version returns shared.ErrConcurrencyConflict.
	// The version on e is incremented on success.
	Update(ctx context.Context, e *Entity) error

	// ListByType returns entities of one type for a tenant, ordered by
	// creation time.
	ListByType(ctx context.Context, tenantID uuid.UUID, entityType string) ([]*Entity, error)
}
