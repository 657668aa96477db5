package schema

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ExtensionField is a tenant-defined custom attribute on a standard
// entity type, registered without a schema migration.
type ExtensionField struct {
	TenantID   uuid.UUID
	EntityType string
	Field      string
	Schema     FieldSchema
}

// Registry stores per-tenant extension field schemas.
type Registry interface {
	// Register adds or replaces an extension field definition.
	Register(ctx context.Context, def ExtensionField) error
	// FieldsFor returns all extension field schemas registered for the
	// tenant and entity type, keyed by field name.
	FieldsFor(ctx context.Context, tenantID uuid.UUID, entityType string) (map[string]FieldSchema, error)
}

// InMemoryRegistry is a Registry backed by a map. It is used in tests and
// by services that load their extension schemas at startup.
type InMemoryRegistry struct {
	mu   sync.RWMutex
	defs map[string]map[string]FieldSchema // tenant|entityType -> field -> schema
}

// NewInMemoryRegistry creates an empty in-memory registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		defs: make(map[string]map[string]FieldSchema),
	}
}

// Register adds or replaces an extension field definition.
func (r *InMemoryRegistry) Register(_ context.Context, def ExtensionField) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := def.TenantID.String() + "|" + def.EntityType
	if r.defs[key] == nil {
		r.defs[key] = make(map[string]FieldSchema)
	}
	r.defs[key][def.Field] = def.Schema
	return nil
}

// FieldsFor returns the registered schemas for a tenant and entity type.
func (r *InMemoryRegistry) FieldsFor(_ context.Context, tenantID uuid.UUID, entityType string) (map[string]FieldSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := tenantID.String() + "|" + entityType
	result := make(map[string]FieldSchema, len(r.defs[key]))
	for field, s := range r.defs[key] {
		result[field] = s
	}
	return result, nil
}

// Ensure InMemoryRegistry implements Registry
var _ Registry = (*InMemoryRegistry)(nil)
