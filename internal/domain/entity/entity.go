package entity

import (
	"time"

	"github.com/google/uuid"
)

// FrameworkVersion is stamped on every entity row written by this
// version of the framework.
const FrameworkVersion = "2.0"

// Entity is a generic business object. Concrete entity types (partner,
// product, order) are described by a TypeDescriptor rather than by
// per-type structs, so one store and one mutation pipeline serve them all.
type Entity struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	EntityType       string
	Fields           map[string]any
	ExtensionFields  map[string]any
	FrameworkVersion string
	Active           bool
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New creates an entity for first write. Entities are never physically
// deleted; deactivation flips Active so the audit trail stays continuous.
func New(tenantID uuid.UUID, entityType string, fields, extensionFields map[string]any) *Entity {
	now := time.Now().UTC()
	if fields == nil {
		fields = make(map[string]any)
	}
	if extensionFields == nil {
		extensionFields = make(map[string]any)
	}
	return &Entity{
		ID:               uuid.New(),
		TenantID:         tenantID,
		EntityType:       entityType,
		Fields:           fields,
		ExtensionFields:  extensionFields,
		FrameworkVersion: FrameworkVersion,
		Active:           true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AllFields merges standard and extension fields into one view, the shape
// the change detector and event payloads operate on. Extension fields are
// stored separately but audited and published like any other field.
func (e *Entity) AllFields() map[string]any {
	merged := make(map[string]any, len(e.Fields)+len(e.ExtensionFields))
	for k, v := range e.Fields {
		merged[k] = v
	}
	for k, v := range e.ExtensionFields {
		merged[k] = v
	}
	return merged
}

// Clone returns a deep-enough copy for applying a payload without
// touching the loaded row.
func (e *Entity) Clone() *Entity {
	clone := *e
	clone.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	clone.ExtensionFields = make(map[string]any, len(e.ExtensionFields))
	for k, v := range e.ExtensionFields {
		clone.ExtensionFields[k] = v
	}
	return &clone
}

// Deactivate soft-deletes the entity.
func (e *Entity) Deactivate() {
	e.Active = false
	e.UpdatedAt = time.Now().UTC()
}

// Touch bumps the update timestamp.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
