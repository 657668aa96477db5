package entity

import (
	"sync"

	"github.com/erp/framework/internal/domain/schema"
	"github.com/erp/framework/internal/domain/shared"
)

// TypeDescriptor declares a concrete entity type: its name and the
// schema of its standard fields. Descriptors replace per-type base
// classes; a service registers one descriptor per entity type it owns.
type TypeDescriptor struct {
	Name   string
	Schema map[string]schema.FieldSchema
}

// ValidateFields coerces and validates a payload against the declared
// schema. Unknown fields are rejected; missing optional fields are fine.
// The returned map holds the coerced values.
func (d TypeDescriptor) ValidateFields(payload map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(payload))
	for field, value := range payload {
		fs, ok := d.Schema[field]
		if !ok {
			return nil, shared.NewFieldError(field, "field is not declared for entity type "+d.Name)
		}
		coerced, err := fs.Validate(field, value)
		if err != nil {
			return nil, err
		}
		validated[field] = coerced
	}
	return validated, nil
}

// DescriptorRegistry holds the entity types known to a service.
type DescriptorRegistry struct {
	mu    sync.RWMutex
	types map[string]TypeDescriptor
}

// NewDescriptorRegistry creates an empty descriptor registry.
func NewDescriptorRegistry() *DescriptorRegistry {
	return &DescriptorRegistry{types: make(map[string]TypeDescriptor)}
}

// Register adds a type descriptor. Re-registering a name replaces it.
func (r *DescriptorRegistry) Register(desc TypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[desc.Name] = desc
}

// Get returns the descriptor for an entity type.
func (r *DescriptorRegistry) Get(entityType string) (TypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.types[entityType]
	if !ok {
		return TypeDescriptor{}, shared.NewDomainError("UNKNOWN_ENTITY_TYPE", "no descriptor registered for entity type "+entityType)
	}
	return desc, nil
}
