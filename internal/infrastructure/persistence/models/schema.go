package models

import (
	"encoding/json"
	"time"

	"github.com/erp/framework/internal/domain/schema"
	"github.com/google/uuid"
)

// ExtensionFieldModel is the persistence model for tenant-defined
// extension field schemas.
type ExtensionFieldModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_extension_field,priority:1"`
	EntityType string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_extension_field,priority:2"`
	Field      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_extension_field,priority:3"`
	Kind       string    `gorm:"type:varchar(20);not null"`
	Required   bool      `gorm:"not null;default:false"`
	Constraint []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExtensionFieldModel) TableName() string {
	return "extension_field_schemas"
}

// ToDomain converts the persistence model to a domain ExtensionField
func (m *ExtensionFieldModel) ToDomain() (schema.ExtensionField, error) {
	var constraint schema.Constraint
	if len(m.Constraint) > 0 {
		if err := json.Unmarshal(m.Constraint, &constraint); err != nil {
			return schema.ExtensionField{}, err
		}
	}
	return schema.ExtensionField{
		TenantID:   m.TenantID,
		EntityType: m.EntityType,
		Field:      m.Field,
		Schema: schema.FieldSchema{
			Kind:       schema.FieldKind(m.Kind),
			Required:   m.Required,
			Constraint: constraint,
		},
	}, nil
}

// ExtensionFieldModelFromDomain creates a persistence model from a domain definition
func ExtensionFieldModelFromDomain(def schema.ExtensionField) (*ExtensionFieldModel, error) {
	constraint, err := json.Marshal(def.Schema.Constraint)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &ExtensionFieldModel{
		ID:         uuid.New(),
		TenantID:   def.TenantID,
		EntityType: def.EntityType,
		Field:      def.Field,
		Kind:       string(def.Schema.Kind),
		Required:   def.Schema.Required,
		Constraint: constraint,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
