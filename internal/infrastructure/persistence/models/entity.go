package models

import (
	"time"

	"github.com/erp/framework/internal/domain/entity"
	"github.com/google/uuid"
)

// EntityModel is the persistence model for generic business entities.
// Rows are never physically deleted; Active is the deactivation flag.
type EntityModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID `gorm:"type:uuid;not null;index:idx_entities_tenant_type,priority:1"`
	EntityType       string    `gorm:"type:varchar(255);not null;index:idx_entities_tenant_type,priority:2"`
	Fields           JSONMap   `gorm:"type:jsonb;not null"`
	ExtensionFields  JSONMap   `gorm:"type:jsonb;not null"`
	FrameworkVersion string    `gorm:"type:varchar(20);not null"`
	Active           bool      `gorm:"not null;default:true"`
	Version          int       `gorm:"not null;default:1"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntityModel) TableName() string {
	return "entities"
}

// ToDomain converts the persistence model to a domain Entity
func (m *EntityModel) ToDomain() *entity.Entity {
	return &entity.Entity{
		ID:               m.ID,
		TenantID:         m.TenantID,
		EntityType:       m.EntityType,
		Fields:           map[string]any(m.Fields),
		ExtensionFields:  map[string]any(m.ExtensionFields),
		FrameworkVersion: m.FrameworkVersion,
		Active:           m.Active,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Entity
func (m *EntityModel) FromDomain(e *entity.Entity) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.EntityType = e.EntityType
	m.Fields = JSONMap(e.Fields)
	m.ExtensionFields = JSONMap(e.ExtensionFields)
	m.FrameworkVersion = e.FrameworkVersion
	m.Active = e.Active
	m.Version = e.Version
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// EntityModelFromDomain creates a new persistence model from a domain Entity
func EntityModelFromDomain(e *entity.Entity) *EntityModel {
	m := &EntityModel{}
	m.FromDomain(e)
	return m
}
