package persistence

import (
	"context"

	"github.com/erp/framework/internal/domain/schema"
	"github.com/erp/framework/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSchemaRegistry implements schema.Registry using GORM
type GormSchemaRegistry struct {
	db *gorm.DB
}

// NewGormSchemaRegistry creates a new GormSchemaRegistry
func NewGormSchemaRegistry(db *gorm.DB) *GormSchemaRegistry {
	return &GormSchemaRegistry{db: db}
}

// Register adds or replaces an extension field definition
func (r *GormSchemaRegistry) Register(ctx context.Context, def schema.ExtensionField) error {
	model, err := models.ExtensionFieldModelFromDomain(def)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}, {Name: "field"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "required", "constraint", "updated_at"}),
		}).
		Create(model).Error
}

// FieldsFor returns the registered schemas for a tenant and entity type
func (r *GormSchemaRegistry) FieldsFor(ctx context.Context, tenantID uuid.UUID, entityType string) (map[string]schema.FieldSchema, error) {
	var rows []models.ExtensionFieldModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ?", tenantID, entityType).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[string]schema.FieldSchema, len(rows))
	for i := range rows {
		def, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		result[def.Field] = def.Schema
	}
	return result, nil
}

// Ensure GormSchemaRegistry implements schema.Registry
var _ schema.Registry = (*GormSchemaRegistry)(nil)
