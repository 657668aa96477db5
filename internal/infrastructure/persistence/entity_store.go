package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/framework/internal/domain/entity"
	"github.com/erp/framework/internal/domain/shared"
	"github.com/erp/framework/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEntityStore implements entity.Store using GORM
type GormEntityStore struct {
	db *gorm.DB
}

// NewGormEntityStore creates a new GormEntityStore
func NewGormEntityStore(db *gorm.DB) *GormEntityStore {
	return &GormEntityStore{db: db}
}

// Get loads an entity scoped by (tenantID, id). A row that matches the
// id but not the tenant returns ErrNotFound exactly like a missing row,
// so existence never leaks across tenants.
func (s *GormEntityStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*entity.Entity, error) {
	var model models.EntityModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Insert persists a new entity row. A colliding primary key surfaces as
// ErrAlreadyExists.
func (s *GormEntityStore) Insert(ctx context.Context, e *entity.Entity) error {
	model := models.EntityModelFromDomain(e)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing row with an optimistic version
// check. The row-level version check is what serializes concurrent
// mutations to the same (tenant_id, entity_id), which transitively
// orders that entity's audit entries and event messages.
func (s *GormEntityStore) Update(ctx context.Context, e *entity.Entity) error {
	model := models.EntityModelFromDomain(e)
	model.Version = e.Version + 1
	model.UpdatedAt = time.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.EntityModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", e.TenantID, e.ID, e.Version).
		Updates(map[string]any{
			"fields":           model.Fields,
			"extension_fields": model.ExtensionFields,
			"active":           model.Active,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a stale version from a vanished or foreign row.
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.EntityModel{}).
			Where("tenant_id = ? AND id = ?", e.TenantID, e.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}

	e.Version = model.Version
	e.UpdatedAt = model.UpdatedAt
	return nil
}

// ListByType returns entities of one type for a tenant, ordered by
// creation time.
func (s *GormEntityStore) ListByType(ctx context.Context, tenantID uuid.UUID, entityType string) ([]*entity.Entity, error) {
	var rows []models.EntityModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ?", tenantID, entityType).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.Entity, len(rows))
	for i := range rows {
		entities[i] = rows[i].ToDomain()
	}
	return entities, nil
}

// Ensure GormEntityStore implements entity.Store
var _ entity.Store = (*GormEntityStore)(nil)
