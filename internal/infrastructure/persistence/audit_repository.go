package persistence

import (
	"context"

	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditRepository implements audit.Writer and audit.Reader using GORM.
// The repository is append-only: it exposes no update or delete.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Write appends one audit entry
func (r *GormAuditRepository) Write(ctx context.Context, entry *audit.Entry) error {
	model, err := models.AuditEntryModelFromDomain(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// GetAuditTrail returns all entries for an entity in write order
func (r *GormAuditRepository) GetAuditTrail(ctx context.Context, entityType string, entityID, tenantID uuid.UUID) ([]*audit.Entry, error) {
	var rows []models.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND tenant_id = ?", entityType, entityID, tenantID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntries(rows)
}

// FindByCorrelation returns all entries sharing a correlation ID in write order
func (r *GormAuditRepository) FindByCorrelation(ctx context.Context, tenantID, correlationID uuid.UUID) ([]*audit.Entry, error) {
	var rows []models.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND correlation_id = ?", tenantID, correlationID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntries(rows)
}

func toEntries(rows []models.AuditEntryModel) ([]*audit.Entry, error) {
	entries := make([]*audit.Entry, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}
	return entries, nil
}

// Ensure GormAuditRepository implements the audit interfaces
var (
	_ audit.Writer = (*GormAuditRepository)(nil)
	_ audit.Reader = (*GormAuditRepository)(nil)
)
