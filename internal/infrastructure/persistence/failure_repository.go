package persistence

import (
	"context"
	"time"

	"github.com/erp/framework/internal/domain/stream"
	"github.com/erp/framework/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFailureJournal implements stream.FailureJournal using GORM
type GormFailureJournal struct {
	db *gorm.DB
}

// NewGormFailureJournal creates a new GormFailureJournal
func NewGormFailureJournal(db *gorm.DB) *GormFailureJournal {
	return &GormFailureJournal{db: db}
}

// Save persists one or more journal entries
func (j *GormFailureJournal) Save(ctx context.Context, entries ...*stream.FailedEmission) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.FailedEmissionModel, len(entries))
	for i, e := range entries {
		rows[i] = models.FailedEmissionModelFromDomain(e)
	}
	return j.db.WithContext(ctx).Create(rows).Error
}

// FindReplayable retrieves pending entries plus failed entries whose next
// retry is due, oldest first.
func (j *GormFailureJournal) FindReplayable(ctx context.Context, now time.Time, limit int) ([]*stream.FailedEmission, error) {
	var rows []models.FailedEmissionModel
	if err := j.db.WithContext(ctx).
		Where("status = ?", stream.EmissionStatusPending).
		Or("status = ? AND next_retry_at <= ?", stream.EmissionStatusFailed, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEmissions(rows), nil
}

// FindDead retrieves dead entries for manual reconciliation
func (j *GormFailureJournal) FindDead(ctx context.Context, limit int) ([]*stream.FailedEmission, error) {
	var rows []models.FailedEmissionModel
	if err := j.db.WithContext(ctx).
		Where("status = ?", stream.EmissionStatusDead).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEmissions(rows), nil
}

// Update updates an existing journal entry
func (j *GormFailureJournal) Update(ctx context.Context, entry *stream.FailedEmission) error {
	model := models.FailedEmissionModelFromDomain(entry)
	return j.db.WithContext(ctx).Save(model).Error
}

// DeleteOlderThan removes sent entries older than the cutoff
func (j *GormFailureJournal) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := j.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", stream.EmissionStatusSent, before).
		Delete(&models.FailedEmissionModel{})
	return result.RowsAffected, result.Error
}

func toEmissions(rows []models.FailedEmissionModel) []*stream.FailedEmission {
	entries := make([]*stream.FailedEmission, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries
}

// Ensure GormFailureJournal implements stream.FailureJournal
var _ stream.FailureJournal = (*GormFailureJournal)(nil)
