package models

import (
	"encoding/json"
	"time"

	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/domain/entity"
	"github.com/google/uuid"
)

// AuditEntryModel is the persistence model for immutable audit entries.
// Seq is a monotonic primary key so the trail for an entity is
// retrievable in exactly the order entries were written.
type AuditEntryModel struct {
	Seq           int64     `gorm:"primaryKey;autoIncrement"`
	ID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Action        string    `gorm:"type:varchar(50);not null"`
	EntityType    string    `gorm:"type:varchar(255);not null;index:idx_audit_entity,priority:1"`
	EntityID      uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity,priority:3;index:idx_audit_correlation,priority:1"`
	ActorID       uuid.UUID `gorm:"type:uuid"`
	Timestamp     time.Time `gorm:"not null"`
	Changes       []byte    `gorm:"type:jsonb;not null"`
	CorrelationID uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_correlation,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain audit Entry
func (m *AuditEntryModel) ToDomain() (*audit.Entry, error) {
	changes := make(map[string]entity.FieldChange)
	if len(m.Changes) > 0 {
		if err := json.Unmarshal(m.Changes, &changes); err != nil {
			return nil, err
		}
	}
	return &audit.Entry{
		ID:            m.ID,
		Action:        audit.Action(m.Action),
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		TenantID:      m.TenantID,
		ActorID:       m.ActorID,
		Timestamp:     m.Timestamp,
		Changes:       changes,
		CorrelationID: m.CorrelationID,
	}, nil
}

// AuditEntryModelFromDomain creates a persistence model from a domain Entry
func AuditEntryModelFromDomain(e *audit.Entry) (*AuditEntryModel, error) {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return nil, err
	}
	return &AuditEntryModel{
		ID:            e.ID,
		Action:        string(e.Action),
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		TenantID:      e.TenantID,
		ActorID:       e.ActorID,
		Timestamp:     e.Timestamp,
		Changes:       changes,
		CorrelationID: e.CorrelationID,
	}, nil
}
