package models

import (
	"time"

	"github.com/erp/framework/internal/domain/stream"
	"github.com/google/uuid"
)

// FailedEmissionModel is the persistence model for the emission failure
// journal: audit entries and event messages that could not be emitted
// after their business write committed.
type FailedEmissionModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	Kind          string                `gorm:"type:varchar(10);not null"`
	EntityType    string                `gorm:"type:varchar(255);not null"`
	EntityID      uuid.UUID             `gorm:"type:uuid;not null"`
	CorrelationID uuid.UUID             `gorm:"type:uuid;not null;index"`
	Payload       []byte                `gorm:"type:jsonb;not null"`
	Status        stream.EmissionStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_emissions_status_retry,priority:1"`
	RetryCount    int                   `gorm:"default:0"`
	MaxRetries    int                   `gorm:"default:5"`
	LastError     string                `gorm:"type:text"`
	NextRetryAt   *time.Time            `gorm:"index:idx_emissions_status_retry,priority:2"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FailedEmissionModel) TableName() string {
	return "failed_emissions"
}

// ToDomain converts the persistence model to a domain FailedEmission
func (m *FailedEmissionModel) ToDomain() *stream.FailedEmission {
	return &stream.FailedEmission{
		ID:            m.ID,
		TenantID:      m.TenantID,
		Kind:          stream.EmissionKind(m.Kind),
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		CorrelationID: m.CorrelationID,
		Payload:       m.Payload,
		Status:        m.Status,
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		LastError:     m.LastError,
		NextRetryAt:   m.NextRetryAt,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain FailedEmission
func (m *FailedEmissionModel) FromDomain(f *stream.FailedEmission) {
	m.ID = f.ID
	m.TenantID = f.TenantID
	m.Kind = string(f.Kind)
	m.EntityType = f.EntityType
	m.EntityID = f.EntityID
	m.CorrelationID = f.CorrelationID
	m.Payload = f.Payload
	m.Status = f.Status
	m.RetryCount = f.RetryCount
	m.MaxRetries = f.MaxRetries
	m.LastError = f.LastError
	m.NextRetryAt = f.NextRetryAt
	m.ProcessedAt = f.ProcessedAt
	m.CreatedAt = f.CreatedAt
	m.UpdatedAt = f.UpdatedAt
}

// FailedEmissionModelFromDomain creates a new persistence model from a domain FailedEmission
func FailedEmissionModelFromDomain(f *stream.FailedEmission) *FailedEmissionModel {
	m := &FailedEmissionModel{}
	m.FromDomain(f)
	return m
}
