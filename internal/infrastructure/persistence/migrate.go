package persistence

import (
	"github.com/erp/framework/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the framework's tables. Production
// deployments run SQL migrations out of band; this is used by tests and
// development setups.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.EntityModel{},
		&models.AuditEntryModel{},
		&models.ExtensionFieldModel{},
		&models.FailedEmissionModel{},
	)
}
