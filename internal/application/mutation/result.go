package mutation

import (
	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/domain/entity"
	"github.com/google/uuid"
)

// Result is the outcome of a single mutation. Degraded means the
// business write committed but an audit or event emission failed and was
// journaled for replay; callers treat a degraded result as success.
type Result struct {
	Entity        *entity.Entity
	AuditEntry    *audit.Entry
	EventPosition string
	CorrelationID uuid.UUID
	Degraded      bool
}

// BulkItemResult is the per-item outcome of a bulk operation. Err is nil
// for a succeeded item and carries field-level validation detail for a
// failed one.
type BulkItemResult struct {
	Index  int
	Entity *entity.Entity
	Err    error
}

// BulkResult is the outcome of a bulk operation. All succeeded items and
// the rollup audit entry share one correlation ID.
type BulkResult struct {
	Items         []BulkItemResult
	Succeeded     int
	Failed        int
	CorrelationID uuid.UUID
	Degraded      bool
}
