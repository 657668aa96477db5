package tenant

import (
	"github.com/google/uuid"
)

// Context identifies the acting tenant and user for a single operation.
// It is resolved once per inbound operation and passed by value through
// every downstream call; it is never stored globally.
type Context struct {
	TenantID      uuid.UUID
	ActorID       uuid.UUID
	CorrelationID uuid.UUID
}

// NewContext creates a tenant context with a fresh correlation ID.
func NewContext(tenantID, actorID uuid.UUID) Context {
	return Context{
		TenantID:      tenantID,
		ActorID:       actorID,
		CorrelationID: uuid.New(),
	}
}

// WithCorrelation returns a copy of the context carrying the given
// correlation ID. Used when an upstream caller already minted one.
func (c Context) WithCorrelation(correlationID uuid.UUID) Context {
	c.CorrelationID = correlationID
	return c
}

// IsZero reports whether the context was never resolved.
func (c Context) IsZero() bool {
	return c.TenantID == uuid.Nil
}
