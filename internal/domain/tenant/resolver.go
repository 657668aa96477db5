package tenant

import (
	"github.com/erp/framework/internal/domain/shared"
	"github.com/google/uuid"
)

// Binding associates a principal with a tenant.
type Binding struct {
	TenantID uuid.UUID
	Active   bool
}

// Principal is an authenticated user as seen by the framework.
// Authentication itself happens upstream; the resolver only decides
// which tenant the principal acts for.
type Principal struct {
	UserID   uuid.UUID
	Bindings []Binding
}

// ActiveBinding returns the principal's active tenant binding, if any.
func (p Principal) ActiveBinding() (Binding, bool) {
	for _, b := range p.Bindings {
		if b.Active {
			return b, true
		}
	}
	return Binding{}, false
}

// Resolver produces the tenant context for an authenticated principal.
type Resolver struct{}

// NewResolver creates a tenant context resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the tenant context for the principal's active binding.
// A nil correlation ID mints a fresh one; a supplied one is propagated
// unchanged so transitively triggered work stays linked to the original
// user action.
func (r *Resolver) Resolve(principal Principal, correlationID uuid.UUID) (Context, error) {
	binding, ok := principal.ActiveBinding()
	if !ok {
		return Context{}, shared.ErrUnauthorized
	}

	ctx := NewContext(binding.TenantID, principal.UserID)
	if correlationID != uuid.Nil {
		ctx = ctx.WithCorrelation(correlationID)
	}
	return ctx, nil
}
