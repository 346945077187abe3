// Package tenant implements the row-isolation gate. Every repository
// operation on tenant-owned rows requires a Scope, and a Scope can only be
// obtained from a resolved request context or the explicit system
// constructor. There is no way to build an unscoped query from here.
package tenant

import (
	"context"

	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
)

type ctxKey struct{}

// Scope is the proof that a caller is allowed to touch exactly one tenant's
// rows. The zero value is unusable.
type Scope struct {
	tenantID string
	system   bool
}

func (s Scope) TenantID() string {
	return s.tenantID
}

func (s Scope) IsSystem() bool {
	return s.system
}

// Valid reports whether the scope actually names a tenant. Repos reject
// zero-value scopes before building any SQL.
func (s Scope) Valid() bool {
	return s.tenantID != ""
}

// WithTenant stores the resolved tenant id on the request context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// FromContext resolves the request scope. It fails closed: a context without
// a tenant yields ErrNoTenant, never an unscoped query.
func FromContext(ctx context.Context) (Scope, error) {
	id, _ := ctx.Value(ctxKey{}).(string)
	if id == "" {
		return Scope{}, appErr.ErrNoTenant
	}
	return Scope{tenantID: id}, nil
}

// SystemScope is for privileged background work (embedding retry sweeps).
// Even system principals must name the tenant they operate on.
func SystemScope(tenantID string) (Scope, error) {
	if tenantID == "" {
		return Scope{}, appErr.ErrNoTenant
	}
	return Scope{tenantID: tenantID, system: true}, nil
}
