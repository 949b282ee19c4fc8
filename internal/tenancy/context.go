package tenancy

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantContext is the per-request tenant binding. It lives on the
// request context only, never in package state, so concurrent requests
// for different tenants cannot observe each other's database.
type TenantContext struct {
	Tenant           *Tenant
	Pool             *pgxpool.Pool
	ConnectionString string
}

type tenantContextKey struct{}

// WithTenant binds the tenant context to ctx.
func WithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// FromContext extracts the tenant binding, if any.
func FromContext(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(tenantContextKey{}).(*TenantContext)
	return tc, ok && tc != nil
}

// TenantFromContext returns the bound tenant or nil.
func TenantFromContext(ctx context.Context) *Tenant {
	if tc, ok := FromContext(ctx); ok {
		return tc.Tenant
	}
	return nil
}
