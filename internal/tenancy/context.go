package tenancy

import "context"

type ctxKey string

const tenantIDKey ctxKey = "concierge.tenant_id"

// WithTenantID stores the resolved tenant id in context. The tenant id
// must be set on the context immediately after a DB connection is
// acquired so row-level scoping (spec.md §5) can rely on it.
func WithTenantID(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext extracts the tenant id if present.
func TenantIDFromContext(ctx context.Context) (int64, bool) {
	val := ctx.Value(tenantIDKey)
	if val == nil {
		return 0, false
	}
	tenantID, ok := val.(int64)
	return tenantID, ok && tenantID > 0
}

// MustTenantID extracts the tenant id or panics. Single-tenant-only code
// paths use this to guarantee they fail loudly rather than silently serve
// the wrong tenant while multi-tenant mode is on (spec.md §4.2, §7).
func MustTenantID(ctx context.Context) int64 {
	tenantID, ok := TenantIDFromContext(ctx)
	if !ok {
		panic("tenancy: tenant id missing from context — multi-tenant boundary violation")
	}
	return tenantID
}
