package tenancy

import (
	"context"
	"testing"
)

func TestWithTenantIDAndTenantIDFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTenantID(ctx, 123)

	got, ok := TenantIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected tenant id to be present")
	}
	if got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}
}

func TestTenantIDFromContext_ZeroOrMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("expected missing tenant id to return false")
	}

	ctx = context.WithValue(ctx, tenantIDKey, "not-an-int")
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("expected non-int64 tenant id to return false")
	}

	ctx = WithTenantID(context.Background(), 0)
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("expected zero tenant id to return false")
	}
}

func TestMustTenantIDPanicsWhenMissing(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing tenant id")
		}
	}()
	MustTenantID(context.Background())
}
