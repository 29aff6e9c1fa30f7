package tenancy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rowQuerier narrows pgxpool.Pool to what this package needs, keeping the
// resolver testable against pgxmock.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver maps inbound identifiers to a tenant id.
type Resolver interface {
	ResolveByInboundNumber(ctx context.Context, channel Channel, e164 string) (int64, error)
	ResolveByAPIKey(ctx context.Context, key string) (int64, error)
	Tenant(ctx context.Context, tenantID int64) (Tenant, error)
}

// PGResolver resolves tenants against the tenants/tenant_config/
// tenant_routing tables (spec.md §6 "Persisted state layout").
type PGResolver struct {
	db rowQuerier
}

var _ Resolver = (*PGResolver)(nil)

// NewPGResolver builds a resolver backed by the given pgx pool.
func NewPGResolver(pool *pgxpool.Pool) *PGResolver {
	return &PGResolver{db: pool}
}

// ResolveByInboundNumber looks up tenant_routing by (channel, normalized
// number). The caller is expected to have already run NormalizeE164.
func (r *PGResolver) ResolveByInboundNumber(ctx context.Context, channel Channel, e164 string) (int64, error) {
	var tenantID int64
	err := r.db.QueryRow(ctx,
		`SELECT tenant_id FROM tenant_routing WHERE channel = $1 AND routing_key = $2`,
		string(channel), e164,
	).Scan(&tenantID)
	if err != nil {
		return 0, fmt.Errorf("tenancy: resolve by inbound number: %w", ErrUnknownRoute)
	}
	return tenantID, nil
}

// ResolveByAPIKey looks up the tenant owning an admin/API key.
func (r *PGResolver) ResolveByAPIKey(ctx context.Context, key string) (int64, error) {
	var tenantID int64
	err := r.db.QueryRow(ctx,
		`SELECT tenant_id FROM tenant_api_keys WHERE api_key = $1`,
		key,
	).Scan(&tenantID)
	if err != nil {
		return 0, fmt.Errorf("tenancy: resolve by api key: %w", ErrUnauthenticated)
	}
	return tenantID, nil
}

// Tenant fetches the full tenant record plus its configuration blob.
func (r *PGResolver) Tenant(ctx context.Context, tenantID int64) (Tenant, error) {
	var t Tenant
	var provider, consent string
	err := r.db.QueryRow(ctx,
		`SELECT t.tenant_id, t.display_name, t.timezone, t.status,
		        c.calendar_provider, c.calendar_id, c.business_name, c.transfer_phone, c.consent_mode
		   FROM tenants t
		   JOIN tenant_config c ON c.tenant_id = t.tenant_id
		  WHERE t.tenant_id = $1`,
		tenantID,
	).Scan(&t.TenantID, &t.DisplayName, &t.Timezone, &t.Status,
		&provider, &t.Config.CalendarID, &t.Config.BusinessName, &t.Config.TransferPhone, &consent)
	if err != nil {
		return Tenant{}, fmt.Errorf("tenancy: load tenant %d: %w", tenantID, err)
	}
	t.Config.CalendarProvider = CalendarProvider(provider)
	t.Config.ConsentMode = ConsentMode(consent)
	return t, nil
}

// StaticResolver is an in-memory Resolver for tests and single-process
// deployments, mirroring the teacher's StaticOrgResolver shape.
type StaticResolver struct {
	byNumber map[Channel]map[string]int64
	byAPIKey map[string]int64
	tenants  map[int64]Tenant
}

var _ Resolver = (*StaticResolver)(nil)

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		byNumber: make(map[Channel]map[string]int64),
		byAPIKey: make(map[string]int64),
		tenants:  make(map[int64]Tenant),
	}
}

func (s *StaticResolver) AddTenant(t Tenant) { s.tenants[t.TenantID] = t }

func (s *StaticResolver) Route(channel Channel, e164 string, tenantID int64) {
	if s.byNumber[channel] == nil {
		s.byNumber[channel] = make(map[string]int64)
	}
	s.byNumber[channel][e164] = tenantID
}

func (s *StaticResolver) AddAPIKey(key string, tenantID int64) { s.byAPIKey[key] = tenantID }

func (s *StaticResolver) ResolveByInboundNumber(_ context.Context, channel Channel, e164 string) (int64, error) {
	if m, ok := s.byNumber[channel]; ok {
		if id, ok := m[e164]; ok {
			return id, nil
		}
	}
	return 0, ErrUnknownRoute
}

func (s *StaticResolver) ResolveByAPIKey(_ context.Context, key string) (int64, error) {
	if id, ok := s.byAPIKey[key]; ok {
		return id, nil
	}
	return 0, ErrUnauthenticated
}

func (s *StaticResolver) Tenant(_ context.Context, tenantID int64) (Tenant, error) {
	t, ok := s.tenants[tenantID]
	if !ok {
		return Tenant{}, ErrUnknownRoute
	}
	return t, nil
}
