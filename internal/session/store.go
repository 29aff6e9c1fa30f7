package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/pkg/logging"
)

// pgExecutor narrows the pgx pool to what this package needs, so tests can
// substitute pgxmock (DESIGN.md "C2").
type pgExecutor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrMultiTenantBoundaryViolation is raised when a single-tenant-only code
// path is invoked while multi-tenant mode is on (spec.md §4.2, §7).
var ErrMultiTenantBoundaryViolation = errors.New("session: single-tenant path invoked under multi-tenant mode")

// ErrNotFound is returned when no session exists and the caller did not
// ask for creation.
var ErrNotFound = errors.New("session: not found")

// CheckpointLoader restores a voice session from the journal+checkpoint
// pair (internal/journal) rather than from the durable web store, per
// spec.md §4.2's "authoritative state lives in the journal+checkpoint log"
// rule for voice channels.
type CheckpointLoader interface {
	LoadLatestCheckpoint(ctx context.Context, tenantID int64, callID string) (seq int64, state json.RawMessage, ok bool, err error)
}

// Store is the composed hybrid session store (spec.md §4.2).
type Store interface {
	GetOrCreate(ctx context.Context, tenantID int64, convID string, channel tenancy.Channel) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, tenantID int64, convID string) error
}

// memCache is a process-local, concurrency-safe hot-read cache. Lifetime
// is the process's, never durable on its own.
type memCache struct {
	mu sync.RWMutex
	m  map[string]*Session
}

func newMemCache() *memCache {
	return &memCache{m: make(map[string]*Session)}
}

func cacheKey(tenantID int64, convID string) string {
	return fmt.Sprintf("%d:%s", tenantID, convID)
}

func (c *memCache) get(tenantID int64, convID string) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.m[cacheKey(tenantID, convID)]
	return s, ok
}

func (c *memCache) set(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *s
	c.m[cacheKey(s.TenantID, s.ConvID)] = &cp
}

func (c *memCache) delete(tenantID int64, convID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, cacheKey(tenantID, convID))
}

// pgStore is the durable backend, keyed by (tenant_id, conv_id), backing
// the web_sessions table (spec.md §6).
type pgStore struct {
	pool pgExecutor
}

func newPGStore(pool pgExecutor) *pgStore {
	return &pgStore{pool: pool}
}

func (p *pgStore) get(ctx context.Context, tenantID int64, convID string) (*Session, bool, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state FROM web_sessions WHERE tenant_id = $1 AND conv_id = $2`,
		tenantID, convID,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("session: pg get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, false, fmt.Errorf("session: pg get decode: %w", err)
	}
	return &s, true, nil
}

func (p *pgStore) save(ctx context.Context, s *Session) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: pg save encode: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO web_sessions (tenant_id, conv_id, state, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (tenant_id, conv_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		s.TenantID, s.ConvID, blob,
	)
	if err != nil {
		return fmt.Errorf("session: pg save: %w", err)
	}
	return nil
}

func (p *pgStore) delete(ctx context.Context, tenantID int64, convID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM web_sessions WHERE tenant_id = $1 AND conv_id = $2`,
		tenantID, convID,
	)
	if err != nil {
		return fmt.Errorf("session: pg delete: %w", err)
	}
	return nil
}

// HybridStore composes the memory cache with the durable Postgres store
// per spec.md §4.2's policy, and restores voice sessions from the
// journal+checkpoint pair instead of web_sessions.
type HybridStore struct {
	cache           *memCache
	pg              *pgStore
	checkpoints     CheckpointLoader
	multiTenantMode bool
	logger          *logging.Logger
}

var _ Store = (*HybridStore)(nil)

// NewHybridStore builds the composed store. pool may be nil only when
// multiTenantMode is false (single-tenant/dev mode); passing a nil pool
// under multi-tenant mode panics immediately rather than silently
// degrading to memory-only (spec.md §4.2, §7).
func NewHybridStore(pool pgExecutor, checkpoints CheckpointLoader, multiTenantMode bool, logger *logging.Logger) *HybridStore {
	if multiTenantMode && pool == nil {
		panic("session: multi-tenant mode requires a durable pg pool")
	}
	if logger == nil {
		logger = logging.Default()
	}
	var pg *pgStore
	if pool != nil {
		pg = newPGStore(pool)
	}
	return &HybridStore{
		cache:           newMemCache(),
		pg:              pg,
		checkpoints:     checkpoints,
		multiTenantMode: multiTenantMode,
		logger:          logger,
	}
}

// GetOrCreate implements spec.md §4.2's policy: web/whatsapp sessions are
// PG-authoritative in multi-tenant mode with write-through cache; voice
// sessions restore from the checkpoint log, with the cache holding the
// live object mid-call.
func (h *HybridStore) GetOrCreate(ctx context.Context, tenantID int64, convID string, channel tenancy.Channel) (*Session, error) {
	if s, ok := h.cache.get(tenantID, convID); ok {
		return s, nil
	}

	var (
		restored *Session
		err      error
	)
	switch channel {
	case tenancy.ChannelVoice:
		restored, err = h.restoreVoice(ctx, tenantID, convID)
	default:
		restored, err = h.restoreWeb(ctx, tenantID, convID)
	}
	if err != nil {
		return nil, err
	}

	if restored == nil {
		restored = &Session{
			TenantID: tenantID,
			ConvID:   convID,
			Channel:  channel,
		}
	}
	h.cache.set(restored)
	return restored, nil
}

func (h *HybridStore) restoreWeb(ctx context.Context, tenantID int64, convID string) (*Session, error) {
	if !h.multiTenantMode || h.pg == nil {
		return nil, nil
	}
	s, ok, err := h.pg.get(ctx, tenantID, convID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (h *HybridStore) restoreVoice(ctx context.Context, tenantID int64, callID string) (*Session, error) {
	if h.checkpoints == nil {
		return nil, nil
	}
	_, state, ok, err := h.checkpoints.LoadLatestCheckpoint(ctx, tenantID, callID)
	if err != nil {
		return nil, fmt.Errorf("session: restore voice checkpoint: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, fmt.Errorf("session: decode checkpoint state: %w", err)
	}
	return &s, nil
}

// Save upserts into the cache, and for web/whatsapp sessions under
// multi-tenant mode, into the durable store. Voice sessions are persisted
// exclusively via internal/journal's checkpoint writes — Save for a voice
// session only updates the cache, matching spec.md §4.2's "the cache holds
// the live object during a call".
func (h *HybridStore) Save(ctx context.Context, s *Session) error {
	h.cache.set(s)
	if s.Channel == tenancy.ChannelVoice {
		return nil
	}
	if !h.multiTenantMode {
		return nil
	}
	if h.pg == nil {
		return ErrMultiTenantBoundaryViolation
	}
	return h.pg.save(ctx, s)
}

// Delete purges both layers.
func (h *HybridStore) Delete(ctx context.Context, tenantID int64, convID string) error {
	h.cache.delete(tenantID, convID)
	if h.pg == nil {
		return nil
	}
	return h.pg.delete(ctx, tenantID, convID)
}

// PeekCache exposes whether a session is currently cache-resident. Nothing
// in this module calls it; the FSM's barge-in guard (spec.md §4.8 item 5)
// reads Session.IsReadingSlots instead.
func (h *HybridStore) PeekCache(tenantID int64, convID string) (*Session, bool) {
	return h.cache.get(tenantID, convID)
}
