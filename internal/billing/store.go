// Package billing syncs tenant subscription status from payment-provider
// webhooks and runs the daily suspension/usage-push jobs (spec.md §4.11),
// grounded on the teacher's internal/payments/webhook_stripe.go (signature
// verification, idempotent dispatch) and internal/events/processed_store.go
// (the ledger idiom, generalized here onto internal/idempotency.Ledger).
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Status mirrors the subscription states named in spec.md §4.11.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrialing  Status = "trialing"
	StatusPastDue   Status = "past_due"
	StatusCanceled  Status = "canceled"
	StatusUnpaid    Status = "unpaid"
	StatusSuspended Status = "suspended"
)

// Subscription is the tenant_billing row (spec.md §6 "Persisted state layout").
type Subscription struct {
	TenantID            int64
	Status              Status
	SubscriptionID      string
	Plan                string
	MeteredItemID       string
	CurrentPeriodStart  time.Time
	CurrentPeriodEnd    time.Time
	ForceActiveOverride bool
}

// execQuerier narrows pgxpool.Pool to what this package needs, keeping
// Store testable against pgxmock — the same idiom as
// internal/tenancy.PGResolver's rowQuerier.
type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists tenant_billing rows and the tenant suspension flag.
type Store interface {
	UpsertSubscription(ctx context.Context, sub Subscription) error
	SetStatus(ctx context.Context, tenantID int64, status Status) error
	ClearSubscription(ctx context.Context, tenantID int64, status Status) error
	Suspend(ctx context.Context, tenantID int64, hard bool) error
	Reactivate(ctx context.Context, tenantID int64) error
	IsSuspended(ctx context.Context, tenantID int64) (bool, error)
	DueForSuspension(ctx context.Context, now time.Time, grace time.Duration) ([]int64, error)
	DailyMinutes(ctx context.Context, day time.Time) (map[int64]int, error)
	MeteredItemID(ctx context.Context, tenantID int64) (string, error)

	// AcquireUsagePush reserves the right to push usage for (tenantID, day):
	// insert pending, or flip an existing failed row back to pending for
	// retry. Returns false if already pending/sent (spec.md §4.11).
	AcquireUsagePush(ctx context.Context, tenantID int64, day time.Time, minutes int) (bool, error)
	MarkUsagePushSent(ctx context.Context, tenantID int64, day time.Time) error
	MarkUsagePushFailed(ctx context.Context, tenantID int64, day time.Time, errShort string) error
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db execQuerier
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db execQuerier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) UpsertSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tenant_billing (tenant_id, status, subscription_id, plan, metered_item_id,
			current_period_start, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			status = EXCLUDED.status,
			subscription_id = EXCLUDED.subscription_id,
			plan = EXCLUDED.plan,
			metered_item_id = EXCLUDED.metered_item_id,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end`,
		sub.TenantID, sub.Status, sub.SubscriptionID, sub.Plan, sub.MeteredItemID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("billing: upsert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) SetStatus(ctx context.Context, tenantID int64, status Status) error {
	_, err := s.db.Exec(ctx, `UPDATE tenant_billing SET status = $2 WHERE tenant_id = $1`, tenantID, status)
	if err != nil {
		return fmt.Errorf("billing: set status: %w", err)
	}
	return nil
}

// ClearSubscription nulls the subscription id on deletion (spec.md §4.11
// "subscription deleted → null subscription id, set status canceled").
func (s *PGStore) ClearSubscription(ctx context.Context, tenantID int64, status Status) error {
	_, err := s.db.Exec(ctx,
		`UPDATE tenant_billing SET subscription_id = NULL, status = $2 WHERE tenant_id = $1`,
		tenantID, status,
	)
	if err != nil {
		return fmt.Errorf("billing: clear subscription: %w", err)
	}
	return nil
}

func (s *PGStore) Suspend(ctx context.Context, tenantID int64, hard bool) error {
	_, err := s.db.Exec(ctx, `UPDATE tenants SET status = 'suspended' WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("billing: suspend tenant %d (hard=%v): %w", tenantID, hard, err)
	}
	return nil
}

func (s *PGStore) Reactivate(ctx context.Context, tenantID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE tenants SET status = 'active' WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("billing: reactivate tenant %d: %w", tenantID, err)
	}
	return nil
}

func (s *PGStore) IsSuspended(ctx context.Context, tenantID int64) (bool, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM tenants WHERE tenant_id = $1`, tenantID).Scan(&status)
	if err != nil {
		return false, fmt.Errorf("billing: load tenant status: %w", err)
	}
	return status == "suspended", nil
}

// DueForSuspension finds tenants whose billing has been past_due/unpaid
// past the grace period and have no force_active_override (spec.md §4.11).
func (s *PGStore) DueForSuspension(ctx context.Context, now time.Time, grace time.Duration) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tenant_id FROM tenant_billing
		 WHERE status IN ('past_due', 'unpaid')
		   AND $1 > current_period_end + ($2 * interval '1 second')
		   AND NOT force_active_override`,
		now, grace.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("billing: due for suspension query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("billing: scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DailyMinutes aggregates the previous day's call minutes per tenant for
// the metered-usage push (spec.md §4.11).
func (s *PGStore) DailyMinutes(ctx context.Context, day time.Time) (map[int64]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tenant_id, COALESCE(SUM(duration_seconds), 0) / 60 AS minutes
		  FROM call_sessions
		 WHERE ended_at >= $1 AND ended_at < $1 + interval '1 day'
		 GROUP BY tenant_id`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("billing: daily minutes query: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var tenantID int64
		var minutes int
		if err := rows.Scan(&tenantID, &minutes); err != nil {
			return nil, fmt.Errorf("billing: scan daily minutes: %w", err)
		}
		out[tenantID] = minutes
	}
	return out, rows.Err()
}

func (s *PGStore) MeteredItemID(ctx context.Context, tenantID int64) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(metered_item_id, '') FROM tenant_billing WHERE tenant_id = $1`,
		tenantID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("billing: load metered item id: %w", err)
	}
	return id, nil
}

// AcquireUsagePush mirrors original_source/backend/stripe_usage.py's
// try_acquire_usage_push: INSERT pending, or UPDATE back to pending only
// if the existing row is 'failed' — the WHERE clause on the DO UPDATE is
// what makes a second call for an already-sent day a no-op.
func (s *PGStore) AcquireUsagePush(ctx context.Context, tenantID int64, day time.Time, minutes int) (bool, error) {
	var acquired bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO usage_push_log (tenant_id, date_utc, quantity_minutes, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (tenant_id, date_utc) DO UPDATE SET
			quantity_minutes = EXCLUDED.quantity_minutes,
			status = 'pending',
			error_short = NULL
		WHERE usage_push_log.status = 'failed'
		RETURNING true`,
		tenantID, day.Format("2006-01-02"), minutes,
	).Scan(&acquired)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil // already pending/sent, nothing acquired
		}
		return false, fmt.Errorf("billing: acquire usage push: %w", err)
	}
	return acquired, nil
}

func (s *PGStore) MarkUsagePushSent(ctx context.Context, tenantID int64, day time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE usage_push_log SET status = 'sent', error_short = NULL WHERE tenant_id = $1 AND date_utc = $2`,
		tenantID, day.Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("billing: mark usage push sent: %w", err)
	}
	return nil
}

func (s *PGStore) MarkUsagePushFailed(ctx context.Context, tenantID int64, day time.Time, errShort string) error {
	if len(errShort) > 255 {
		errShort = errShort[:255]
	}
	_, err := s.db.Exec(ctx,
		`UPDATE usage_push_log SET status = 'failed', error_short = $3 WHERE tenant_id = $1 AND date_utc = $2`,
		tenantID, day.Format("2006-01-02"), errShort,
	)
	if err != nil {
		return fmt.Errorf("billing: mark usage push failed: %w", err)
	}
	return nil
}
