// Package calllock serializes turns against a single (tenant_id, call_id)
// so two concurrent webhook deliveries for the same call can never race
// the FSM (spec.md §4.4). Grounded on the teacher's dedicated-connection
// idiom (other_examples/internal-seed-demo.go's pool.Acquire + SET
// search_path) reworked onto a FOR UPDATE row lock instead of a schema
// switch.
package calllock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLockTimeout is returned when the row lock could not be acquired
// within the configured statement timeout. Callers on the voice channel
// treat this as retryable (spec.md §6, "4xx retryable").
var ErrLockTimeout = errors.New("calllock: timed out acquiring call lock")

type ctxKey struct{}

// WithConn threads the lock-holding connection through context so journal
// writes issued inside the same transition reuse it (spec.md §4.4).
func WithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, ctxKey{}, conn)
}

// ConnFromContext returns the lock-holding connection, if any.
func ConnFromContext(ctx context.Context) (*pgxpool.Conn, bool) {
	conn, ok := ctx.Value(ctxKey{}).(*pgxpool.Conn)
	return conn, ok
}

// Lock serializes access to a single call's state transitions.
type Lock interface {
	// Acquire blocks until the lock is held or ctx/the configured timeout
	// expires, and returns a release func that must be called exactly once.
	Acquire(ctx context.Context, tenantID int64, callID string) (release func(), err error)
}

// PGLock acquires a dedicated connection per call and holds a row-level
// FOR UPDATE lock on call_sessions for the lifetime of one turn.
type PGLock struct {
	pool    *pgxpool.Pool
	timeout string // e.g. "2s", passed verbatim to Postgres' statement_timeout
}

var _ Lock = (*PGLock)(nil)

func NewPGLock(pool *pgxpool.Pool, timeout string) *PGLock {
	if timeout == "" {
		timeout = "2s"
	}
	return &PGLock{pool: pool, timeout: timeout}
}

// Acquire upserts the call_sessions row if absent, then takes a FOR UPDATE
// lock on it inside a transaction on a dedicated connection, so the lock
// is held exactly as long as the connection is checked out. A crash before
// release drops the connection back to the pool's close path, which
// releases the Postgres lock automatically (spec.md §4.4).
func (l *PGLock) Acquire(ctx context.Context, tenantID int64, callID string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("calllock: acquire connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("calllock: begin: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL statement_timeout = '%s'`, l.timeout)); err != nil {
		_ = tx.Rollback(ctx)
		conn.Release()
		return nil, fmt.Errorf("calllock: set statement_timeout: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO call_sessions (tenant_id, call_id, status, last_seq, updated_at)
		 VALUES ($1, $2, 'active', 0, now())
		 ON CONFLICT (tenant_id, call_id) DO NOTHING`,
		tenantID, callID,
	); err != nil {
		_ = tx.Rollback(ctx)
		conn.Release()
		return nil, fmt.Errorf("calllock: upsert call session: %w", err)
	}

	var discard int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM call_sessions WHERE tenant_id = $1 AND call_id = $2 FOR UPDATE`,
		tenantID, callID,
	).Scan(&discard)
	if err != nil {
		_ = tx.Rollback(ctx)
		conn.Release()
		if isLockTimeout(err) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("calllock: lock row: %w", err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		_ = tx.Commit(ctx)
		conn.Release()
	}
	return release, nil
}

// isLockTimeout matches Postgres' 57014 query_canceled / lock_not_available
// classes, which pgx surfaces in the error text when statement_timeout
// fires on a blocked FOR UPDATE.
func isLockTimeout(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "query_canceled") ||
		strings.Contains(msg, "lock_not_available") ||
		strings.Contains(msg, "canceling statement due to statement timeout") ||
		strings.Contains(msg, "57014")
}
