// Package journal implements the append-only per-call message log and
// periodic state checkpoints (spec.md §4.3), grounded on the teacher's
// internal/conversation/conversation_store.go append-with-seq-counter
// idiom, reworked onto pgx/v5 and the tenant-scoped (tenant_id, call_id)
// key spec.md §3 requires.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Role is the speaker of a journal entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Journal is the append-only message log plus checkpoint store for a call.
type Journal interface {
	NextSeq(ctx context.Context, tenantID int64, callID string) (int64, error)
	AppendMessage(ctx context.Context, tenantID int64, callID string, role Role, text string) (seq int64, err error)
	WriteCheckpoint(ctx context.Context, tenantID int64, callID string, seq int64, state json.RawMessage) error
	LoadLatestCheckpoint(ctx context.Context, tenantID int64, callID string) (seq int64, state json.RawMessage, ok bool, err error)

	// EndCall closes out call_sessions when the FSM reaches a terminal
	// state: status -> 'ended', ended_at -> now, duration_seconds derived
	// from started_at, feeding C11's DailyMinutes usage aggregation.
	EndCall(ctx context.Context, tenantID int64, callID string) error
}

// pgExecutor narrows *pgxpool.Pool to what this package needs, the same
// shape the teacher's internal/events/processed_store.go uses so tests can
// substitute pgxmock without a real database (DESIGN.md "C3").
type pgExecutor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGJournal is the Postgres-backed implementation against call_sessions,
// call_messages and call_state_checkpoints (spec.md §6).
type PGJournal struct {
	pool pgExecutor
}

var _ Journal = (*PGJournal)(nil)

func NewPGJournal(pool pgExecutor) *PGJournal {
	return &PGJournal{pool: pool}
}

// NextSeq atomically increments call_sessions.last_seq and returns the new
// value, creating the row on first use. Invoked from within the
// transaction holding the call lock (internal/calllock) so no two callers
// can race on the same (tenant_id, call_id).
func (j *PGJournal) NextSeq(ctx context.Context, tenantID int64, callID string) (int64, error) {
	var seq int64
	err := j.pool.QueryRow(ctx,
		`INSERT INTO call_sessions (tenant_id, call_id, status, last_seq, updated_at)
		 VALUES ($1, $2, 'active', 1, now())
		 ON CONFLICT (tenant_id, call_id)
		 DO UPDATE SET last_seq = call_sessions.last_seq + 1, updated_at = now()
		 RETURNING last_seq`,
		tenantID, callID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("journal: next seq: %w", err)
	}
	return seq, nil
}

// AppendMessage persists a message at seq = NextSeq(tenant, call).
func (j *PGJournal) AppendMessage(ctx context.Context, tenantID int64, callID string, role Role, text string) (int64, error) {
	seq, err := j.NextSeq(ctx, tenantID, callID)
	if err != nil {
		return 0, err
	}
	_, err = j.pool.Exec(ctx,
		`INSERT INTO call_messages (tenant_id, call_id, seq, role, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (tenant_id, call_id, seq) DO NOTHING`,
		tenantID, callID, seq, string(role), text,
	)
	if err != nil {
		return 0, fmt.Errorf("journal: append message: %w", err)
	}
	return seq, nil
}

// WriteCheckpoint inserts a state snapshot, a no-op on key conflict
// (spec.md §4.3: "insert; on conflict with same key, no-op").
func (j *PGJournal) WriteCheckpoint(ctx context.Context, tenantID int64, callID string, seq int64, state json.RawMessage) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO call_state_checkpoints (tenant_id, call_id, seq, state, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (tenant_id, call_id, seq) DO NOTHING`,
		tenantID, callID, seq, state,
	)
	if err != nil {
		return fmt.Errorf("journal: write checkpoint: %w", err)
	}
	_, err = j.pool.Exec(ctx,
		`UPDATE call_sessions SET last_state = $3, updated_at = now() WHERE tenant_id = $1 AND call_id = $2`,
		tenantID, callID, checkpointStateTag(state),
	)
	if err != nil {
		return fmt.Errorf("journal: update call session last_state: %w", err)
	}
	return nil
}

// checkpointStateTag extracts the "state" field from a checkpoint blob for
// call_sessions.last_state, so readiness/debug queries don't need to
// unmarshal the whole jsonb column.
func checkpointStateTag(state json.RawMessage) string {
	var probe struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(state, &probe); err != nil {
		return ""
	}
	return probe.State
}

// EndCall marks the call row ended and derives its duration from
// started_at, so C11's DailyMinutes can aggregate metered usage (spec.md
// §4.11). A no-op on the row count if the call was never journaled.
func (j *PGJournal) EndCall(ctx context.Context, tenantID int64, callID string) error {
	_, err := j.pool.Exec(ctx,
		`UPDATE call_sessions
		    SET status = 'ended',
		        ended_at = now(),
		        duration_seconds = EXTRACT(EPOCH FROM (now() - started_at))::int,
		        updated_at = now()
		  WHERE tenant_id = $1 AND call_id = $2`,
		tenantID, callID,
	)
	if err != nil {
		return fmt.Errorf("journal: end call: %w", err)
	}
	return nil
}

// LoadLatestCheckpoint fetches the highest-seq checkpoint for a call.
// Callers rebuild the session from state and do not replay messages — the
// snapshot is authoritative (spec.md §4.3 resume protocol).
func (j *PGJournal) LoadLatestCheckpoint(ctx context.Context, tenantID int64, callID string) (int64, json.RawMessage, bool, error) {
	var seq int64
	var state json.RawMessage
	err := j.pool.QueryRow(ctx,
		`SELECT seq, state FROM call_state_checkpoints
		  WHERE tenant_id = $1 AND call_id = $2
		  ORDER BY seq DESC LIMIT 1`,
		tenantID, callID,
	).Scan(&seq, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, fmt.Errorf("journal: load latest checkpoint: %w", err)
	}
	return seq, state, true, nil
}
