package fsm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aurorabook/concierge/internal/booking"
	"github.com/aurorabook/concierge/internal/calllock"
	"github.com/aurorabook/concierge/internal/idempotency"
	"github.com/aurorabook/concierge/internal/intent"
	"github.com/aurorabook/concierge/internal/journal"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/internal/triage"
	"github.com/aurorabook/concierge/pkg/logging"
)

// AuditSink records the two audit events the FSM must write at most once
// per call: an EMERGENCY triage hit (category only, never the raw
// symptom text, spec.md §4.7) and a human-transfer handoff (spec.md
// §4.8's transfer_logged guard). Left as a narrow interface so cmd/api can
// wire it to the journal, to internal/archive, or to both.
type AuditSink interface {
	RecordEmergency(ctx context.Context, tenantID int64, convID string, category triage.Category) error
	RecordTransfer(ctx context.Context, tenantID int64, convID string, reason string) error
}

// LogAuditSink is the default AuditSink: structured log lines via
// pkg/logging, the same ambient-observability fallback the teacher uses
// in internal/archive's classifier before a durable sink is wired in.
type LogAuditSink struct {
	logger *logging.Logger
}

func NewLogAuditSink(logger *logging.Logger) LogAuditSink {
	if logger == nil {
		logger = logging.Default()
	}
	return LogAuditSink{logger: logger}
}

func (s LogAuditSink) RecordEmergency(_ context.Context, tenantID int64, convID string, category triage.Category) error {
	s.logger.Warn("emergency triage", "tenant_id", tenantID, "conv_id", convID, "category", string(category))
	return nil
}

func (s LogAuditSink) RecordTransfer(_ context.Context, tenantID int64, convID string, reason string) error {
	s.logger.Warn("human transfer", "tenant_id", tenantID, "conv_id", convID, "reason", reason)
	return nil
}

// bookingSelector narrows *booking.Selector to what the FSM needs, so
// tests can substitute a fake Adapter without a real calendar provider or
// database (the same narrow-interface idiom every other composed package
// in Engine already follows).
type bookingSelector interface {
	For(cfg tenancy.Config) booking.Adapter
}

// Engine composes every other package behind the single Step entrypoint
// (spec.md §4.8): C2 session storage, C4 call locking, C3 journaling, C5
// recovery counters (owned by session.Session itself), C6 slot-choice
// parsing, C7 medical triage, C9 the booking adapter, plus the
// idempotency ledger guarding every external write.
type Engine struct {
	Sessions   session.Store
	Lock       calllock.Lock
	Journal    journal.Journal
	Tenants    tenancy.Resolver
	Booking    bookingSelector
	Transfer   *booking.TransferNotifier
	Idempotent *idempotency.Ledger
	Audit      AuditSink
	Logger     *logging.Logger

	// FlagCache, when set, lets a turn for a tenant cached as suspended
	// return before Tenants.Tenant is called (spec.md §5 "tenant-flag
	// cache"); on a miss or a cached active status the turn consults
	// Tenants.Tenant as usual and populates the cache with the fetched
	// status. Nil disables the fast path and every turn consults
	// Tenants.Tenant alone.
	FlagCache *tenancy.FlagCache
}

func NewEngine(sessions session.Store, lock calllock.Lock, j journal.Journal, tenants tenancy.Resolver, selector bookingSelector, transfer *booking.TransferNotifier, ledger *idempotency.Ledger, audit AuditSink, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if audit == nil {
		audit = NewLogAuditSink(logger)
	}
	return &Engine{
		Sessions:   sessions,
		Lock:       lock,
		Journal:    j,
		Tenants:    tenants,
		Booking:    selector,
		Transfer:   transfer,
		Idempotent: ledger,
		Audit:      audit,
		Logger:     logger,
	}
}

// HandleTurn is the call-locked, checkpointed entrypoint real channel
// adapters call: it acquires the per-call lock (C4), loads or creates the
// session, runs Step, then performs post-processing (checkpoint/save)
// before releasing the lock. Step itself stays lock-agnostic and easy to
// unit test directly against a bare *session.Session.
func (e *Engine) HandleTurn(ctx context.Context, tenantID int64, callID string, turn Turn) (*Reply, error) {
	release, err := e.Lock.Acquire(ctx, tenantID, callID)
	if err != nil {
		return nil, fmt.Errorf("fsm: acquire call lock: %w", err)
	}
	defer release()

	if e.FlagCache != nil {
		if suspended, hit := e.FlagCache.IsSuspended(ctx, tenantID); hit && suspended {
			return suspendedReply(), nil
		}
	}

	tenant, err := e.Tenants.Tenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fsm: resolve tenant: %w", err)
	}

	if e.FlagCache != nil {
		_ = e.FlagCache.Set(ctx, tenantID, tenant.IsSuspended())
	}
	if tenant.IsSuspended() {
		return suspendedReply(), nil
	}

	sess, err := e.Sessions.GetOrCreate(ctx, tenantID, callID, turn.Channel)
	if err != nil {
		return nil, fmt.Errorf("fsm: get or create session: %w", err)
	}

	if _, err := e.Journal.AppendMessage(ctx, tenantID, callID, journal.RoleUser, turn.UserText); err != nil {
		return nil, fmt.Errorf("fsm: append user turn: %w", err)
	}

	priorState := sess.State
	priorSlots := len(sess.PendingSlots)

	reply, err := e.Step(ctx, sess, tenant, turn)
	if err != nil {
		return nil, err
	}

	if err := e.postProcess(ctx, sess, priorState, priorSlots, reply); err != nil {
		return nil, err
	}

	if reply.EndCall {
		if err := e.Journal.EndCall(ctx, tenantID, callID); err != nil {
			return nil, fmt.Errorf("fsm: end call: %w", err)
		}
	}

	return reply, nil
}

// suspendedReply is returned in place of running Step at all when the
// tenant's billing status has suspended them (C11): the session is left
// untouched so service resumes exactly where it left off on reactivation.
func suspendedReply() *Reply {
	return &Reply{
		Text:    "This service is temporarily unavailable. Please contact the business directly.",
		State:   StateTransferred,
		EndCall: true,
	}
}

// postProcess implements spec.md §4.8 stage 7: append the agent turn with
// a new seq, checkpoint on state or pending_slots change (at that same
// seq, so the snapshot matches the journal position exactly per §4.3),
// update last_state, save the session.
func (e *Engine) postProcess(ctx context.Context, sess *session.Session, priorState session.State, priorSlotCount int, reply *Reply) error {
	seq, err := e.Journal.AppendMessage(ctx, sess.TenantID, sess.ConvID, journal.RoleAgent, reply.Text)
	if err != nil {
		return fmt.Errorf("fsm: append agent turn: %w", err)
	}

	stateChanged := sess.State != priorState
	slotsChanged := len(sess.PendingSlots) != priorSlotCount

	if stateChanged || slotsChanged {
		blob, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("fsm: marshal checkpoint state: %w", err)
		}
		if err := e.Journal.WriteCheckpoint(ctx, sess.TenantID, sess.ConvID, seq, blob); err != nil {
			return fmt.Errorf("fsm: write checkpoint: %w", err)
		}
	}

	sess.LastState = priorState
	if err := e.Sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("fsm: save session: %w", err)
	}
	return nil
}

// Step implements spec.md §4.8's seven-stage per-turn contract. It never
// touches session storage, the journal or the call lock — callers
// (HandleTurn, or tests) own persistence. Its handlers do call the booking
// adapter, the idempotency ledger, the audit sink and the transfer notifier.
func (e *Engine) Step(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) (*Reply, error) {
	now := time.Now()
	sess.Touch(now)

	// Stage 1: empty/noise guard.
	if isBlank(turn.UserText) {
		sess.EmptyMessageCount++
		if sess.EmptyMessageCount > 2 {
			return e.routeToIntentRouter(ctx, sess, tenant)
		}
		return &Reply{Text: "Je n'ai pas entendu, pouvez-vous répéter ?", State: sess.State}, nil
	}
	sess.EmptyMessageCount = 0

	// Stage 2: turn-count guard.
	if sess.TurnCount > session.MaxTurnsAntiLoop && !IsTerminal(sess.State) {
		return e.routeToIntentRouter(ctx, sess, tenant)
	}

	// Stage 3: emergency guard.
	if sess.State == StateEmergency {
		return e.handleEmergency(ctx, sess, tenant, "")
	}
	if outcome := triage.Classify(turn.UserText); outcome.Level == triage.LevelEmergency {
		return e.handleEmergency(ctx, sess, tenant, outcome.Category)
	} else if outcome.Level == triage.LevelCaution && IsPreBooking(sess.State) {
		sess.State = StateQualifPref
		return &Reply{Text: "Je comprends, on va vite trouver un créneau pour vous. " + e.handleQualifPref(ctx, sess, tenant, turn).Text, State: sess.State}, nil
	}

	if IsTerminal(sess.State) {
		return e.reEmitTerminal(sess), nil
	}

	// Stage 4: intent override.
	if reply, overridden := e.applyIntentOverride(ctx, sess, tenant, turn); overridden {
		return reply, nil
	}

	// Stage 5: barge-in during slot enumeration.
	if sess.State == StateWaitConfirm && sess.IsReadingSlots {
		if reply, matched := e.bargeInOnSlotChoice(ctx, sess, tenant, turn); matched {
			return reply, nil
		}
	}

	// Stage 6: state-dispatch handler.
	return e.dispatch(ctx, sess, tenant, turn), nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func (e *Engine) reEmitTerminal(sess *session.Session) *Reply {
	switch sess.State {
	case StateEmergency:
		return &Reply{Text: emergencyScript, State: sess.State, EndCall: false}
	case StateTransferred:
		return &Reply{Text: "Vous avez été transféré à un membre de l'équipe, je vous laisse avec eux.", State: sess.State, EndCall: true}
	default:
		return &Reply{Text: "Votre rendez-vous est confirmé. Merci et à bientôt !", State: sess.State, EndCall: true}
	}
}

func (e *Engine) routeToIntentRouter(ctx context.Context, sess *session.Session, tenant tenancy.Tenant) (*Reply, error) {
	sess.State = StateIntentRouter
	return e.handleIntentRouter(ctx, sess, tenant, Turn{}), nil
}
