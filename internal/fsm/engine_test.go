package fsm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aurorabook/concierge/internal/booking"
	"github.com/aurorabook/concierge/internal/idempotency"
	"github.com/aurorabook/concierge/internal/journal"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/internal/triage"
)

// --- fakes, mirroring the narrow-interface mocking style used throughout
// the rest of the module (no real DB/AWS calls). ---

type fakeStore struct {
	m map[string]*session.Session
}

func newFakeStore() *fakeStore { return &fakeStore{m: map[string]*session.Session{}} }

func (f *fakeStore) key(tenantID int64, convID string) string {
	return fmt.Sprintf("%d:%s", tenantID, convID)
}

func (f *fakeStore) GetOrCreate(_ context.Context, tenantID int64, convID string, channel tenancy.Channel) (*session.Session, error) {
	k := f.key(tenantID, convID)
	if s, ok := f.m[k]; ok {
		return s, nil
	}
	s := &session.Session{TenantID: tenantID, ConvID: convID, Channel: channel}
	f.m[k] = s
	return s, nil
}

func (f *fakeStore) Save(_ context.Context, s *session.Session) error {
	f.m[f.key(s.TenantID, s.ConvID)] = s
	return nil
}

func (f *fakeStore) Delete(_ context.Context, tenantID int64, convID string) error {
	delete(f.m, f.key(tenantID, convID))
	return nil
}

type fakeLock struct{}

func (fakeLock) Acquire(context.Context, int64, string) (func(), error) {
	return func() {}, nil
}

type fakeJournal struct {
	seq int64
}

func (f *fakeJournal) NextSeq(context.Context, int64, string) (int64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeJournal) AppendMessage(context.Context, int64, string, journal.Role, string) (int64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeJournal) WriteCheckpoint(context.Context, int64, string, int64, json.RawMessage) error {
	return nil
}

func (f *fakeJournal) LoadLatestCheckpoint(context.Context, int64, string) (int64, json.RawMessage, bool, error) {
	return 0, nil, false, nil
}

func (f *fakeJournal) EndCall(context.Context, int64, string) error { return nil }

type fakeResolver struct {
	tenant tenancy.Tenant
}

func (f fakeResolver) ResolveByInboundNumber(context.Context, tenancy.Channel, string) (int64, error) {
	return f.tenant.TenantID, nil
}

func (f fakeResolver) ResolveByAPIKey(context.Context, string) (int64, error) {
	return f.tenant.TenantID, nil
}

func (f fakeResolver) Tenant(context.Context, int64) (tenancy.Tenant, error) {
	return f.tenant, nil
}

type fakeAdapter struct {
	canPropose   bool
	slots        []session.PendingSlot
	listErr      error
	bookOutcome  booking.Outcome
	bookErr      error
	found        *booking.Booking
	findErr      error
	cancelOK     bool
	cancelErr    error
	bookedEvents []string
}

func (a *fakeAdapter) Name() string          { return "fake" }
func (a *fakeAdapter) CanProposeSlots() bool { return a.canPropose }

func (a *fakeAdapter) ListFreeSlots(context.Context, int64, time.Time, time.Duration, booking.Window, int, session.Preference) ([]session.PendingSlot, error) {
	return a.slots, a.listErr
}

func (a *fakeAdapter) Book(_ context.Context, _ int64, slot session.PendingSlot, _, _, _ string) (string, booking.Outcome, error) {
	if a.bookErr != nil {
		return "", booking.OutcomeFailed, a.bookErr
	}
	a.bookedEvents = append(a.bookedEvents, slot.ID)
	return "evt-" + slot.ID, a.bookOutcome, nil
}

func (a *fakeAdapter) FindBookingByName(context.Context, int64, string) (*booking.Booking, error) {
	return a.found, a.findErr
}

func (a *fakeAdapter) Cancel(context.Context, int64, *booking.Booking) (bool, error) {
	return a.cancelOK, a.cancelErr
}

type fakeSelector struct {
	adapter *fakeAdapter
}

func (s fakeSelector) For(tenancy.Config) booking.Adapter { return s.adapter }

type fakeAudit struct {
	emergencies int
	transfers   int
}

func (a *fakeAudit) RecordEmergency(context.Context, int64, string, triage.Category) error {
	a.emergencies++
	return nil
}

func (a *fakeAudit) RecordTransfer(context.Context, int64, string, string) error {
	a.transfers++
	return nil
}

// --- test scaffolding ---

func newTestEngine(adapter *fakeAdapter) (*Engine, tenancy.Tenant) {
	tenant := tenancy.Tenant{
		TenantID: 1,
		Status:   tenancy.StatusActive,
		Config: tenancy.Config{
			CalendarProvider: tenancy.CalendarProviderGoogle,
			CalendarID:       "cal-1",
			BusinessName:     "Clinique Exemple",
		},
	}
	e := NewEngine(newFakeStore(), fakeLock{}, &fakeJournal{}, fakeResolver{tenant: tenant}, fakeSelector{adapter: adapter}, nil, nil, &fakeAudit{}, nil)
	return e, tenant
}

func step(t *testing.T, e *Engine, sess *session.Session, tenant tenancy.Tenant, text string) *Reply {
	t.Helper()
	reply, err := e.Step(context.Background(), sess, tenant, Turn{UserText: text, Channel: tenancy.ChannelVoice})
	if err != nil {
		t.Fatalf("Step returned error: %v", err)
	}
	return reply
}

func newSession(tenant tenancy.Tenant) *session.Session {
	return &session.Session{TenantID: tenant.TenantID, ConvID: "conv-1", Channel: tenancy.ChannelVoice}
}

// TestHappyPathBooksAppointment drives START through CONFIRMED.
func TestHappyPathBooksAppointment(t *testing.T) {
	slot := session.PendingSlot{ID: "slot-1", Label: "lundi 9h", LabelVocal: "lundi neuf heures"}
	adapter := &fakeAdapter{canPropose: true, slots: []session.PendingSlot{slot}, bookOutcome: booking.OutcomeBooked}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateExtract

	step(t, e, sess, tenant, "Jean Dupont")
	if sess.State != StateQualifMotif {
		t.Fatalf("expected QUALIF_MOTIF after name, got %s", sess.State)
	}

	step(t, e, sess, tenant, "Consultation de suivi")
	if sess.State != StateQualifPref {
		t.Fatalf("expected QUALIF_PREF after motif, got %s", sess.State)
	}

	reply := step(t, e, sess, tenant, "le matin")
	if sess.State != StateWaitConfirm {
		t.Fatalf("expected WAIT_CONFIRM after preference, got %s", sess.State)
	}
	if reply.Text == "" {
		t.Fatal("expected slot proposal text")
	}

	step(t, e, sess, tenant, "1")
	if sess.State != StateQualifContact {
		t.Fatalf("expected QUALIF_CONTACT after slot pick, got %s", sess.State)
	}

	step(t, e, sess, tenant, "jean@example.com")
	if sess.State != StateContactConfirm {
		t.Fatalf("expected CONTACT_CONFIRM after email, got %s", sess.State)
	}

	reply = step(t, e, sess, tenant, "oui")
	if sess.State != StateConfirmed {
		t.Fatalf("expected CONFIRMED after contact confirm, got %s", sess.State)
	}
	if !reply.EndCall {
		t.Fatal("expected EndCall on confirmation")
	}
	if len(adapter.bookedEvents) != 1 {
		t.Fatalf("expected exactly one booking call, got %d", len(adapter.bookedEvents))
	}
}

// TestEmergencyGuardShortCircuits asserts an emergency utterance latches
// the session regardless of its current state, and is only audited once.
func TestEmergencyGuardShortCircuits(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateQualifMotif

	reply := step(t, e, sess, tenant, "j'ai une douleur thoracique intense et je ne respire plus bien")
	if sess.State != StateEmergency {
		t.Fatalf("expected EMERGENCY, got %s", sess.State)
	}
	if reply.Text == "" {
		t.Fatal("expected a non-empty emergency script")
	}

	audit := e.Audit.(*fakeAudit)
	if audit.emergencies != 1 {
		t.Fatalf("expected exactly one emergency audit event, got %d", audit.emergencies)
	}

	step(t, e, sess, tenant, "toujours pareil")
	if audit.emergencies != 1 {
		t.Fatalf("expected emergency audit event to stay at 1 after re-entry, got %d", audit.emergencies)
	}
	if sess.State != StateEmergency {
		t.Fatalf("expected session to remain in EMERGENCY, got %s", sess.State)
	}
}

// TestIntentOverridePreemptsCurrentState asserts CANCEL preempts QUALIF_MOTIF.
func TestIntentOverridePreemptsCurrentState(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateQualifMotif

	step(t, e, sess, tenant, "en fait je veux annuler mon rendez-vous")
	if sess.State != StateCancelName {
		t.Fatalf("expected CANCEL_NAME after cancel override, got %s", sess.State)
	}
}

// TestIntentOverridePingPongCollapsesToIntentRouter asserts two identical
// overrides in a row force a trip to INTENT_ROUTER instead of looping.
func TestIntentOverridePingPongCollapsesToIntentRouter(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateQualifMotif

	step(t, e, sess, tenant, "je veux annuler mon rendez-vous")
	if sess.State != StateCancelName {
		t.Fatalf("expected CANCEL_NAME, got %s", sess.State)
	}

	reply := step(t, e, sess, tenant, "je veux annuler mon rendez-vous")
	if sess.State != StateIntentRouter {
		t.Fatalf("expected INTENT_ROUTER on repeated override, got %s", sess.State)
	}
	if reply.Text == "" {
		t.Fatal("expected non-empty acknowledgment")
	}
}

// TestBargeInDuringSlotEnumeration asserts a valid slot choice during
// WAIT_CONFIRM with IsReadingSlots still true preempts the rest of the list.
func TestBargeInDuringSlotEnumeration(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateWaitConfirm
	sess.IsReadingSlots = true
	sess.PendingSlots = []session.PendingSlot{
		{ID: "s1", Label: "lundi 9h"},
		{ID: "s2", Label: "mardi 10h"},
	}

	step(t, e, sess, tenant, "2")
	if sess.State != StateQualifContact {
		t.Fatalf("expected QUALIF_CONTACT after barge-in pick, got %s", sess.State)
	}
	if sess.IsReadingSlots {
		t.Fatal("expected IsReadingSlots cleared after barge-in")
	}
	if sess.PendingSlotChoice == nil || *sess.PendingSlotChoice != 2 {
		t.Fatalf("expected slot choice 2 recorded, got %v", sess.PendingSlotChoice)
	}
}

// TestCancelConfirmRoutesToTransferWhenProviderNone ensures the FSM never
// claims a cancellation occurred when there is no calendar to cancel
// against (spec.md "never claim an outcome that didn't occur").
func TestCancelConfirmRoutesToTransferWhenProviderNone(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	tenant.Config.CalendarProvider = tenancy.CalendarProviderNone
	sess := newSession(tenant)
	sess.State = StateCancelConfirm
	sess.CancelBooking = &session.PendingCancelBooking{Label: "lundi 9h"}

	reply := step(t, e, sess, tenant, "oui")
	if sess.State != StateTransferred {
		t.Fatalf("expected TRANSFERRED, got %s", sess.State)
	}
	if !reply.EndCall {
		t.Fatal("expected EndCall on transfer")
	}
}

// TestCancelConfirmRoutesToTransferOnCancelFailure ensures a failed
// provider cancel never reports success.
func TestCancelConfirmRoutesToTransferOnCancelFailure(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true, cancelOK: false, cancelErr: errors.New("provider down")}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateCancelConfirm
	sess.CancelBooking = &session.PendingCancelBooking{ExternalEventID: "evt-1", Label: "lundi 9h"}

	step(t, e, sess, tenant, "oui")
	if sess.State != StateTransferred {
		t.Fatalf("expected TRANSFERRED on cancel failure, got %s", sess.State)
	}
}

// TestFinalizeBookingIdempotentReplayConfirmsWithoutRebooking asserts a
// retried turn against an already-reserved idempotency key confirms
// without calling Book a second time.
func TestFinalizeBookingIdempotentReplayConfirmsWithoutRebooking(t *testing.T) {
	slot := session.PendingSlot{ID: "slot-9", Label: "mardi 10h"}
	adapter := &fakeAdapter{canPropose: true, bookOutcome: booking.OutcomeBooked}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.PendingSlots = []session.PendingSlot{slot}
	idx := 1
	sess.PendingSlotChoice = &idx
	sess.Qualif = session.Qualif{Name: "Jean Dupont", Motif: "suivi", Contact: "jean@example.com", ContactKind: session.ContactKindEmail}
	sess.State = StateContactConfirm

	ledger := idempotency.NewLedger(&alwaysUsedDynamo{}, "idempotency_keys", time.Hour)
	e.Idempotent = ledger

	reply := step(t, e, sess, tenant, "oui")
	if sess.State != StateConfirmed {
		t.Fatalf("expected CONFIRMED on idempotent replay, got %s", sess.State)
	}
	if !reply.EndCall {
		t.Fatal("expected EndCall on confirmation")
	}
	if len(adapter.bookedEvents) != 0 {
		t.Fatalf("expected no Book call on an already-used idempotency key, got %d", len(adapter.bookedEvents))
	}
}

// TestQualifContactAccumulatesPhoneDigitsAcrossTurns asserts voice digit
// fragments commit once 10 digits are accumulated.
func TestQualifContactAccumulatesPhoneDigitsAcrossTurns(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateQualifContact

	step(t, e, sess, tenant, "06")
	if sess.State != StateQualifContact {
		t.Fatalf("expected to stay in QUALIF_CONTACT after partial digits, got %s", sess.State)
	}

	step(t, e, sess, tenant, "12 34 56")
	if sess.State != StateQualifContact {
		t.Fatalf("expected to stay in QUALIF_CONTACT with only 8 digits accumulated, got %s", sess.State)
	}

	reply := step(t, e, sess, tenant, "78")
	if sess.State != StateContactConfirm {
		t.Fatalf("expected CONTACT_CONFIRM once 10 digits accumulate, got %s", sess.State)
	}
	if reply.Text == "" {
		t.Fatal("expected a confirmation prompt")
	}
}

// TestEmptyMessageAntiLoopGuard asserts three consecutive blank turns
// escalate to INTENT_ROUTER rather than looping forever.
func TestEmptyMessageAntiLoopGuard(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)

	step(t, e, sess, tenant, "   ")
	step(t, e, sess, tenant, "")
	reply := step(t, e, sess, tenant, "\t")
	if sess.State != StateIntentRouter {
		t.Fatalf("expected INTENT_ROUTER after repeated blank turns, got %s", sess.State)
	}
	if reply.Text == "" {
		t.Fatal("expected a non-empty menu prompt")
	}
}

// TestTurnCountAntiLoopGuard asserts exceeding the max turn count routes
// to INTENT_ROUTER regardless of state.
func TestTurnCountAntiLoopGuard(t *testing.T) {
	adapter := &fakeAdapter{canPropose: true}
	e, tenant := newTestEngine(adapter)
	sess := newSession(tenant)
	sess.State = StateQualifMotif
	sess.TurnCount = session.MaxTurnsAntiLoop + 1

	reply := step(t, e, sess, tenant, "encore un motif")
	if sess.State != StateIntentRouter {
		t.Fatalf("expected INTENT_ROUTER once max turns exceeded, got %s", sess.State)
	}
	if reply.Text == "" {
		t.Fatal("expected a non-empty menu prompt")
	}
}

// TestHandleTurnSuspendedTenantShortCircuits asserts a suspended tenant
// never reaches Step: the session is left untouched and the reply is the
// fixed suspended-service message (spec.md §5 "tenant-flag cache").
func TestHandleTurnSuspendedTenantShortCircuits(t *testing.T) {
	tenant := tenancy.Tenant{TenantID: 1, Status: tenancy.StatusSuspended}
	e := NewEngine(newFakeStore(), fakeLock{}, &fakeJournal{}, fakeResolver{tenant: tenant}, fakeSelector{adapter: &fakeAdapter{}}, nil, nil, &fakeAudit{}, nil)

	reply, err := e.HandleTurn(context.Background(), tenant.TenantID, "conv-1", Turn{UserText: "bonjour", Channel: tenancy.ChannelVoice})
	if err != nil {
		t.Fatalf("HandleTurn returned error: %v", err)
	}
	if reply.State != StateTransferred {
		t.Fatalf("expected TRANSFERRED, got %s", reply.State)
	}
	if _, ok := e.Sessions.(*fakeStore).m["1:conv-1"]; ok {
		t.Fatal("expected no session to be created for a suspended tenant")
	}
}

// alwaysUsedDynamo simulates a DynamoDB PutItem that always reports the
// conditional check already failed, i.e. the key was already reserved.
type alwaysUsedDynamo struct{}

func (alwaysUsedDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, &types.ConditionalCheckFailedException{}
}
