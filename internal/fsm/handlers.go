package fsm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aurorabook/concierge/internal/booking"
	"github.com/aurorabook/concierge/internal/faq"
	"github.com/aurorabook/concierge/internal/idempotency"
	"github.com/aurorabook/concierge/internal/intent"
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/slotchoice"
	"github.com/aurorabook/concierge/internal/tenancy"
	"github.com/aurorabook/concierge/internal/triage"
)

const emergencyScript = "Ceci semble être une urgence médicale. Raccrochez et composez le 15 (SAMU) ou le 112 immédiatement."

// handleEmergency implements spec.md §4.7: the session latches into the
// terminal EMERGENCY state and every subsequent message gets the same
// script. The audit event records only the matched category, never the
// raw symptom text, and is written once (the session can only transition
// into EMERGENCY a single time).
func (e *Engine) handleEmergency(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, category triage.Category) (*Reply, error) {
	if sess.State != StateEmergency {
		sess.State = StateEmergency
		sess.EmergencyCategory = string(category)
		if err := e.Audit.RecordEmergency(ctx, tenant.TenantID, sess.ConvID, category); err != nil {
			e.Logger.Error("fsm: record emergency audit event failed", "error", err, "tenant_id", tenant.TenantID, "conv_id", sess.ConvID)
		}
	}
	return &Reply{Text: emergencyScript, State: sess.State}, nil
}

// applyIntentOverride implements spec.md §4.8 stage 4: CANCEL, MODIFY,
// HUMAN_TRANSFER and FAQ_QUESTION preempt the current state regardless of
// what it is. Two identical overrides in a row collapse into a single
// acknowledgment followed by a forced trip to INTENT_ROUTER (the
// "ping-pong" break spec.md names), rather than re-entering the same
// override state forever.
func (e *Engine) applyIntentOverride(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) (*Reply, bool) {
	kind := intent.Detect(turn.UserText)
	if kind == intent.KindNone {
		sess.LastIntent = ""
		return nil, false
	}

	if string(kind) == sess.LastIntent {
		sess.State = StateIntentRouter
		sess.LastIntent = ""
		reply := e.handleIntentRouter(ctx, sess, tenant, turn)
		reply.Text = "D'accord, laissez-moi vous proposer quelques options. " + reply.Text
		return reply, true
	}
	sess.LastIntent = string(kind)

	switch kind {
	case intent.KindCancel:
		sess.State = StateCancelName
		return &Reply{Text: "Très bien, pouvez-vous me redonner le nom du rendez-vous à annuler ?", State: sess.State}, true
	case intent.KindModify:
		sess.State = StateModifyName
		return &Reply{Text: "Pas de problème, pouvez-vous me redonner le nom du rendez-vous à modifier ?", State: sess.State}, true
	case intent.KindHumanTransfer:
		return e.transferToHuman(ctx, sess, tenant, "demande explicite du client"), true
	case intent.KindFAQQuestion:
		sess.State = StateFAQAnswer
		return e.handleFAQAnswer(ctx, sess, tenant, turn), true
	}
	return nil, false
}

// bargeInOnSlotChoice implements spec.md §4.8 stage 5: while the agent's
// slot enumeration is still "live" (IsReadingSlots), a valid choice
// detected by C6 preempts the rest of the list — no reproposal of the
// remaining slots (prompts_interruption.py's "interruption positive").
func (e *Engine) bargeInOnSlotChoice(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) (*Reply, bool) {
	idx, ambiguous := slotchoice.Detect(turn.UserText, sess.PendingSlots)
	sess.IsReadingSlots = false
	if ambiguous || idx == 0 {
		return nil, false
	}
	reply := e.confirmSlotChoice(sess, idx)
	return reply, true
}

// dispatch implements spec.md §4.8 stage 6, one handler per state.
func (e *Engine) dispatch(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	switch sess.State {
	case StateStart:
		return e.handleStart(ctx, sess, tenant, turn)
	case StateExtract:
		return e.handleExtract(ctx, sess, tenant, turn)
	case StateQualifName:
		return e.handleQualifName(ctx, sess, tenant, turn)
	case StateQualifMotif:
		return e.handleQualifMotif(ctx, sess, tenant, turn)
	case StateQualifPref:
		return e.handleQualifPref(ctx, sess, tenant, turn)
	case StateProposeSlots:
		return e.handleProposeSlots(ctx, sess, tenant, turn)
	case StateWaitConfirm:
		return e.handleWaitConfirm(ctx, sess, tenant, turn)
	case StateQualifContact:
		return e.handleQualifContact(ctx, sess, tenant, turn)
	case StateContactConfirm:
		return e.handleContactConfirm(ctx, sess, tenant, turn)
	case StateIntentRouter:
		return e.handleIntentRouter(ctx, sess, tenant, turn)
	case StateCancelName:
		return e.handleCancelName(ctx, sess, tenant, turn)
	case StateCancelConfirm:
		return e.handleCancelConfirm(ctx, sess, tenant, turn)
	case StateModifyName:
		return e.handleModifyName(ctx, sess, tenant, turn)
	case StateModifySlotPick:
		return e.handleModifySlotPick(ctx, sess, tenant, turn)
	case StateFAQAnswer:
		return e.handleFAQAnswer(ctx, sess, tenant, turn)
	default:
		sess.State = StateStart
		return e.handleStart(ctx, sess, tenant, turn)
	}
}

func (e *Engine) handleStart(_ context.Context, sess *session.Session, _ tenancy.Tenant, _ Turn) *Reply {
	sess.State = StateExtract
	return &Reply{Text: "Bonjour, je suis l'assistant de prise de rendez-vous. Quel est votre nom complet ?", State: sess.State}
}

// handleExtract accepts a name directly if the opening turn already
// carried one, otherwise falls through to QUALIF_NAME's own prompt.
func (e *Engine) handleExtract(_ context.Context, sess *session.Session, _ tenancy.Tenant, turn Turn) *Reply {
	if name := cleanName(turn.UserText); name != "" {
		sess.Qualif.Name = name
		sess.State = StateQualifMotif
		return &Reply{Text: fmt.Sprintf("Merci %s. Quel est le motif de votre rendez-vous ?", name), State: sess.State}
	}
	sess.State = StateQualifName
	return &Reply{Text: "Pouvez-vous me donner votre nom complet ?", State: sess.State}
}

func (e *Engine) handleQualifName(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	name := cleanName(turn.UserText)
	if name == "" {
		sess.Recovery.Inc("name.fails")
		if sess.Recovery.Escalates("name") {
			sess.State = StateIntentRouter
			return e.handleIntentRouter(ctx, sess, tenant, turn)
		}
		return &Reply{Text: "Je n'ai pas bien saisi, quel est votre nom complet ?", State: sess.State}
	}
	sess.Recovery.Reset("name")
	sess.Qualif.Name = name
	sess.State = StateQualifMotif
	return &Reply{Text: fmt.Sprintf("Merci %s. Quel est le motif de votre rendez-vous ?", name), State: sess.State}
}

func (e *Engine) handleQualifMotif(_ context.Context, sess *session.Session, _ tenancy.Tenant, turn Turn) *Reply {
	motif := strings.TrimSpace(turn.UserText)
	if motif == "" {
		return &Reply{Text: "Quel est le motif de votre rendez-vous ?", State: sess.State}
	}
	sess.Qualif.Motif = motif
	sess.State = StateQualifPref
	return &Reply{Text: "Préférez-vous un créneau le matin, l'après-midi, ou en soirée ?", State: sess.State}
}

func (e *Engine) handleQualifPref(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	pref, ok := parsePreference(turn.UserText)
	if !ok {
		sess.Recovery.Inc("preference.fails")
		if sess.Recovery.Escalates("preference") {
			pref = session.PreferenceAny
		} else {
			return &Reply{Text: "Pardon, dites-moi si vous préférez le matin, l'après-midi, ou le soir.", State: sess.State}
		}
	}
	sess.Recovery.Reset("preference")
	sess.Qualif.Preference = pref
	sess.State = StateProposeSlots
	return e.handleProposeSlots(ctx, sess, tenant, turn)
}

func (e *Engine) handleProposeSlots(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, _ Turn) *Reply {
	adapter := e.Booking.For(tenant.Config)
	if !adapter.CanProposeSlots() {
		return e.transferToHuman(ctx, sess, tenant, "aucun calendrier connecté")
	}

	slots, err := adapter.ListFreeSlots(ctx, tenant.TenantID, time.Now(), 30*time.Minute, booking.DefaultWindow, 3, sess.Qualif.Preference)
	if err != nil || len(slots) == 0 {
		e.Logger.Warn("fsm: list free slots failed or empty", "error", err, "tenant_id", tenant.TenantID)
		return e.transferToHuman(ctx, sess, tenant, "aucun créneau disponible")
	}

	sess.PendingSlots = slots
	sess.PendingSlotChoice = nil
	sess.IsReadingSlots = true
	sess.State = StateWaitConfirm

	var b strings.Builder
	b.WriteString("Voici les créneaux disponibles : ")
	for i, s := range slots {
		fmt.Fprintf(&b, "%s, dites %d. ", s.LabelVocal, i+1)
	}
	return &Reply{Text: strings.TrimSpace(b.String()), State: sess.State}
}

// handleWaitConfirm implements spec.md §4.8's WAIT_CONFIRM handler: parse
// with C6 against the frozen pending_slots ordering; an ambiguous answer
// gets one stricter re-ask before escalating.
func (e *Engine) handleWaitConfirm(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	idx, ambiguous := slotchoice.Detect(turn.UserText, sess.PendingSlots)
	if !ambiguous && idx > 0 {
		return e.confirmSlotChoice(sess, idx)
	}

	sess.Recovery.Inc("slot_choice.fails")
	if sess.Recovery.ConfirmContact.IntentRepeat == 0 {
		sess.Recovery.ConfirmContact.IntentRepeat++
		return &Reply{Text: "Pour être sûr, dites simplement 1, 2 ou 3 pour choisir votre créneau.", State: sess.State}
	}
	sess.State = StateIntentRouter
	return e.handleIntentRouter(ctx, sess, tenant, turn)
}

// confirmSlotChoice is shared by the normal WAIT_CONFIRM handler and the
// barge-in path (stage 5), so both ways of choosing a slot produce the
// exact same confirmation + next-state transition.
func (e *Engine) confirmSlotChoice(sess *session.Session, idx int) *Reply {
	if idx < 1 || idx > len(sess.PendingSlots) {
		return &Reply{Text: "Pouvez-vous répéter votre choix de créneau ?", State: sess.State}
	}
	chosen := sess.PendingSlots[idx-1]
	sess.PendingSlotChoice = &idx
	sess.Recovery.Reset("slot_choice")
	sess.Recovery.ConfirmContact.IntentRepeat = 0
	sess.State = StateQualifContact
	return &Reply{
		Text:  fmt.Sprintf("Parfait ! %s, c'est noté. Quel est votre email ou votre numéro de téléphone pour confirmer ?", chosen.Label),
		State: sess.State,
	}
}

var digitsOnly = regexp.MustCompile(`[0-9]`)
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// handleQualifContact implements spec.md §4.8's key QUALIF_CONTACT
// handler: a free-form email commits immediately; voice digit fragments
// accumulate across turns in recovery.phone.partial until a normalized
// 10-digit French number is reached.
func (e *Engine) handleQualifContact(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	text := strings.TrimSpace(turn.UserText)

	if emailRe.MatchString(text) {
		sess.Qualif.Contact = text
		sess.Qualif.ContactKind = session.ContactKindEmail
		sess.Recovery.Reset("contact")
		sess.Recovery.Reset("phone")
		sess.State = StateContactConfirm
		return &Reply{Text: fmt.Sprintf("Je confirme votre email : %s. C'est bien ça ?", text), State: sess.State}
	}

	digits := digitsOnly.FindAllString(text, -1)
	fragment := strings.Join(digits, "")
	if fragment != "" {
		sess.Recovery.Phone.Partial += fragment
		sess.Recovery.Phone.Turns++
	}

	if normalized, ok := normalizeFrenchPhone(sess.Recovery.Phone.Partial); ok {
		sess.Qualif.Contact = normalized
		sess.Qualif.ContactKind = session.ContactKindPhone
		sess.Recovery.Reset("contact")
		sess.Recovery.Reset("phone")
		sess.State = StateContactConfirm
		return &Reply{Text: fmt.Sprintf("Je confirme votre numéro : %s. C'est bien ça ?", normalized), State: sess.State}
	}

	sess.Recovery.Inc("contact.fails")
	if sess.Recovery.Escalates("contact") {
		sess.Recovery.Contact.Mode = "alternate"
		sess.State = StateIntentRouter
		return e.handleIntentRouter(ctx, sess, tenant, turn)
	}
	return &Reply{Text: "Je n'ai pas tout capté, pouvez-vous redonner votre numéro ou votre email ?", State: sess.State}
}

// handleContactConfirm implements spec.md §4.8's CONTACT_CONFIRM handler:
// re-read the contact, three ambiguous responses escalate.
func (e *Engine) handleContactConfirm(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	switch confirmationAnswer(turn.UserText) {
	case answerYes:
		sess.Recovery.Reset("confirm_contact")
		return e.finalizeBooking(ctx, sess, tenant)
	case answerNo:
		sess.Recovery.Reset("confirm_contact")
		sess.Qualif.Contact = ""
		sess.Qualif.ContactKind = ""
		sess.Recovery.Reset("phone")
		sess.State = StateQualifContact
		return &Reply{Text: "D'accord, redonnez-moi votre email ou votre numéro.", State: sess.State}
	default:
		sess.Recovery.Inc("confirm_contact.fails")
		if sess.Recovery.Escalates("confirm_contact") {
			sess.State = StateIntentRouter
			return e.handleIntentRouter(ctx, sess, tenant, turn)
		}
		return &Reply{Text: "Je n'ai pas compris, confirmez-vous ce contact : oui ou non ?", State: sess.State}
	}
}

// finalizeBooking calls C9's Book, guarded by an idempotency key so a
// retried turn can never double-book (spec.md §4.8 anti-loop/idempotence,
// §4.9 invariant on reported outcomes).
func (e *Engine) finalizeBooking(ctx context.Context, sess *session.Session, tenant tenancy.Tenant) *Reply {
	if sess.PendingSlotChoice == nil || *sess.PendingSlotChoice < 1 || *sess.PendingSlotChoice > len(sess.PendingSlots) {
		return e.transferToHuman(ctx, sess, tenant, "créneau perdu avant confirmation")
	}
	slot := sess.PendingSlots[*sess.PendingSlotChoice-1]

	key := idempotency.Key(tenant.TenantID, "booking", sess.ConvID+":"+slot.ID)
	if e.Idempotent != nil {
		if err := e.Idempotent.Reserve(ctx, key); err != nil && err != idempotency.ErrAlreadyUsed {
			e.Logger.Error("fsm: reserve idempotency key failed", "error", err)
			return e.transferToHuman(ctx, sess, tenant, "erreur technique")
		} else if err == idempotency.ErrAlreadyUsed {
			sess.State = StateConfirmed
			return &Reply{Text: "Votre rendez-vous est confirmé. Merci et à bientôt !", State: sess.State, EndCall: true}
		}
	}

	adapter := e.Booking.For(tenant.Config)
	_, outcome, err := adapter.Book(ctx, tenant.TenantID, slot, sess.Qualif.Name, sess.Qualif.Contact, sess.Qualif.Motif)
	if err != nil || outcome != booking.OutcomeBooked {
		e.Logger.Warn("fsm: booking did not succeed", "error", err, "outcome", outcome, "tenant_id", tenant.TenantID)
		return e.transferToHuman(ctx, sess, tenant, "échec de la réservation")
	}

	sess.State = StateConfirmed
	return &Reply{Text: "Votre rendez-vous est confirmé. Merci et à bientôt !", State: sess.State, EndCall: true}
}

// handleIntentRouter implements spec.md §4.8's INTENT_ROUTER handler: a
// bounded menu, with a second visit within the same call ending the call
// to human transfer.
func (e *Engine) handleIntentRouter(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	if sess.NoMatchTurns > 0 {
		return e.transferToHuman(ctx, sess, tenant, "deuxième passage par le routeur d'intentions")
	}
	sess.NoMatchTurns++
	return &Reply{
		Text:  "Je vous propose de : réserver, annuler, modifier, parler à quelqu'un, ou poser une question. Que souhaitez-vous ?",
		State: sess.State,
	}
}

func (e *Engine) handleCancelName(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	name := cleanName(turn.UserText)
	if name == "" {
		sess.Recovery.Inc("cancel_name.fails")
		if sess.Recovery.Escalates("cancel_name") {
			sess.State = StateIntentRouter
			return e.handleIntentRouter(ctx, sess, tenant, turn)
		}
		return &Reply{Text: "Quel est le nom sur le rendez-vous à annuler ?", State: sess.State}
	}

	if tenant.Config.CalendarProvider == tenancy.CalendarProviderNone {
		return e.transferToHuman(ctx, sess, tenant, "aucun calendrier connecté pour l'annulation")
	}

	adapter := e.Booking.For(tenant.Config)
	found, err := adapter.FindBookingByName(ctx, tenant.TenantID, name)
	if err != nil || found == nil {
		return e.transferToHuman(ctx, sess, tenant, "rendez-vous introuvable pour l'annulation")
	}

	sess.CancelBooking = toPendingCancelBooking(found)
	sess.State = StateCancelConfirm
	return &Reply{Text: fmt.Sprintf("J'ai trouvé un rendez-vous %s, confirmez-vous l'annulation ?", found.Label), State: sess.State}
}

// handleCancelConfirm implements spec.md §4.8's CANCEL_CONFIRM handler:
// never claim a cancellation that did not occur. If the surfaced booking
// has no external event handle AND the provider is none, or the cancel
// call itself fails, route to TRANSFERRED with an apology.
func (e *Engine) handleCancelConfirm(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	booked := sess.CancelBooking
	switch confirmationAnswer(turn.UserText) {
	case answerYes:
		if booked == nil {
			return e.transferToHuman(ctx, sess, tenant, "rendez-vous perdu avant confirmation d'annulation")
		}
		if booked.ExternalEventID == "" && tenant.Config.CalendarProvider == tenancy.CalendarProviderNone {
			return e.transferToHuman(ctx, sess, tenant, "aucun calendrier connecté pour l'annulation")
		}
		adapter := e.Booking.For(tenant.Config)
		ok, err := adapter.Cancel(ctx, tenant.TenantID, fromPendingCancelBooking(booked))
		if err != nil || !ok {
			return e.transferToHuman(ctx, sess, tenant, "échec technique de l'annulation")
		}
		sess.State = StateConfirmed
		sess.CancelBooking = nil
		return &Reply{Text: "C'est annulé. Bonne journée !", State: sess.State, EndCall: true}
	case answerNo:
		sess.CancelBooking = nil
		sess.State = StateIntentRouter
		return e.handleIntentRouter(ctx, sess, tenant, turn)
	default:
		sess.Recovery.Inc("cancel_name.fails")
		if sess.Recovery.Escalates("cancel_name") {
			sess.State = StateIntentRouter
			return e.handleIntentRouter(ctx, sess, tenant, turn)
		}
		return &Reply{Text: "Confirmez-vous l'annulation de ce rendez-vous : oui ou non ?", State: sess.State}
	}
}

func (e *Engine) handleModifyName(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	name := cleanName(turn.UserText)
	if name == "" {
		sess.Recovery.Inc("modify_name.fails")
		if sess.Recovery.Escalates("modify_name") {
			sess.State = StateIntentRouter
			return e.handleIntentRouter(ctx, sess, tenant, turn)
		}
		return &Reply{Text: "Quel est le nom sur le rendez-vous à modifier ?", State: sess.State}
	}
	if tenant.Config.CalendarProvider == tenancy.CalendarProviderNone {
		return e.transferToHuman(ctx, sess, tenant, "aucun calendrier connecté pour la modification")
	}

	adapter := e.Booking.For(tenant.Config)
	found, err := adapter.FindBookingByName(ctx, tenant.TenantID, name)
	if err != nil || found == nil {
		return e.transferToHuman(ctx, sess, tenant, "rendez-vous introuvable pour la modification")
	}
	sess.CancelBooking = toPendingCancelBooking(found)

	slots, err := adapter.ListFreeSlots(ctx, tenant.TenantID, time.Now(), 30*time.Minute, booking.DefaultWindow, 3, session.PreferenceAny)
	if err != nil || len(slots) == 0 {
		return e.transferToHuman(ctx, sess, tenant, "aucun créneau disponible pour la modification")
	}
	sess.PendingSlots = slots
	sess.PendingSlotChoice = nil
	sess.State = StateModifySlotPick

	var b strings.Builder
	b.WriteString("Voici les nouveaux créneaux disponibles : ")
	for i, s := range slots {
		fmt.Fprintf(&b, "%s, dites %d. ", s.LabelVocal, i+1)
	}
	return &Reply{Text: strings.TrimSpace(b.String()), State: sess.State}
}

// handleModifySlotPick cancels the old booking and books the new slot,
// both guarded individually so a partial failure never leaves the caller
// believing the change completed.
func (e *Engine) handleModifySlotPick(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	idx, ambiguous := slotchoice.Detect(turn.UserText, sess.PendingSlots)
	if ambiguous || idx == 0 {
		return &Reply{Text: "Dites simplement 1, 2 ou 3 pour choisir le nouveau créneau.", State: sess.State}
	}

	old := sess.CancelBooking
	adapter := e.Booking.For(tenant.Config)
	if old != nil {
		if ok, err := adapter.Cancel(ctx, tenant.TenantID, fromPendingCancelBooking(old)); err != nil || !ok {
			return e.transferToHuman(ctx, sess, tenant, "échec de l'annulation lors de la modification")
		}
	}

	slot := sess.PendingSlots[idx-1]
	key := idempotency.Key(tenant.TenantID, "booking", sess.ConvID+":modify:"+slot.ID)
	if e.Idempotent != nil {
		if err := e.Idempotent.Reserve(ctx, key); err != nil && err != idempotency.ErrAlreadyUsed {
			return e.transferToHuman(ctx, sess, tenant, "erreur technique lors de la modification")
		}
	}

	_, outcome, err := adapter.Book(ctx, tenant.TenantID, slot, sess.Qualif.Name, sess.Qualif.Contact, sess.Qualif.Motif)
	if err != nil || outcome != booking.OutcomeBooked {
		return e.transferToHuman(ctx, sess, tenant, "échec de la nouvelle réservation lors de la modification")
	}

	sess.State = StateConfirmed
	sess.CancelBooking = nil
	return &Reply{Text: fmt.Sprintf("C'est modifié : %s. Merci et à bientôt !", slot.Label), State: sess.State, EndCall: true}
}

func (e *Engine) handleFAQAnswer(_ context.Context, sess *session.Session, tenant tenancy.Tenant, turn Turn) *Reply {
	facts := faq.Facts{BusinessName: tenant.Config.BusinessName}
	answer, ok := faq.Answer(turn.UserText, facts)
	if !ok {
		answer = faq.Fallback(tenant.Config.BusinessName)
	}

	if sess.LastState == "" || sess.LastState == StateFAQAnswer || sess.LastState == StateStart {
		sess.State = StateQualifPref
	} else {
		sess.State = sess.LastState
	}
	return &Reply{Text: answer + " Reprenons votre rendez-vous.", State: sess.State}
}

// transferToHuman hands the call off to a person, notifying via C9's
// TransferNotifier when a qualified request exists, and writes the
// transfer_logged audit event exactly once per call (spec.md §4.8
// anti-loop/idempotence).
func (e *Engine) transferToHuman(ctx context.Context, sess *session.Session, tenant tenancy.Tenant, reason string) *Reply {
	if !sess.TransferLogged {
		sess.TransferLogged = true
		if err := e.Audit.RecordTransfer(ctx, tenant.TenantID, sess.ConvID, reason); err != nil {
			e.Logger.Error("fsm: record transfer audit event failed", "error", err)
		}
		if e.Transfer != nil && sess.Qualif.Name != "" {
			req := booking.QualifiedRequest{
				TenantID:       tenant.TenantID,
				ConvID:         sess.ConvID,
				BusinessName:   tenant.Config.BusinessName,
				PatientName:    sess.Qualif.Name,
				PatientContact: sess.Qualif.Contact,
				Motif:          sess.Qualif.Motif,
				Preference:     string(sess.Qualif.Preference),
				Notes:          reason,
				CollectedAt:    time.Now(),
			}
			if _, err := e.Transfer.Notify(ctx, req); err != nil {
				e.Logger.Error("fsm: transfer notify failed", "error", err)
			}
		}
	}
	sess.State = StateTransferred
	return &Reply{Text: "Je vous transfère à un membre de l'équipe qui va finaliser votre demande.", State: sess.State, EndCall: true}
}

// --- small parsing helpers, grounded on the same deterministic-keyword
// idiom as internal/slotchoice and internal/triage. ---

type confirmation int

const (
	answerUnclear confirmation = iota
	answerYes
	answerNo
)

var yesWords = map[string]bool{"oui": true, "ouais": true, "d'accord": true, "daccord": true, "ok": true, "parfait": true, "exact": true, "exactement": true, "c'est ça": true, "cest ca": true}
var noWords = map[string]bool{"non": true, "pas du tout": true, "incorrect": true, "faux": true}

func confirmationAnswer(text string) confirmation {
	t := strings.ToLower(strings.TrimSpace(text))
	if yesWords[t] {
		return answerYes
	}
	if noWords[t] {
		return answerNo
	}
	for w := range yesWords {
		if strings.Contains(t, w) {
			return answerYes
		}
	}
	for w := range noWords {
		if strings.Contains(t, w) {
			return answerNo
		}
	}
	return answerUnclear
}

func cleanName(text string) string {
	t := strings.TrimSpace(text)
	if t == "" || len(t) < 2 {
		return ""
	}
	if digitsOnly.MatchString(t) && len(digitsOnly.FindAllString(t, -1)) > len(t)/2 {
		return ""
	}
	return t
}

func parsePreference(text string) (session.Preference, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "matin"):
		return session.PreferenceMorning, true
	case strings.Contains(t, "midi"), strings.Contains(t, "après-midi"), strings.Contains(t, "apres-midi"), strings.Contains(t, "après midi"):
		return session.PreferenceAfternoon, true
	case strings.Contains(t, "soir"):
		return session.PreferenceEvening, true
	case strings.Contains(t, "import"), strings.Contains(t, "n'importe"), strings.Contains(t, "peu importe"):
		return session.PreferenceAny, true
	}
	return "", false
}

// normalizeFrenchPhone commits a run of accumulated digits once it reaches
// 10 digits in French local form (starting with a trunk "0"); original_source
// only sketches the accumulation field (recovery.py's "phone.partial")
// without specifying the commit rule, so the 10-digit French convention is
// authored fresh here, consistent with the rest of the module's French
// locale choices (internal/slotchoice, internal/triage).
func normalizeFrenchPhone(partial string) (string, bool) {
	if len(partial) < 10 {
		return "", false
	}
	candidate := partial[:10]
	if candidate[0] != '0' {
		return "", false
	}
	return candidate, true
}

// toPendingCancelBooking/fromPendingCancelBooking convert between C9's
// booking.Booking and the session-owned mirror of it, since session
// cannot import booking (booking imports session for PendingSlot).
func toPendingCancelBooking(b *booking.Booking) *session.PendingCancelBooking {
	if b == nil {
		return nil
	}
	return &session.PendingCancelBooking{
		ExternalEventID: b.ExternalEventID,
		Label:           b.Label,
		StartISO:        b.StartISO,
		EndISO:          b.EndISO,
		Summary:         b.Summary,
	}
}

func fromPendingCancelBooking(b *session.PendingCancelBooking) *booking.Booking {
	if b == nil {
		return nil
	}
	return &booking.Booking{
		ExternalEventID: b.ExternalEventID,
		Label:           b.Label,
		StartISO:        b.StartISO,
		EndISO:          b.EndISO,
		Summary:         b.Summary,
	}
}
