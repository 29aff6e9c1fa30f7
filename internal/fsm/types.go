// Package fsm is the conversation state machine (spec.md §4.8), the core
// of the core: every other package (C1/C2/C4/C5/C6/C7/C9) is composed here
// behind a single Step entrypoint, grounded on the teacher's
// internal/conversation.Orchestrator turn-dispatch shape, generalized from
// a single linear intake flow to the full booking/cancel/modify/FAQ state
// graph spec.md §4.8 names.
package fsm

import (
	"github.com/aurorabook/concierge/internal/session"
	"github.com/aurorabook/concierge/internal/tenancy"
)

// State is the exhaustive set of FSM states (spec.md §4.8).
const (
	StateStart           session.State = "START"
	StateExtract         session.State = "EXTRACT"
	StateQualifName      session.State = "QUALIF_NAME"
	StateQualifMotif     session.State = "QUALIF_MOTIF"
	StateQualifPref      session.State = "QUALIF_PREF"
	StateProposeSlots    session.State = "PROPOSE_SLOTS"
	StateWaitConfirm     session.State = "WAIT_CONFIRM"
	StateQualifContact   session.State = "QUALIF_CONTACT"
	StateContactConfirm  session.State = "CONTACT_CONFIRM"
	StateConfirmed       session.State = "CONFIRMED" // terminal

	StateEmergency    session.State = "EMERGENCY"   // terminal
	StateTransferred  session.State = "TRANSFERRED" // terminal
	StateIntentRouter session.State = "INTENT_ROUTER"

	StateCancelName     session.State = "CANCEL_NAME"
	StateCancelConfirm  session.State = "CANCEL_CONFIRM"
	StateModifyName     session.State = "MODIFY_NAME"
	StateModifySlotPick session.State = "MODIFY_SLOT_PICK"
	StateFAQAnswer      session.State = "FAQ_ANSWER"
)

// terminalStates end further FSM progression: any further message re-emits
// the terminal-state utterance (spec.md §4.8 "Initial: START").
var terminalStates = map[session.State]bool{
	StateConfirmed:   true,
	StateEmergency:   true,
	StateTransferred: true,
}

// IsTerminal reports whether s ends further FSM progress.
func IsTerminal(s session.State) bool {
	return terminalStates[s]
}

// preBookingStates are the early-intake states where a caution-level triage
// keyword should fast-track the caller into slot preferences (spec.md §4.7):
// no contact info or slot choice has been collected yet, so there is no
// booking progress to discard. Once the caller has reached slot proposal,
// confirmation, or contact capture, a caution keyword no longer reroutes
// the state, since doing so would throw away that progress.
var preBookingStates = map[session.State]bool{
	StateStart:        true,
	StateExtract:      true,
	StateQualifName:   true,
	StateQualifMotif:  true,
	StateQualifPref:   true,
	StateIntentRouter: true,
}

// IsPreBooking reports whether s is still in early intake, before any slot
// or contact-capture progress exists to protect.
func IsPreBooking(s session.State) bool {
	return preBookingStates[s]
}

// Turn is one normalized inbound message handed to Step.
type Turn struct {
	UserText string
	Channel  tenancy.Channel
	Metadata map[string]string
}

// Reply is what the FSM produced for one turn.
type Reply struct {
	Text    string
	State   session.State
	EndCall bool // end the call after this reply: set by the CONFIRMED/TRANSFERRED handlers and the suspended-tenant reply, never for EMERGENCY
}
