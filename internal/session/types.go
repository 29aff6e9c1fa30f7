// Package session implements the per-conversation state record (spec.md §3)
// and its hybrid storage (spec.md §4.2): a process-local cache composed
// with a durable Postgres store for web/whatsapp sessions, while voice
// sessions are restored from the journal+checkpoint pair (internal/journal).
package session

import (
	"time"

	"github.com/aurorabook/concierge/internal/recovery"
	"github.com/aurorabook/concierge/internal/tenancy"
)

// State is the FSM state a session currently occupies (internal/fsm owns
// the exhaustive const block; session only needs the string shape to
// serialize it).
type State string

// ContactKind distinguishes the two contact value shapes the FSM accepts.
type ContactKind string

const (
	ContactKindEmail ContactKind = "email"
	ContactKindPhone ContactKind = "phone"
)

// Preference is the caller's stated time-of-day preference.
type Preference string

const (
	PreferenceMorning   Preference = "morning"
	PreferenceAfternoon Preference = "afternoon"
	PreferenceEvening   Preference = "evening"
	PreferenceAny       Preference = "any"
)

// SlotSource distinguishes slots drawn from an external calendar from
// slots drawn from the internal fallback slot table (internal/booking).
type SlotSource string

const (
	SlotSourceCalendar SlotSource = "calendar"
	SlotSourceInternal SlotSource = "internal"
)

// PendingSlot is the canonical slot record (spec.md §3). Booking adapters
// build it from their provider's shape; the session codec reads and writes
// only this shape and does not convert legacy slot shapes.
type PendingSlot struct {
	ID         string     `json:"id"`
	StartISO   string     `json:"start_iso"`
	EndISO     string     `json:"end_iso"`
	Label      string     `json:"label"`
	LabelVocal string     `json:"label_vocal"`
	Day        string     `json:"day"`
	Source     SlotSource `json:"source"`
}

// Qualif holds the partial booking data the FSM accumulates as it
// qualifies a request.
type Qualif struct {
	Name        string      `json:"name,omitempty"`
	Motif       string      `json:"motif,omitempty"`
	Preference  Preference  `json:"preference,omitempty"`
	Contact     string      `json:"contact,omitempty"`
	ContactKind ContactKind `json:"contact_kind,omitempty"`
}

// Complete reports whether name/motif/contact are all present, the
// invariant spec.md §3 requires before a session may reach CONFIRMED.
func (q Qualif) Complete() bool {
	return q.Name != "" && q.Motif != "" && q.Contact != "" &&
		(q.ContactKind == ContactKindEmail || q.ContactKind == ContactKindPhone)
}

// PendingCancelBooking mirrors internal/booking.Booking's shape without
// importing that package (booking depends on session, not the reverse):
// the surfaced booking the FSM is about to cancel or modify, held on the
// session between CANCEL_NAME/MODIFY_NAME and the confirming handler.
type PendingCancelBooking struct {
	ExternalEventID string `json:"external_event_id,omitempty"`
	Label           string `json:"label,omitempty"`
	StartISO        string `json:"start_iso,omitempty"`
	EndISO          string `json:"end_iso,omitempty"`
	Summary         string `json:"summary,omitempty"`
}

// ChannelMessage is a normalized inbound turn handed to the FSM by a
// channel adapter (internal/channels), tenant id attached downstream by C1.
type ChannelMessage struct {
	Channel   tenancy.Channel
	ConvID    string
	UserText  string
	Metadata  map[string]string
	ReceivedAt time.Time
}

// Session is the per-conversation state record (spec.md §3).
type Session struct {
	TenantID int64           `json:"tenant_id"`
	ConvID   string          `json:"conv_id"`
	Channel  tenancy.Channel `json:"channel"`
	State    State           `json:"state"`

	Qualif Qualif `json:"qualif"`

	PendingSlots      []PendingSlot `json:"pending_slots"`
	PendingSlotChoice *int          `json:"pending_slot_choice,omitempty"`
	IsReadingSlots    bool          `json:"is_reading_slots,omitempty"`

	Recovery recovery.Recovery `json:"recovery"`

	TurnCount            int `json:"turn_count"`
	ConsecutiveQuestions int `json:"consecutive_questions"`
	NoMatchTurns         int `json:"no_match_turns"`
	GlobalRecoveryFails  int `json:"global_recovery_fails"`
	EmptyMessageCount    int `json:"empty_message_count"`

	TransferLogged bool   `json:"transfer_logged,omitempty"`
	MotifHelpUsed  bool   `json:"motif_help_used,omitempty"`
	LastIntent     string `json:"last_intent,omitempty"`
	LastState      State  `json:"last_state,omitempty"`

	EmergencyCategory string `json:"emergency_category,omitempty"`

	CancelBooking *PendingCancelBooking `json:"cancel_booking,omitempty"`

	LastSeenAt time.Time `json:"last_seen_at"`
}

// MaxConsecutiveQuestions, MaxTurnsAntiLoop and MaxContextFails mirror the
// anti-loop constants of original_source/backend/session.py.
const (
	MaxConsecutiveQuestions = 3
	MaxTurnsAntiLoop        = 25
	MaxContextFails         = 3
	TTL                     = 15 * time.Minute
)

// Touch refreshes LastSeenAt and increments the turn counter.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now
	s.TurnCount++
}

// IsExpired reports whether the session's TTL has elapsed as of now.
func (s *Session) IsExpired(now time.Time) bool {
	if s.LastSeenAt.IsZero() {
		return false
	}
	return now.Sub(s.LastSeenAt) > TTL
}

// Reset clears qualification/recovery state for a fresh booking flow while
// preserving the caller's contact value across the reset, mirroring
// original_source/backend/session.py's reset().
func (s *Session) Reset() {
	contact := s.Qualif.Contact
	contactKind := s.Qualif.ContactKind
	s.Qualif = Qualif{Contact: contact, ContactKind: contactKind}
	s.PendingSlots = nil
	s.PendingSlotChoice = nil
	s.IsReadingSlots = false
	s.Recovery = recovery.Recovery{}
	s.ConsecutiveQuestions = 0
	s.NoMatchTurns = 0
}

// ValidatePendingSlotChoice enforces spec.md §3's invariant:
// pending_slot_choice ∈ [1, len(pending_slots)] or nil.
func (s *Session) ValidatePendingSlotChoice() bool {
	if s.PendingSlotChoice == nil {
		return true
	}
	idx := *s.PendingSlotChoice
	return idx >= 1 && idx <= len(s.PendingSlots)
}
