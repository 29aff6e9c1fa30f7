// Package recovery implements the namespaced failure counters that drive
// per-context escalation to the FSM's INTENT_ROUTER state (spec.md §4.5),
// ported field-for-field from original_source/backend/recovery.py and
// re-expressed as typed fields per spec.md §9's redesign guidance (a
// concrete record, not a string-keyed dict walked by reflection).
package recovery

// EscalationThreshold is the failure count at which a context escalates
// (spec.md §4.5: "three failures on any single context").
const EscalationThreshold = 3

// Recovery holds every dotted-path namespace spec.md §3 names.
type Recovery struct {
	Contact struct {
		Fails int    `json:"fails,omitempty"`
		Retry int    `json:"retry,omitempty"`
		Mode  string `json:"mode,omitempty"`
	} `json:"contact,omitempty"`

	Phone struct {
		Partial string `json:"partial,omitempty"`
		Turns   int    `json:"turns,omitempty"`
	} `json:"phone,omitempty"`

	ConfirmContact struct {
		Fails        int `json:"fails,omitempty"`
		IntentRepeat int `json:"intent_repeat,omitempty"`
	} `json:"confirm_contact,omitempty"`

	SlotChoice struct {
		Fails int `json:"fails,omitempty"`
	} `json:"slot_choice,omitempty"`

	Name struct {
		Fails int `json:"fails,omitempty"`
	} `json:"name,omitempty"`

	Preference struct {
		Fails int `json:"fails,omitempty"`
	} `json:"preference,omitempty"`

	ConfirmSlot struct {
		Retry int `json:"retry,omitempty"`
	} `json:"confirm_slot,omitempty"`

	FAQ struct {
		Fails int `json:"fails,omitempty"`
	} `json:"faq,omitempty"`

	CancelName struct {
		Fails int `json:"fails,omitempty"`
	} `json:"cancel_name,omitempty"`

	ModifyName struct {
		Fails int `json:"fails,omitempty"`
	} `json:"modify_name,omitempty"`
}

// topLevelCounter returns a pointer to the fails counter for one of the
// escalation contexts spec.md §4.5 names, or nil for paths with no single
// "fails" counter (e.g. "phone.turns").
func (r *Recovery) topLevelCounter(topKey string) *int {
	switch topKey {
	case "contact":
		return &r.Contact.Fails
	case "confirm_contact":
		return &r.ConfirmContact.Fails
	case "slot_choice":
		return &r.SlotChoice.Fails
	case "name":
		return &r.Name.Fails
	case "preference":
		return &r.Preference.Fails
	case "faq":
		return &r.FAQ.Fails
	case "cancel_name":
		return &r.CancelName.Fails
	case "modify_name":
		return &r.ModifyName.Fails
	default:
		return nil
	}
}

// Get returns a dotted-path counter value. Unknown paths return 0.
func (r *Recovery) Get(path string) int {
	switch path {
	case "contact.fails":
		return r.Contact.Fails
	case "contact.retry":
		return r.Contact.Retry
	case "phone.turns":
		return r.Phone.Turns
	case "confirm_contact.fails":
		return r.ConfirmContact.Fails
	case "confirm_contact.intent_repeat":
		return r.ConfirmContact.IntentRepeat
	case "slot_choice.fails":
		return r.SlotChoice.Fails
	case "name.fails":
		return r.Name.Fails
	case "preference.fails":
		return r.Preference.Fails
	case "confirm_slot.retry":
		return r.ConfirmSlot.Retry
	case "faq.fails":
		return r.FAQ.Fails
	case "cancel_name.fails":
		return r.CancelName.Fails
	case "modify_name.fails":
		return r.ModifyName.Fails
	default:
		return 0
	}
}

// Inc increments a dotted-path counter and returns its new value.
func (r *Recovery) Inc(path string) int {
	switch path {
	case "contact.fails":
		r.Contact.Fails++
		return r.Contact.Fails
	case "contact.retry":
		r.Contact.Retry++
		return r.Contact.Retry
	case "phone.turns":
		r.Phone.Turns++
		return r.Phone.Turns
	case "confirm_contact.fails":
		r.ConfirmContact.Fails++
		return r.ConfirmContact.Fails
	case "confirm_contact.intent_repeat":
		r.ConfirmContact.IntentRepeat++
		return r.ConfirmContact.IntentRepeat
	case "slot_choice.fails":
		r.SlotChoice.Fails++
		return r.SlotChoice.Fails
	case "name.fails":
		r.Name.Fails++
		return r.Name.Fails
	case "preference.fails":
		r.Preference.Fails++
		return r.Preference.Fails
	case "confirm_slot.retry":
		r.ConfirmSlot.Retry++
		return r.ConfirmSlot.Retry
	case "faq.fails":
		r.FAQ.Fails++
		return r.FAQ.Fails
	case "cancel_name.fails":
		r.CancelName.Fails++
		return r.CancelName.Fails
	case "modify_name.fails":
		r.ModifyName.Fails++
		return r.ModifyName.Fails
	default:
		return 0
	}
}

// Reset zeroes every counter under a top-level namespace (e.g. "contact"
// zeroes Contact.{Fails,Retry,Mode}).
func (r *Recovery) Reset(topKey string) {
	switch topKey {
	case "contact":
		r.Contact.Fails, r.Contact.Retry, r.Contact.Mode = 0, 0, ""
	case "phone":
		r.Phone.Partial, r.Phone.Turns = "", 0
	case "confirm_contact":
		r.ConfirmContact.Fails, r.ConfirmContact.IntentRepeat = 0, 0
	case "slot_choice":
		r.SlotChoice.Fails = 0
	case "name":
		r.Name.Fails = 0
	case "preference":
		r.Preference.Fails = 0
	case "confirm_slot":
		r.ConfirmSlot.Retry = 0
	case "faq":
		r.FAQ.Fails = 0
	case "cancel_name":
		r.CancelName.Fails = 0
	case "modify_name":
		r.ModifyName.Fails = 0
	}
}

// Escalates reports whether a context has reached EscalationThreshold
// failures and should route to INTENT_ROUTER (spec.md §4.5).
func (r *Recovery) Escalates(topKey string) bool {
	counter := r.topLevelCounter(topKey)
	if counter == nil {
		return false
	}
	return *counter >= EscalationThreshold
}

// LegacyCounters is the flat, pre-recovery-namespace shape some session
// blobs were persisted with (original_source/backend/recovery.py's
// migrate_recovery_from_legacy). MigrateFromLegacy copies these into the
// dotted paths (spec.md §4.5, §9). session.Store.GetOrCreate does not call
// it, and nothing else in this module does.
type LegacyCounters struct {
	ContactFails     int
	ContactRetry     int
	PhonePartial     string
	PhoneTurns       int
	SlotChoiceFails  int
	NameFails        int
	PreferenceFails  int
	ConfirmSlotRetry int
}

// IsZero reports whether no recovery counters have been set.
func (r Recovery) IsZero() bool {
	return r == Recovery{}
}

// MigrateFromLegacy copies flat legacy counters into the dotted-path
// structure. It is a no-op if r already holds any non-zero state.
func (r *Recovery) MigrateFromLegacy(legacy LegacyCounters) {
	if !r.IsZero() {
		return
	}
	r.Contact.Fails = legacy.ContactFails
	r.Contact.Retry = legacy.ContactRetry
	r.Phone.Partial = legacy.PhonePartial
	r.Phone.Turns = legacy.PhoneTurns
	r.SlotChoice.Fails = legacy.SlotChoiceFails
	r.Name.Fails = legacy.NameFails
	r.Preference.Fails = legacy.PreferenceFails
	r.ConfirmSlot.Retry = legacy.ConfirmSlotRetry
}
