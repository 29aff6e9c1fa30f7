package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// sessionAlias avoids infinite recursion when UnmarshalJSON re-enters
// encoding/json on the same named type.
type sessionAlias Session

// MarshalJSON is the default struct encoding; kept explicit so future
// fields are a deliberate decision, not an accident of embedding.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionAlias(s))
}

// UnmarshalJSON rejects unknown fields (spec.md §9: "reject unknown fields
// on deserialization rather than silently dropping") and re-validates the
// pending_slot_choice invariant on every decode.
func (s *Session) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var alias sessionAlias
	if err := dec.Decode(&alias); err != nil {
		return fmt.Errorf("session: decode: %w", err)
	}
	candidate := Session(alias)
	if !candidate.ValidatePendingSlotChoice() {
		return fmt.Errorf("session: invalid pending_slot_choice %v for %d pending slots",
			candidate.PendingSlotChoice, len(candidate.PendingSlots))
	}
	*s = candidate
	return nil
}
