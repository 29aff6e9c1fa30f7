package session

import (
	"encoding/json"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	idx := 2
	s := Session{
		TenantID: 1,
		ConvID:   "conv-1",
		Channel:  "voice",
		State:    "WAIT_CONFIRM",
		Qualif:   Qualif{Name: "Jean Dupont", Motif: "consultation", Contact: "jean@ex.com", ContactKind: ContactKindEmail},
		PendingSlots: []PendingSlot{
			{ID: "1", Label: "Lundi 9h", Day: "lundi", Source: SlotSourceCalendar},
			{ID: "2", Label: "Mardi 10h", Day: "mardi", Source: SlotSourceCalendar},
		},
		PendingSlotChoice: &idx,
	}

	blob, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Session
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Qualif.Name != s.Qualif.Name || len(decoded.PendingSlots) != 2 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.PendingSlotChoice == nil || *decoded.PendingSlotChoice != 2 {
		t.Fatalf("expected pending slot choice preserved, got %v", decoded.PendingSlotChoice)
	}
}

func TestUnmarshalRejectsInvalidPendingSlotChoice(t *testing.T) {
	idx := 5
	s := Session{
		ConvID:            "conv-1",
		PendingSlots:      []PendingSlot{{ID: "1"}},
		PendingSlotChoice: &idx,
	}
	blob, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Session
	if err := json.Unmarshal(blob, &decoded); err == nil {
		t.Fatalf("expected error for out-of-range pending_slot_choice")
	}
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"conv_id":"conv-1","unknown_field":true}`)
	var decoded Session
	if err := json.Unmarshal(raw, &decoded); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
