package slotchoice

import (
	"testing"

	"github.com/aurorabook/concierge/internal/session"
)

func TestDetectExactDigit(t *testing.T) {
	for _, tc := range []struct {
		text string
		want int
	}{
		{"1", 1}, {"2", 2}, {"3", 3},
		{" 2 ", 2},
	} {
		got, ambiguous := Detect(tc.text, nil)
		if ambiguous || got != tc.want {
			t.Errorf("Detect(%q) = (%d, %v), want (%d, false)", tc.text, got, ambiguous, tc.want)
		}
	}
}

func TestDetectRejectsDigitInSentence(t *testing.T) {
	for _, text := range []string{
		"j'ai 2 questions",
		"je veux 3 rendez-vous",
		"mon numero c'est 06 12 34 56 78",
	} {
		got, ambiguous := Detect(text, nil)
		if got != 0 || ambiguous {
			t.Errorf("Detect(%q) = (%d, %v), want (0, false)", text, got, ambiguous)
		}
	}
}

func TestDetectBareAffirmationIsAmbiguous(t *testing.T) {
	got, ambiguous := Detect("oui", nil)
	if got != 0 || !ambiguous {
		t.Fatalf("Detect(oui) = (%d, %v), want (0, true)", got, ambiguous)
	}
}

func TestDetectOrdinals(t *testing.T) {
	for _, tc := range []struct {
		text string
		want int
	}{
		{"le premier", 1},
		{"deuxieme", 2},
		{"le troisième", 3},
		{"oui 1", 1},
		{"oui deuxieme", 2},
		{"choix 3", 3},
		{"numero 2", 2},
		{"le 1", 1},
	} {
		got, ambiguous := Detect(tc.text, nil)
		if ambiguous || got != tc.want {
			t.Errorf("Detect(%q) = (%d, %v), want (%d, false)", tc.text, got, ambiguous, tc.want)
		}
	}
}

func TestDetectBareDayOrTimeAlone(t *testing.T) {
	for _, text := range []string{"vendredi", "14h"} {
		got, ambiguous := Detect(text, nil)
		if got != 0 || ambiguous {
			t.Errorf("Detect(%q) = (%d, %v), want (0, false)", text, got, ambiguous)
		}
	}
}

func TestDetectDayTimeMatchesSingleSlot(t *testing.T) {
	pending := []session.PendingSlot{
		{Day: "vendredi", StartISO: "2026-08-07T14:00:00Z"},
		{Day: "lundi", StartISO: "2026-08-03T09:00:00Z"},
	}
	got, ambiguous := Detect("vendredi 14h", pending)
	if ambiguous || got != 1 {
		t.Fatalf("Detect(vendredi 14h) = (%d, %v), want (1, false)", got, ambiguous)
	}
}

func TestDetectDayTimeNoPickWhenMultipleMatch(t *testing.T) {
	pending := []session.PendingSlot{
		{Day: "vendredi", StartISO: "2026-08-07T14:00:00Z"},
		{Day: "vendredi", StartISO: "2026-08-14T14:00:00Z"},
	}
	got, ambiguous := Detect("vendredi 14h", pending)
	if got != 0 || ambiguous {
		t.Fatalf("Detect with two matching slots = (%d, %v), want (0, false)", got, ambiguous)
	}
}
