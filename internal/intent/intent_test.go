package intent

import "testing"

func TestDetectCancel(t *testing.T) {
	cases := []string{"je voudrais annuler mon rendez-vous", "annulation svp", "Annulez-le"}
	for _, c := range cases {
		if got := Detect(c); got != KindCancel {
			t.Errorf("Detect(%q) = %q, want cancel", c, got)
		}
	}
}

func TestDetectModify(t *testing.T) {
	cases := []string{"je veux modifier mon créneau", "changer de date", "reporter le rendez-vous"}
	for _, c := range cases {
		if got := Detect(c); got != KindModify {
			t.Errorf("Detect(%q) = %q, want modify", c, got)
		}
	}
}

func TestDetectHumanTransfer(t *testing.T) {
	cases := []string{"je veux parler à quelqu'un", "passez-moi un conseiller", "je veux un humain"}
	for _, c := range cases {
		if got := Detect(c); got != KindHumanTransfer {
			t.Errorf("Detect(%q) = %q, want human_transfer", c, got)
		}
	}
}

func TestDetectFAQQuestion(t *testing.T) {
	cases := []string{"quels sont vos horaires", "c'est où exactement", "combien ça coûte"}
	for _, c := range cases {
		if got := Detect(c); got != KindFAQQuestion {
			t.Errorf("Detect(%q) = %q, want faq_question", c, got)
		}
	}
}

func TestDetectNoneForBookingFlow(t *testing.T) {
	cases := []string{"Jean Dupont", "consultation", "oui", "1", "jean@ex.com"}
	for _, c := range cases {
		if got := Detect(c); got != KindNone {
			t.Errorf("Detect(%q) = %q, want none", c, got)
		}
	}
}
