package tenancy

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"whatsapp:+14155552671": "+14155552671",
		"tel:+1 415-555-2671":   "+14155552671",
		"sip:+1.415.555.2671":   "+14155552671",
		"0033612345678":         "+33612345678",
		"+33 6 12 34 56 78":     "+33612345678",
	}
	for in, want := range cases {
		got, err := NormalizeE164(in)
		if err != nil {
			t.Fatalf("NormalizeE164(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeE164Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "+1234", "1234567890123456789"} {
		if _, err := NormalizeE164(in); err == nil {
			t.Fatalf("NormalizeE164(%q) expected error", in)
		}
	}
}
