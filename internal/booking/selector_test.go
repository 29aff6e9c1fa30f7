package booking

import (
	"testing"

	"github.com/aurorabook/concierge/internal/tenancy"
)

func TestSelectorGoogleWithoutCalendarIDFallsBackToNone(t *testing.T) {
	sel := NewSelector("https://calendar.example", "key", nil)
	adapter := sel.For(tenancy.Config{CalendarProvider: tenancy.CalendarProviderGoogle})
	if adapter.Name() != "none" {
		t.Fatalf("expected none adapter when calendar_id is empty, got %q", adapter.Name())
	}
}

func TestSelectorGoogleWithCalendarID(t *testing.T) {
	sel := NewSelector("https://calendar.example", "key", nil)
	adapter := sel.For(tenancy.Config{CalendarProvider: tenancy.CalendarProviderGoogle, CalendarID: "cal-1"})
	if adapter.Name() != "google" {
		t.Fatalf("expected google adapter, got %q", adapter.Name())
	}
}

func TestSelectorNoneProvider(t *testing.T) {
	sel := NewSelector("", "", nil)
	adapter := sel.For(tenancy.Config{CalendarProvider: tenancy.CalendarProviderNone})
	if adapter.Name() != "none" {
		t.Fatalf("expected none adapter, got %q", adapter.Name())
	}
}

func TestSelectorInternalWithoutAdapterConfiguredFallsBackToNone(t *testing.T) {
	sel := NewSelector("", "", nil)
	adapter := sel.For(tenancy.Config{CalendarProvider: tenancy.CalendarProviderInternal})
	if adapter.Name() != "none" {
		t.Fatalf("expected none adapter when internal adapter unset, got %q", adapter.Name())
	}
}
