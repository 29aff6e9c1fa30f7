package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aurorabook/concierge/internal/session"
)

func TestNoneAdapterNeverProposesOrBooks(t *testing.T) {
	a := NoneAdapter{}
	if a.CanProposeSlots() {
		t.Fatalf("none adapter must never propose slots")
	}
	slots, err := a.ListFreeSlots(context.Background(), 1, time.Now(), 0, DefaultWindow, 3, "")
	if err != nil || slots != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", slots, err)
	}

	_, outcome, err := a.Book(context.Background(), 1, session.PendingSlot{}, "Jane", "+1555", "consultation")
	if outcome != OutcomeNotConnected || !errors.Is(err, ErrNoCalendarConnected) {
		t.Fatalf("expected (NotConnected, ErrNoCalendarConnected), got (%v, %v)", outcome, err)
	}

	if _, err := a.FindBookingByName(context.Background(), 1, "Jane"); !errors.Is(err, ErrNoCalendarConnected) {
		t.Fatalf("expected ErrNoCalendarConnected, got %v", err)
	}

	ok, err := a.Cancel(context.Background(), 1, &Booking{ExternalEventID: "x"})
	if ok || !errors.Is(err, ErrNoCalendarConnected) {
		t.Fatalf("expected (false, ErrNoCalendarConnected), got (%v, %v)", ok, err)
	}
}
