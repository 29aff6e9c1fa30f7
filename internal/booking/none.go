package booking

import (
	"context"
	"time"

	"github.com/aurorabook/concierge/internal/session"
)

// NoneAdapter is provider=none: no calendar connected. It never proposes
// slots or claims a booking/cancellation; the FSM routes to human transfer
// instead, and TransferNotifier pushes the qualified request to the
// tenant (ported from original_source/backend/calendar_adapter.py's
// _NoneCalendarAdapter, spec.md §4.9).
type NoneAdapter struct{}

var _ Adapter = NoneAdapter{}

func (NoneAdapter) Name() string { return "none" }

func (NoneAdapter) ListFreeSlots(context.Context, int64, time.Time, time.Duration, Window, int, session.Preference) ([]session.PendingSlot, error) {
	return nil, nil
}

func (NoneAdapter) Book(context.Context, int64, session.PendingSlot, string, string, string) (string, Outcome, error) {
	return "", OutcomeNotConnected, ErrNoCalendarConnected
}

func (NoneAdapter) FindBookingByName(context.Context, int64, string) (*Booking, error) {
	return nil, ErrNoCalendarConnected
}

func (NoneAdapter) Cancel(context.Context, int64, *Booking) (bool, error) {
	return false, ErrNoCalendarConnected
}

func (NoneAdapter) CanProposeSlots() bool { return false }
