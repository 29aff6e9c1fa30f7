// Package booking provides a unified calendar/booking adapter interface,
// selected per tenant (spec.md §4.9), grounded on the teacher's
// internal/booking/adapter.go interface shape (Name/CheckAvailability/
// CreateBooking/GetHandoffMessage), generalized to spec.md's exact
// operation set.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/aurorabook/concierge/internal/session"
)

// ErrNoCalendarConnected is PROVIDER_NONE_SENTINEL from
// original_source/backend/calendar_adapter.py: the tenant has no calendar
// configured, so lookups/cancellations cannot be serviced and must route
// to human transfer rather than claim success (spec.md §4.9, §8).
var ErrNoCalendarConnected = errors.New("booking: no calendar connected for this tenant")

// Window bounds the working hours slots are drawn from.
type Window struct {
	StartHour int
	EndHour   int
}

// DefaultWindow mirrors original_source/backend/calendar_adapter.py's
// get_free_slots defaults (9h–18h).
var DefaultWindow = Window{StartHour: 9, EndHour: 18}

// Outcome describes what Book actually did, so the FSM never reports a
// confirmation the adapter did not perform.
type Outcome int

const (
	OutcomeBooked Outcome = iota
	OutcomeNotConnected
	OutcomeFailed
)

// Booking is a found appointment, returned by FindBookingByName.
type Booking struct {
	ExternalEventID string
	Label           string
	StartISO        string
	EndISO          string
	Summary         string
}

// Adapter is the per-tenant calendar/booking surface the FSM (internal/fsm)
// consumes. Implementations must never report OutcomeBooked unless an
// external or internal write actually succeeded (spec.md §4.9 invariant).
type Adapter interface {
	Name() string
	ListFreeSlots(ctx context.Context, tenantID int64, date time.Time, duration time.Duration, window Window, limit int, pref session.Preference) ([]session.PendingSlot, error)
	Book(ctx context.Context, tenantID int64, slot session.PendingSlot, patientName, patientContact, motif string) (externalEventID string, outcome Outcome, err error)
	FindBookingByName(ctx context.Context, tenantID int64, name string) (*Booking, error)
	Cancel(ctx context.Context, tenantID int64, b *Booking) (bool, error)
	CanProposeSlots() bool
}
