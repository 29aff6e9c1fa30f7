package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurorabook/concierge/internal/session"
)

var frDays = []string{"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche"}
var frMonths = []string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}

func frenchLabel(t time.Time) string {
	weekday := int(t.Weekday()+6) % 7 // Go's Sunday=0 -> French Monday=0 indexing
	return fmt.Sprintf("%s %d %s à %dh%02d", frDays[weekday], t.Day(), frMonths[t.Month()-1], t.Hour(), t.Minute())
}

// GoogleAdapter is provider=google: a thin translation layer over
// googleCalendarClient, ported from original_source/backend/
// calendar_adapter.py's _GoogleCalendarAdapter.
type GoogleAdapter struct {
	client *googleCalendarClient
}

var _ Adapter = (*GoogleAdapter)(nil)

func NewGoogleAdapter(baseURL, calendarID, apiKey string, timeout time.Duration) *GoogleAdapter {
	return &GoogleAdapter{client: newGoogleCalendarClient(baseURL, calendarID, apiKey, timeout)}
}

func (a *GoogleAdapter) Name() string { return "google" }

func (a *GoogleAdapter) CanProposeSlots() bool { return true }

// ListFreeSlots translates provider free/busy slots into canonical
// session.PendingSlot values, limited and filtered by the caller's stated
// time-of-day preference (spec.md §4.9).
func (a *GoogleAdapter) ListFreeSlots(ctx context.Context, tenantID int64, date time.Time, duration time.Duration, window Window, limit int, pref session.Preference) ([]session.PendingSlot, error) {
	raw, err := a.client.freeBusy(ctx, date, window)
	if err != nil {
		return nil, fmt.Errorf("booking: google list free slots: %w", err)
	}

	var out []session.PendingSlot
	for _, slot := range raw {
		start, err := time.Parse(time.RFC3339, slot.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, slot.End)
		if err != nil {
			end = start.Add(duration)
		}
		if !matchesPreference(start, pref) {
			continue
		}
		out = append(out, session.PendingSlot{
			ID:         uuid.NewString(),
			StartISO:   start.Format(time.RFC3339),
			EndISO:     end.Format(time.RFC3339),
			Label:      frenchLabel(start),
			LabelVocal: frenchLabel(start),
			Day:        frDays[(int(start.Weekday())+6)%7],
			Source:     session.SlotSourceCalendar,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchesPreference(t time.Time, pref session.Preference) bool {
	switch pref {
	case session.PreferenceMorning:
		return t.Hour() < 12
	case session.PreferenceAfternoon:
		return t.Hour() >= 12 && t.Hour() < 17
	case session.PreferenceEvening:
		return t.Hour() >= 17
	default:
		return true
	}
}

// Book inserts a calendar event. Never returns OutcomeBooked unless the
// provider actually returned an event id (spec.md §4.9 invariant).
func (a *GoogleAdapter) Book(ctx context.Context, tenantID int64, slot session.PendingSlot, patientName, patientContact, motif string) (string, Outcome, error) {
	description := fmt.Sprintf("Contact: %s\nReason: %s", patientContact, motif)
	eventID, err := a.client.insertEvent(ctx, slot.StartISO, slot.EndISO, patientName, description)
	if err != nil {
		return "", OutcomeFailed, fmt.Errorf("booking: google book: %w", err)
	}
	if eventID == "" {
		return "", OutcomeFailed, fmt.Errorf("booking: google book: empty event id")
	}
	return eventID, OutcomeBooked, nil
}

// FindBookingByName scans upcoming events for a summary/description match,
// ported from the original's substring scan over 30 days of events.
func (a *GoogleAdapter) FindBookingByName(ctx context.Context, tenantID int64, name string) (*Booking, error) {
	events, err := a.client.listUpcomingEvents(ctx, 30)
	if err != nil {
		return nil, fmt.Errorf("booking: google find by name: %w", err)
	}
	nameLower := strings.ToLower(name)
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Summary), nameLower) ||
			strings.Contains(strings.ToLower(ev.Description), nameLower) {
			label := "your appointment"
			if start, err := time.Parse(time.RFC3339, ev.Start.DateTime); err == nil {
				label = frenchLabel(start)
			}
			return &Booking{
				ExternalEventID: ev.ID,
				Label:           label,
				StartISO:        ev.Start.DateTime,
				EndISO:          ev.End.DateTime,
				Summary:         ev.Summary,
			}, nil
		}
	}
	return nil, nil
}

func (a *GoogleAdapter) Cancel(ctx context.Context, tenantID int64, b *Booking) (bool, error) {
	if b == nil || b.ExternalEventID == "" {
		return false, fmt.Errorf("booking: cancel: missing external event id")
	}
	if err := a.client.deleteEvent(ctx, b.ExternalEventID); err != nil {
		return false, fmt.Errorf("booking: google cancel: %w", err)
	}
	return true, nil
}
