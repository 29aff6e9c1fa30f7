package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aurorabook/concierge/internal/session"
)

// pgExecutor narrows the pgx pool to what this package needs, the same
// shape internal/journal and internal/session use so tests can substitute
// pgxmock (DESIGN.md "C9").
type pgExecutor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InternalSlotAdapter is the fallback scheduler for tenants without an
// external calendar, backed by Postgres slots/appointments (spec.md §6).
// Supplements spec.md: not named by the distillation, added because a
// tenant that declines a calendar provider still needs basic scheduling
// rather than being forced onto provider=none's pure-handoff path.
type InternalSlotAdapter struct {
	pool pgExecutor
}

var _ Adapter = (*InternalSlotAdapter)(nil)

func NewInternalSlotAdapter(pool pgExecutor) *InternalSlotAdapter {
	return &InternalSlotAdapter{pool: pool}
}

func (a *InternalSlotAdapter) Name() string { return "internal" }

func (a *InternalSlotAdapter) CanProposeSlots() bool { return true }

func (a *InternalSlotAdapter) ListFreeSlots(ctx context.Context, tenantID int64, date time.Time, duration time.Duration, window Window, limit int, pref session.Preference) ([]session.PendingSlot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), window.StartHour, 0, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), window.EndHour, 0, 0, 0, date.Location())

	rows, err := a.pool.Query(ctx,
		`SELECT id, start_ts, end_ts FROM slots
		  WHERE tenant_id = $1 AND booked = false AND start_ts >= $2 AND start_ts < $3
		  ORDER BY start_ts ASC`,
		tenantID, dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("booking: internal list free slots: %w", err)
	}
	defer rows.Close()

	var out []session.PendingSlot
	for rows.Next() {
		var id string
		var start, end time.Time
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, fmt.Errorf("booking: internal scan slot: %w", err)
		}
		if !matchesPreference(start, pref) {
			continue
		}
		out = append(out, session.PendingSlot{
			ID:         id,
			StartISO:   start.Format(time.RFC3339),
			EndISO:     end.Format(time.RFC3339),
			Label:      frenchLabel(start),
			LabelVocal: frenchLabel(start),
			Day:        frDays[(int(start.Weekday())+6)%7],
			Source:     session.SlotSourceInternal,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// Book marks the slot booked and then inserts the appointment row, as two
// separate statements rather than one transaction. If the insert fails the
// slot is released again; OutcomeBooked is reported only when both writes
// succeeded.
func (a *InternalSlotAdapter) Book(ctx context.Context, tenantID int64, slot session.PendingSlot, patientName, patientContact, motif string) (string, Outcome, error) {
	tag, err := a.pool.Exec(ctx,
		`UPDATE slots SET booked = true WHERE id = $1 AND tenant_id = $2 AND booked = false`,
		slot.ID, tenantID,
	)
	if err != nil {
		return "", OutcomeFailed, fmt.Errorf("booking: internal book slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", OutcomeFailed, fmt.Errorf("booking: internal book: slot %s already taken", slot.ID)
	}

	appointmentID := uuid.NewString()
	_, err = a.pool.Exec(ctx,
		`INSERT INTO appointments (id, tenant_id, slot_id, patient_name, patient_contact, motif, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		appointmentID, tenantID, slot.ID, patientName, patientContact, motif,
	)
	if err != nil {
		_, _ = a.pool.Exec(ctx,
			`UPDATE slots SET booked = false WHERE id = $1 AND tenant_id = $2`,
			slot.ID, tenantID,
		)
		return "", OutcomeFailed, fmt.Errorf("booking: internal book appointment: %w", err)
	}
	return appointmentID, OutcomeBooked, nil
}

func (a *InternalSlotAdapter) FindBookingByName(ctx context.Context, tenantID int64, name string) (*Booking, error) {
	var b Booking
	var start, end time.Time
	err := a.pool.QueryRow(ctx,
		`SELECT a.id, s.start_ts, s.end_ts
		   FROM appointments a JOIN slots s ON s.id = a.slot_id
		  WHERE a.tenant_id = $1 AND a.patient_name ILIKE $2
		  ORDER BY s.start_ts DESC LIMIT 1`,
		tenantID, "%"+name+"%",
	).Scan(&b.ExternalEventID, &start, &end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("booking: internal find by name: %w", err)
	}
	b.StartISO = start.Format(time.RFC3339)
	b.EndISO = end.Format(time.RFC3339)
	b.Label = frenchLabel(start)
	return &b, nil
}

func (a *InternalSlotAdapter) Cancel(ctx context.Context, tenantID int64, b *Booking) (bool, error) {
	if b == nil || b.ExternalEventID == "" {
		return false, fmt.Errorf("booking: cancel: missing appointment id")
	}
	tag, err := a.pool.Exec(ctx,
		`UPDATE slots SET booked = false
		  FROM appointments
		 WHERE appointments.id = $1 AND appointments.tenant_id = $2
		   AND slots.id = appointments.slot_id`,
		b.ExternalEventID, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("booking: internal cancel: %w", err)
	}
	if _, err := a.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND tenant_id = $2`, b.ExternalEventID, tenantID); err != nil {
		return false, fmt.Errorf("booking: internal cancel delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
