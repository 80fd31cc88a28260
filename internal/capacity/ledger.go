// Package capacity derives committed and remaining seats for an event from
// the current bookings.  It owns no state: every query reads the event and
// its bookings again, so a check never acts on a stale count.
package capacity

import (
	"context"
	"fmt"

	"github.com/iliyamo/venue-booking/internal/model"
)

// EventSource loads a single event.
type EventSource interface {
	GetEvent(ctx context.Context, id string) (model.Event, error)
}

// BookingSource lists every booking of an event regardless of status.
type BookingSource interface {
	ListBookingsByEvent(ctx context.Context, eventID string) ([]model.Booking, error)
}

// Snapshot is the capacity picture of one event at one instant.
type Snapshot struct {
	EventID        string `json:"event_id"`
	Capacity       int    `json:"capacity"`
	Committed      int    `json:"committed"`
	Remaining      int    `json:"remaining"`
	WaitlistForced bool   `json:"waitlist_forced"`
	WaitlistActive bool   `json:"waitlist_active"`
	Full           bool   `json:"full"`
	OverbookedBy   int    `json:"overbooked_by"`
	Utilization    int    `json:"utilization_percent"`
}

// DisplayRemaining floors Remaining at zero for badges.  Remaining itself
// stays negative after an over-capacity admission.
func (s Snapshot) DisplayRemaining() int {
	if s.Remaining < 0 {
		return 0
	}
	return s.Remaining
}

// Derive computes a snapshot from an event and its bookings.  Bookings of
// other events are ignored.
func Derive(ev model.Event, bookings []model.Booking) Snapshot {
	committed := 0
	for _, b := range bookings {
		if b.EventID == ev.ID && b.Status.Commits() {
			committed += b.NumberOfPersons
		}
	}
	remaining := ev.Capacity - committed
	s := Snapshot{
		EventID:        ev.ID,
		Capacity:       ev.Capacity,
		Committed:      committed,
		Remaining:      remaining,
		WaitlistForced: ev.WaitlistActive,
		Full:           remaining <= 0 || ev.WaitlistActive,
	}
	s.WaitlistActive = s.Full
	if remaining < 0 {
		s.OverbookedBy = -remaining
	}
	if ev.Capacity > 0 {
		s.Utilization = committed * 100 / ev.Capacity
	}
	return s
}

// Ledger answers capacity queries on demand.
type Ledger struct {
	events   EventSource
	bookings BookingSource
}

// NewLedger returns a ledger reading from the given sources.
func NewLedger(events EventSource, bookings BookingSource) *Ledger {
	return &Ledger{events: events, bookings: bookings}
}

// Snapshot re-derives the capacity picture of an event.
func (l *Ledger) Snapshot(ctx context.Context, eventID string) (Snapshot, error) {
	ev, err := l.events.GetEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load event %s: %w", eventID, err)
	}
	bookings, err := l.bookings.ListBookingsByEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load bookings for %s: %w", eventID, err)
	}
	return Derive(ev, bookings), nil
}

// RemainingCapacity returns capacity minus committed persons.  The result
// is negative when an over-capacity booking was admitted.
func (l *Ledger) RemainingCapacity(ctx context.Context, eventID string) (int, error) {
	s, err := l.Snapshot(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return s.Remaining, nil
}

// IsFull reports whether new bookings should be routed to the waitlist:
// nothing remains, or staff forced waitlist mode.
func (l *Ledger) IsFull(ctx context.Context, eventID string) (bool, error) {
	s, err := l.Snapshot(ctx, eventID)
	if err != nil {
		return false, err
	}
	return s.Full, nil
}
