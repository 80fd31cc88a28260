// Package handler exposes the HTTP API: public event browsing, the booking
// wizard, staff login and the staff console.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/capacity"
	"github.com/iliyamo/venue-booking/internal/model"
)

// EventStore is the event persistence the HTTP layer needs.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	SetWaitlistActive(ctx context.Context, id string, active bool) error
}

// WaitlistCounter counts the parties still waiting for an event.
type WaitlistCounter interface {
	Count(ctx context.Context, eventID string) (int, error)
}

// PublicHandler serves the unauthenticated calendar.  Capacity is derived
// per request and never cached.
type PublicHandler struct {
	Events   EventStore
	Ledger   *capacity.Ledger
	Waitlist WaitlistCounter
}

// PublicEvent is an event as shown on the calendar.
type PublicEvent struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	DoorsOpen string          `json:"doors_open"`
	StartsAt  string          `json:"starts_at"`
	EndsAt    string          `json:"ends_at"`
	Type      model.EventType `json:"type"`
	Badge     CapacityBadge   `json:"capacity"`
}

// CapacityBadge is the customer view of a snapshot.  Remaining never goes
// below zero here.
type CapacityBadge struct {
	Capacity       int  `json:"capacity"`
	Remaining      int  `json:"remaining"`
	WaitlistActive bool `json:"waitlist_active"`
	WaitlistCount  int  `json:"waitlist_count"`
}

func (h *PublicHandler) badge(ctx context.Context, eventID string) (CapacityBadge, capacity.Snapshot, error) {
	snap, err := h.Ledger.Snapshot(ctx, eventID)
	if err != nil {
		return CapacityBadge{}, snap, err
	}
	n, err := h.Waitlist.Count(ctx, eventID)
	if err != nil {
		return CapacityBadge{}, snap, err
	}
	return CapacityBadge{
		Capacity:       snap.Capacity,
		Remaining:      snap.DisplayRemaining(),
		WaitlistActive: snap.WaitlistActive,
		WaitlistCount:  n,
	}, snap, nil
}

// ListEvents returns every active event with its capacity badge.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()
	events, err := h.Events.ListEvents(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]PublicEvent, 0, len(events))
	for _, ev := range events {
		if !ev.IsActive {
			continue
		}
		b, _, err := h.badge(ctx, ev.ID)
		if err != nil {
			return fail(c, err)
		}
		out = append(out, PublicEvent{
			ID: ev.ID, Date: ev.Date, DoorsOpen: ev.DoorsOpen, StartsAt: ev.StartsAt, EndsAt: ev.EndsAt,
			Type: ev.Type, Badge: b,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetCapacity returns the badge of one event.
func (h *PublicHandler) GetCapacity(c echo.Context) error {
	ctx := c.Request().Context()
	ev, err := h.Events.GetEvent(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	if !ev.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	b, _, err := h.badge(ctx, ev.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
