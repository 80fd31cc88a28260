package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/bus"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/waitlist"
)

// StaffHandler serves the management console.  Every route requires a
// staff token.
type StaffHandler struct {
	Events    EventStore
	Bookings  *booking.Service
	Waitlist  *waitlist.Service
	Allocator *waitlist.Allocator
	Bus       *bus.Bus
	Clock     clock.Clock
}

type createEventReq struct {
	Date           string          `json:"date"` // YYYY-MM-DD
	DoorsOpen      string          `json:"doors_open"`
	StartsAt       string          `json:"starts_at"`
	EndsAt         string          `json:"ends_at"`
	Type           model.EventType `json:"type"`
	Capacity       int             `json:"capacity"`
	WaitlistActive bool            `json:"waitlist_active"`
	IsActive       *bool           `json:"is_active"`
}

type statusReq struct {
	Status model.BookingStatus `json:"status"`
}

type waitlistActiveReq struct {
	Active *bool `json:"active"`
}

type contactedReq struct {
	ContactedBy string `json:"contacted_by"`
}

type convertedReq struct {
	BookingID string `json:"booking_id"`
}

// CreateEvent adds an event to the calendar.
func (h *StaffHandler) CreateEvent(c echo.Context) error {
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	if req.Capacity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must not be negative"})
	}
	switch req.Type {
	case "":
		req.Type = model.EventTypeRegular
	case model.EventTypeRegular, model.EventTypeMatinee, model.EventTypeCareProgram, model.EventTypeRequestOnly:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown event type"})
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	now := h.Clock.Now()
	ev := model.Event{
		ID:             uuid.NewString(),
		Date:           date,
		DoorsOpen:      req.DoorsOpen,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Type:           req.Type,
		Capacity:       req.Capacity,
		WaitlistActive: req.WaitlistActive,
		IsActive:       active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.Events.CreateEvent(c.Request().Context(), &ev); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// ListBookings returns the bookings of an event with its snapshot.
func (h *StaffHandler) ListBookings(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	snap, err := h.Bookings.Ledger().Snapshot(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	list, err := h.Bookings.ListByEvent(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"capacity": snap, "bookings": list})
}

// UpdateBookingStatus moves a booking to a new status.
func (h *StaffHandler) UpdateBookingStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	b, err := h.Bookings.Transition(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// DeleteBooking removes a booking.
func (h *StaffHandler) DeleteBooking(c echo.Context) error {
	if err := h.Bookings.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetWaitlistActive forces or releases waitlist mode for an event.
func (h *StaffHandler) SetWaitlistActive(c echo.Context) error {
	var req waitlistActiveReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active (bool) required"})
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.Events.SetWaitlistActive(ctx, id, *req.Active); err != nil {
		return fail(c, err)
	}
	snap, err := h.Bookings.Ledger().Snapshot(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// ListWaitlist returns the waitlist of an event; ?status= filters.
func (h *StaffHandler) ListWaitlist(c echo.Context) error {
	entries, err := h.Waitlist.List(c.Request().Context(), c.Param("id"), model.WaitlistStatus(c.QueryParam("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// PlanWaitlist previews which parties ?freed=N seats would reach, without
// changing anything.
func (h *StaffHandler) PlanWaitlist(c echo.Context) error {
	freed, err := strconv.Atoi(c.QueryParam("freed"))
	if err != nil || freed < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "freed must be a non-negative integer"})
	}
	res, err := h.Allocator.Plan(c.Request().Context(), c.Param("id"), freed)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// MarkContacted records a contact attempt.  contacted_by defaults to the
// staff member's id.
func (h *StaffHandler) MarkContacted(c echo.Context) error {
	var req contactedReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
	}
	if req.ContactedBy == "" {
		req.ContactedBy, _ = c.Get("user_id").(string)
	}
	return h.waitlistOp(c, func(ctx context.Context, id string) (model.WaitlistEntry, error) {
		return h.Waitlist.MarkContacted(ctx, id, req.ContactedBy)
	})
}

// MarkConverted links an entry to the booking made for it.
func (h *StaffHandler) MarkConverted(c echo.Context) error {
	var req convertedReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.waitlistOp(c, func(ctx context.Context, id string) (model.WaitlistEntry, error) {
		return h.Waitlist.MarkConverted(ctx, id, strings.TrimSpace(req.BookingID))
	})
}

// CancelWaitlist withdraws an entry.
func (h *StaffHandler) CancelWaitlist(c echo.Context) error {
	return h.waitlistOp(c, h.Waitlist.Cancel)
}

// ExpireWaitlist marks an entry expired.
func (h *StaffHandler) ExpireWaitlist(c echo.Context) error {
	return h.waitlistOp(c, h.Waitlist.Expire)
}

// DeleteWaitlist removes an entry.
func (h *StaffHandler) DeleteWaitlist(c echo.Context) error {
	if err := h.Waitlist.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StaffHandler) waitlistOp(c echo.Context, op func(context.Context, string) (model.WaitlistEntry, error)) error {
	e, err := op(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// BusHistory returns the recent bus events, oldest first, and the listener
// count per topic.
func (h *StaffHandler) BusHistory(c echo.Context) error {
	topics := []bus.Topic{
		bus.TopicCapacityFreed, bus.TopicReservationCreated, bus.TopicReservationConfirmed,
		bus.TopicReservationCancelled, bus.TopicWaitlistSpotsAvailable,
		bus.TopicWaitlistEntryCreated, bus.TopicWaitlistEntryConverted,
	}
	listeners := make(map[bus.Topic]int, len(topics))
	for _, t := range topics {
		listeners[t] = h.Bus.ListenerCount(t)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": h.Bus.History(), "listeners": listeners})
}
