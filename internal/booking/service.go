// Package booking owns the reservation lifecycle: customer submission and
// staff status changes.  Every change that returns seats to an event is
// announced on the bus as capacity_freed; the package never talks to the
// waitlist directly.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-booking/internal/bus"
	"github.com/iliyamo/venue-booking/internal/capacity"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/pricing"
)

var (
	ErrInvalidPartySize  = errors.New("number of persons must be at least 1")
	ErrEmailRequired     = errors.New("email required")
	ErrEventInactive     = errors.New("event is not open for booking")
	ErrEventFull         = errors.New("event is full")
	ErrDuplicateBooking  = errors.New("an active booking already exists for this email")
	ErrAdmissionLimit    = errors.New("party exceeds the remaining seats by more than allowed")
	ErrInvalidStatus     = errors.New("invalid booking status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInsufficientSeats = errors.New("not enough seats left to reinstate the booking")
	// ErrReadBack is returned together with the created booking when the
	// row was written but could not be read back.
	ErrReadBack = errors.New("booking stored but could not be reloaded")
)

// Store is the persistence contract of the booking service.
type Store interface {
	capacity.EventSource
	capacity.BookingSource
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	FindActiveBookingByEmail(ctx context.Context, eventID, email string) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) error
	DeleteBooking(ctx context.Context, id string) error
}

// Service implements booking submission and staff transitions.
type Service struct {
	store     Store
	ledger    *capacity.Ledger
	prices    pricing.Calculator
	bus       *bus.Bus
	clock     clock.Clock
	overLimit int
	newID     func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithOverCapacityLimit bounds how many persons a single booking may exceed
// the remaining seats by.  Zero means unbounded.
func WithOverCapacityLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.overLimit = n
		}
	}
}

// NewService wires a booking service.  b may be nil.
func NewService(store Store, prices pricing.Calculator, b *bus.Bus, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ledger: capacity.NewLedger(store, store),
		prices: prices,
		bus:    b,
		clock:  clk,
		newID:  uuid.NewString,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger exposes the capacity view the service derives from its store.
func (s *Service) Ledger() *capacity.Ledger { return s.ledger }

// Submit creates a pending booking for an event.  A party larger than the
// remaining seats is admitted and flagged RequestedOverCapacity as long as
// the event still had seats left; once an event is full every submission
// is refused with ErrEventFull.  Submissions for the same event are
// serialized so two parties never both see the last seats.
func (s *Service) Submit(ctx context.Context, eventID string, form model.FormData) (model.Booking, error) {
	if form.NumberOfPersons < 1 {
		return model.Booking{}, ErrInvalidPartySize
	}
	email := strings.ToLower(strings.TrimSpace(form.Email))
	if email == "" {
		return model.Booking{}, ErrEmailRequired
	}

	lock := s.lockFor(eventID)
	lock.Lock()
	defer lock.Unlock()

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Booking{}, err
	}
	if !ev.IsActive {
		return model.Booking{}, ErrEventInactive
	}
	existing, err := s.store.FindActiveBookingByEmail(ctx, eventID, email)
	if err != nil {
		return model.Booking{}, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return model.Booking{}, ErrDuplicateBooking
	}

	bookings, err := s.store.ListBookingsByEvent(ctx, eventID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("list bookings: %w", err)
	}
	snap := capacity.Derive(ev, bookings)
	if snap.Full {
		return model.Booking{}, ErrEventFull
	}
	over := form.NumberOfPersons > snap.Remaining
	if over && s.overLimit > 0 && form.NumberOfPersons-snap.Remaining > s.overLimit {
		return model.Booking{}, ErrAdmissionLimit
	}

	form.Email = email
	quote := s.prices.Calculate(ev, form, form.PromoCode, form.VoucherCode)
	now := s.clock.Now()
	b := model.Booking{
		ID:                    s.newID(),
		EventID:               eventID,
		Status:                model.BookingPending,
		NumberOfPersons:       form.NumberOfPersons,
		RequestedOverCapacity: over,
		ContactName:           form.DisplayName(),
		Email:                 email,
		Phone:                 strings.TrimSpace(form.PhoneCountryCode + " " + form.Phone),
		Arrangement:           form.Arrangement,
		TotalPriceCents:       quote.TotalCents,
		Form:                  form,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.CreateBooking(ctx, &b); err != nil {
		return model.Booking{}, fmt.Errorf("create booking: %w", err)
	}
	if over {
		log.Printf("booking: %s admitted over capacity for event %s (%d persons, %d remaining)", b.ID, eventID, b.NumberOfPersons, snap.Remaining)
	}

	s.publish(ctx, bus.TopicReservationCreated, bus.ReservationCreated{
		BookingID:             b.ID,
		EventID:               eventID,
		NumberOfPersons:       b.NumberOfPersons,
		RequestedOverCapacity: over,
	})

	stored, err := s.store.GetBooking(ctx, b.ID)
	if err != nil {
		return b, fmt.Errorf("%w: %v", ErrReadBack, err)
	}
	return stored, nil
}

// transitions lists the statuses reachable from each status.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:   {model.BookingConfirmed, model.BookingRejected, model.BookingCancelled, model.BookingOption},
	model.BookingOption:    {model.BookingPending, model.BookingConfirmed, model.BookingCancelled},
	model.BookingConfirmed: {model.BookingCheckedIn, model.BookingCancelled},
	model.BookingCheckedIn: {model.BookingCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to model.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves a booking to a new status and announces the effect.
// Changes to bookings of one event are serialized with submissions, and
// the status is re-read under the lock so seats are freed at most once.
// Reinstating an option needs the seats to still be free: the option's
// seats may already have gone to someone else.
func (s *Service) Transition(ctx context.Context, id string, to model.BookingStatus) (model.Booking, error) {
	if !to.Valid() {
		return model.Booking{}, ErrInvalidStatus
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	lock := s.lockFor(b.EventID)
	lock.Lock()
	defer lock.Unlock()

	if b, err = s.store.GetBooking(ctx, id); err != nil {
		return model.Booking{}, err
	}
	if !CanTransition(b.Status, to) {
		return b, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	if !b.Status.Commits() && to.Commits() {
		snap, err := s.ledger.Snapshot(ctx, b.EventID)
		if err != nil {
			return b, err
		}
		if b.NumberOfPersons > snap.Remaining {
			return b, fmt.Errorf("%w: %d requested, %d remaining", ErrInsufficientSeats, b.NumberOfPersons, snap.Remaining)
		}
	}
	if err := s.store.UpdateBookingStatus(ctx, id, to); err != nil {
		return b, fmt.Errorf("update booking %s: %w", id, err)
	}
	from := b.Status
	b.Status = to
	b.UpdatedAt = s.clock.Now()

	if from.Commits() && !to.Commits() {
		reason := bus.ReasonCancelled
		if to == model.BookingRejected {
			reason = bus.ReasonRejected
		}
		if to == model.BookingCancelled {
			s.publish(ctx, bus.TopicReservationCancelled, bus.ReservationCancelled{
				BookingID:       b.ID,
				EventID:         b.EventID,
				NumberOfPersons: b.NumberOfPersons,
			})
		}
		s.freed(ctx, b, reason)
	}
	if to == model.BookingConfirmed {
		s.publish(ctx, bus.TopicReservationConfirmed, bus.ReservationConfirmed{
			BookingID:       b.ID,
			EventID:         b.EventID,
			NumberOfPersons: b.NumberOfPersons,
			Email:           b.Email,
			ContactName:     b.ContactName,
		})
	}
	return b, nil
}

// Delete removes a booking.  Deleting a booking that still held seats
// frees them.
func (s *Service) Delete(ctx context.Context, id string) error {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	lock := s.lockFor(b.EventID)
	lock.Lock()
	defer lock.Unlock()

	if b, err = s.store.GetBooking(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	if b.Status.Commits() {
		s.freed(ctx, b, bus.ReasonDeleted)
	}
	return nil
}

// Get returns a single booking.
func (s *Service) Get(ctx context.Context, id string) (model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// ListByEvent returns the bookings of an event in creation order.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListBookingsByEvent(ctx, eventID)
}

func (s *Service) freed(ctx context.Context, b model.Booking, reason bus.FreedReason) {
	log.Printf("booking: %d seats freed on event %s (%s, booking %s)", b.NumberOfPersons, b.EventID, reason, b.ID)
	s.publish(ctx, bus.TopicCapacityFreed, bus.CapacityFreed{
		EventID:       b.EventID,
		FreedCapacity: b.NumberOfPersons,
		Reason:        reason,
		BookingID:     b.ID,
	})
}

func (s *Service) publish(ctx context.Context, topic bus.Topic, payload any) {
	if s.bus != nil {
		s.bus.Publish(ctx, topic, payload)
	}
}

func (s *Service) lockFor(eventID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}
