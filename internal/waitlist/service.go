package waitlist

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-booking/internal/bus"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/model"
)

var (
	ErrInvalidPartySize = errors.New("number of persons must be at least 1")
	ErrContactRequired  = errors.New("customer name and a valid email are required")
	ErrTerminal         = errors.New("waitlist entry is in a terminal status")
	ErrBookingRequired  = errors.New("booking id required")
)

// Store is the waitlist persistence contract.
type Store interface {
	Queue
	CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error
	GetWaitlistEntry(ctx context.Context, id string) (model.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, id string) error
}

// Service implements customer sign-up and staff handling of entries.
type Service struct {
	store Store
	bus   *bus.Bus
	clock clock.Clock
	newID func() string
}

// NewService returns a waitlist service.  b may be nil.
func NewService(store Store, b *bus.Bus, clk clock.Clock) *Service {
	return &Service{store: store, bus: b, clock: clk, newID: uuid.NewString}
}

// JoinWaitlist queues a party for an event.
func (s *Service) JoinWaitlist(ctx context.Context, eventID string, req model.WaitlistRequest) (model.WaitlistEntry, error) {
	if req.NumberOfPersons < 1 {
		return model.WaitlistEntry{}, ErrInvalidPartySize
	}
	name := strings.TrimSpace(req.CustomerName)
	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if name == "" || !validEmail(email) {
		return model.WaitlistEntry{}, ErrContactRequired
	}
	now := s.clock.Now()
	e := model.WaitlistEntry{
		ID:              s.newID(),
		EventID:         eventID,
		CustomerName:    name,
		CustomerEmail:   email,
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		NumberOfPersons: req.NumberOfPersons,
		Status:          model.WaitlistPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateWaitlistEntry(ctx, &e); err != nil {
		return model.WaitlistEntry{}, fmt.Errorf("create waitlist entry: %w", err)
	}
	s.publish(ctx, bus.TopicWaitlistEntryCreated, bus.WaitlistEntryCreated{
		EntryID:         e.ID,
		EventID:         e.EventID,
		NumberOfPersons: e.NumberOfPersons,
	})
	return e, nil
}

// List returns the entries of an event, optionally filtered by status.
func (s *Service) List(ctx context.Context, eventID string, status model.WaitlistStatus) ([]model.WaitlistEntry, error) {
	entries, err := s.store.ListWaitlistByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return entries, nil
	}
	out := make([]model.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

// Count returns the number of entries still waiting (pending or contacted).
func (s *Service) Count(ctx context.Context, eventID string) (int, error) {
	entries, err := s.store.ListWaitlistByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Status == model.WaitlistPending || e.Status == model.WaitlistContacted {
			n++
		}
	}
	return n, nil
}

// MarkContacted records that a staff member reached out to the party.
func (s *Service) MarkContacted(ctx context.Context, id, by string) (model.WaitlistEntry, error) {
	now := s.clock.Now()
	status := model.WaitlistContacted
	return s.transition(ctx, id, model.WaitlistPatch{Status: &status, ContactedAt: &now, ContactedBy: &by})
}

// MarkConverted links the entry to the booking made from it.
func (s *Service) MarkConverted(ctx context.Context, id, bookingID string) (model.WaitlistEntry, error) {
	if bookingID == "" {
		return model.WaitlistEntry{}, ErrBookingRequired
	}
	status := model.WaitlistConverted
	e, err := s.transition(ctx, id, model.WaitlistPatch{Status: &status, ConvertedToBookingID: &bookingID})
	if err != nil {
		return e, err
	}
	s.publish(ctx, bus.TopicWaitlistEntryConverted, bus.WaitlistEntryConverted{
		EntryID:   e.ID,
		EventID:   e.EventID,
		BookingID: bookingID,
	})
	return e, nil
}

// Cancel withdraws an entry.
func (s *Service) Cancel(ctx context.Context, id string) (model.WaitlistEntry, error) {
	status := model.WaitlistCancelled
	return s.transition(ctx, id, model.WaitlistPatch{Status: &status})
}

// Expire marks an entry whose event has passed or whose offer lapsed.
func (s *Service) Expire(ctx context.Context, id string) (model.WaitlistEntry, error) {
	status := model.WaitlistExpired
	return s.transition(ctx, id, model.WaitlistPatch{Status: &status})
}

// Delete removes an entry outright.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteWaitlistEntry(ctx, id)
}

func (s *Service) transition(ctx context.Context, id string, patch model.WaitlistPatch) (model.WaitlistEntry, error) {
	e, err := s.store.GetWaitlistEntry(ctx, id)
	if err != nil {
		return model.WaitlistEntry{}, err
	}
	if e.Status.Terminal() {
		return e, ErrTerminal
	}
	if err := s.store.UpdateWaitlistEntry(ctx, id, patch); err != nil {
		return e, fmt.Errorf("update waitlist entry %s: %w", id, err)
	}
	return s.store.GetWaitlistEntry(ctx, id)
}

func (s *Service) publish(ctx context.Context, topic bus.Topic, payload any) {
	if s.bus != nil {
		s.bus.Publish(ctx, topic, payload)
	}
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
