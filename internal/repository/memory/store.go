// Package memory is an in-process implementation of every storage contract.
// It backs STORAGE=memory deployments and the tests of the service packages.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// Store keeps events, bookings, waitlist entries and staff accounts in maps.
// Values are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	events   map[string]model.Event
	bookings map[string]model.Booking
	waitlist map[string]model.WaitlistEntry
	staff    map[string]model.StaffUser
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		events:   make(map[string]model.Event),
		bookings: make(map[string]model.Booking),
		waitlist: make(map[string]model.WaitlistEntry),
		staff:    make(map[string]model.StaffUser),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---- events ----

func (s *Store) CreateEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return repository.ErrConflict
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	ev.UpdatedAt = ev.CreatedAt
	s.events[ev.ID] = *ev
	return nil
}

func (s *Store) GetEvent(_ context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return ev, nil
}

func (s *Store) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) SetWaitlistActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	ev.WaitlistActive = active
	ev.UpdatedAt = s.now()
	s.events[id] = ev
	return nil
}

// ---- bookings ----

func (s *Store) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[b.EventID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.bookings[b.ID]; ok {
		return repository.ErrConflict
	}
	s.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *Store) ListBookingsByEvent(_ context.Context, eventID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.EventID == eventID {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) FindActiveBookingByEmail(_ context.Context, eventID, email string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.EventID != eventID || !strings.EqualFold(b.Email, email) {
			continue
		}
		if b.Status == model.BookingCancelled || b.Status == model.BookingRejected {
			continue
		}
		found := cloneBooking(b)
		return &found, nil
	}
	return nil, nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id string, status model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return nil
}

func (s *Store) DeleteBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

// ---- waitlist ----

func (s *Store) CreateWaitlistEntry(_ context.Context, e *model.WaitlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.EventID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.waitlist[e.ID]; ok {
		return repository.ErrConflict
	}
	s.waitlist[e.ID] = *e
	return nil
}

func (s *Store) GetWaitlistEntry(_ context.Context, id string) (model.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.waitlist[id]
	if !ok {
		return model.WaitlistEntry{}, repository.ErrNotFound
	}
	return e, nil
}

// ListWaitlistByEvent returns entries in no particular order; callers that
// need arrival order sort by CreatedAt themselves.
func (s *Store) ListWaitlistByEvent(_ context.Context, eventID string) ([]model.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WaitlistEntry
	for _, e := range s.waitlist {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpdateWaitlistEntry(_ context.Context, id string, p model.WaitlistPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.waitlist[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.ContactedAt != nil {
		t := *p.ContactedAt
		e.ContactedAt = &t
	}
	if p.ContactedBy != nil {
		e.ContactedBy = *p.ContactedBy
	}
	if p.ConvertedToBookingID != nil {
		e.ConvertedToBookingID = *p.ConvertedToBookingID
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	e.UpdatedAt = s.now()
	s.waitlist[id] = e
	return nil
}

func (s *Store) DeleteWaitlistEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.waitlist[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.waitlist, id)
	return nil
}

// ---- staff ----

func (s *Store) CreateStaff(_ context.Context, u *model.StaffUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.staff[key]; ok {
		return repository.ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.staff[key] = *u
	return nil
}

func (s *Store) GetStaffByEmail(_ context.Context, email string) (model.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.staff[strings.ToLower(email)]
	if !ok {
		return model.StaffUser{}, repository.ErrNotFound
	}
	return u, nil
}

func cloneBooking(b model.Booking) model.Booking {
	if b.Form.Merchandise != nil {
		b.Form.Merchandise = append([]model.MerchandiseItem(nil), b.Form.Merchandise...)
	}
	return b
}
