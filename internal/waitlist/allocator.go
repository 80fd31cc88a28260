// Package waitlist manages queued parties for full events.  The Allocator
// reacts to freed capacity by selecting parties in arrival order; the
// Service carries the customer and staff operations on entries.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/iliyamo/venue-booking/internal/bus"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/model"
)

// DefaultContactedBy marks entries promoted without a staff member.
const DefaultContactedBy = "waitlist-allocator"

// Queue is the slice of waitlist storage the allocator needs.
type Queue interface {
	ListWaitlistByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error)
	UpdateWaitlistEntry(ctx context.Context, id string, patch model.WaitlistPatch) error
}

// Allocate selects pending entries that fit into freed seats.  Entries are
// walked once, oldest CreatedAt first; an entry that fits is taken and its
// size subtracted from the budget, an entry that does not fit is skipped
// and stays queued.  The walk stops as soon as the budget is exactly zero.
// Allocate does not modify entries and returns the same result for the
// same input.
func Allocate(entries []model.WaitlistEntry, freed int) []model.WaitlistEntry {
	if freed <= 0 {
		return nil
	}
	pending := make([]model.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == model.WaitlistPending {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	budget := freed
	var out []model.WaitlistEntry
	for _, e := range pending {
		if e.NumberOfPersons <= 0 || e.NumberOfPersons > budget {
			continue
		}
		out = append(out, e)
		budget -= e.NumberOfPersons
		if budget == 0 {
			break
		}
	}
	return out
}

// Result describes one allocation run.
type Result struct {
	EventID  string                `json:"event_id"`
	Freed    int                   `json:"freed"`
	Promoted []model.WaitlistEntry `json:"promoted"`
	Leftover int                   `json:"leftover"`
}

// Allocator turns capacity_freed events into contact candidates.
type Allocator struct {
	queue       Queue
	bus         *bus.Bus
	clock       clock.Clock
	contactedBy string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithContactedBy overrides the ContactedBy value written on promotion.
func WithContactedBy(name string) AllocatorOption {
	return func(a *Allocator) {
		if name != "" {
			a.contactedBy = name
		}
	}
}

// NewAllocator returns an allocator over the given queue.  b may be nil, in
// which case no waitlist_spots_available event is published.
func NewAllocator(q Queue, b *bus.Bus, clk clock.Clock, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		queue:       q,
		bus:         b,
		clock:       clk,
		contactedBy: DefaultContactedBy,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach subscribes the allocator to capacity_freed on its bus.
func (a *Allocator) Attach() bus.Subscription {
	return bus.OnAsync(a.bus, bus.TopicCapacityFreed, func(ctx context.Context, ev bus.CapacityFreed) error {
		_, err := a.Promote(ctx, ev)
		return err
	})
}

// Plan returns the promotion set for freed seats without changing anything.
func (a *Allocator) Plan(ctx context.Context, eventID string, freed int) (Result, error) {
	entries, err := a.queue.ListWaitlistByEvent(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("list waitlist for %s: %w", eventID, err)
	}
	return result(eventID, freed, Allocate(forEvent(entries, eventID), freed)), nil
}

// Promote runs an allocation for a freed-capacity event and marks every
// selected entry as contacted.  Runs for the same event are serialized so
// that two quick events never promote the same entry twice.
func (a *Allocator) Promote(ctx context.Context, ev bus.CapacityFreed) (Result, error) {
	if ev.FreedCapacity <= 0 {
		return Result{EventID: ev.EventID}, nil
	}
	lock := a.lockFor(ev.EventID)
	lock.Lock()
	defer lock.Unlock()

	res, err := a.Plan(ctx, ev.EventID, ev.FreedCapacity)
	if err != nil {
		return Result{}, err
	}
	if len(res.Promoted) == 0 {
		log.Printf("waitlist-allocator: event=%s freed=%d: no pending entry fits", ev.EventID, ev.FreedCapacity)
		return res, nil
	}

	now := a.clock.Now()
	status := model.WaitlistContacted
	var errs []error
	promoted := res.Promoted[:0]
	for _, e := range res.Promoted {
		patch := model.WaitlistPatch{Status: &status, ContactedAt: &now, ContactedBy: &a.contactedBy}
		if err := a.queue.UpdateWaitlistEntry(ctx, e.ID, patch); err != nil {
			errs = append(errs, fmt.Errorf("mark %s contacted: %w", e.ID, err))
			continue
		}
		e.Status, e.ContactedAt, e.ContactedBy = status, &now, a.contactedBy
		promoted = append(promoted, e)
		log.Printf("waitlist-allocator: entry %s (%d persons) needs contact for event %s", e.ID, e.NumberOfPersons, ev.EventID)
	}
	res = result(ev.EventID, ev.FreedCapacity, promoted)

	if a.bus != nil && len(promoted) > 0 {
		a.bus.Publish(ctx, bus.TopicWaitlistSpotsAvailable, spotsAvailable(res))
	}
	return res, errors.Join(errs...)
}

func (a *Allocator) lockFor(eventID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[eventID] = l
	}
	return l
}

func forEvent(entries []model.WaitlistEntry, eventID string) []model.WaitlistEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out
}

func result(eventID string, freed int, promoted []model.WaitlistEntry) Result {
	left := freed
	for _, e := range promoted {
		left -= e.NumberOfPersons
	}
	return Result{EventID: eventID, Freed: freed, Promoted: promoted, Leftover: left}
}

func spotsAvailable(res Result) bus.WaitlistSpotsAvailable {
	out := bus.WaitlistSpotsAvailable{EventID: res.EventID, AvailableCapacity: res.Freed}
	for _, e := range res.Promoted {
		out.Entries = append(out.Entries, bus.PromotedEntry{
			EntryID:         e.ID,
			CustomerName:    e.CustomerName,
			CustomerEmail:   e.CustomerEmail,
			CustomerPhone:   e.CustomerPhone,
			NumberOfPersons: e.NumberOfPersons,
		})
	}
	return out
}
