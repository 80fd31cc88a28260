package wizard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-booking/internal/clock"
)

var ErrSessionNotFound = errors.New("wizard session not found")

// Registry holds the live sessions of the HTTP layer.  Idle sessions are
// dropped by Sweep; their drafts outlive them and can be resumed.
type Registry struct {
	deps  Deps
	newID func() string

	mu       sync.RWMutex
	sessions map[string]*Machine
}

// NewRegistry returns an empty registry whose sessions share deps.
func NewRegistry(deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	return &Registry{deps: deps, newID: uuid.NewString, sessions: make(map[string]*Machine)}
}

// Create starts a session.  draftKey may be empty.
func (r *Registry) Create(draftKey string) *Machine {
	m := NewMachine(r.newID(), draftKey, r.deps)
	r.mu.Lock()
	r.sessions[m.ID()] = m
	r.mu.Unlock()
	return m
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m, nil
}

// Delete drops a session.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions not updated for longer than idle and returns how
// many were dropped.  Sessions with a submission in flight stay.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.deps.Clock.Now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, m := range r.sessions {
		st := m.State()
		if st.Submitting || !st.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	return n
}

// Janitor calls Sweep every interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(idle); n > 0 {
				log.Printf("wizard: evicted %d idle sessions", n)
			}
		}
	}
}
