// Package draft keeps the single-slot snapshot of an unfinished wizard
// session so a customer can pick up where they left off.  A snapshot older
// than the TTL is treated as absent and removed on read.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/wizard"
)

// DefaultTTL is how long a draft stays recoverable.
const DefaultTTL = 24 * time.Hour

// DefaultPrefix namespaces draft keys.
const DefaultPrefix = "wizard:draft:"

// Store is a string key/value store.  ttl is a hint for expiring backends;
// Recovery checks the age of every draft itself.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Recovery saves, loads and clears drafts.  It implements wizard.DraftSaver.
type Recovery struct {
	store  Store
	prefix string
	ttl    time.Duration
	clock  clock.Clock
}

// Option configures a Recovery.
type Option func(*Recovery)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recovery) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(p string) Option {
	return func(r *Recovery) {
		if p != "" {
			r.prefix = p
		}
	}
}

// New returns a Recovery over store.
func New(store Store, clk clock.Clock, opts ...Option) *Recovery {
	r := &Recovery{store: store, prefix: DefaultPrefix, ttl: DefaultTTL, clock: clk}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the recovery window.
func (r *Recovery) TTL() time.Duration { return r.ttl }

// Save overwrites the draft under key.  A zero SavedAt is stamped with the
// current time.
func (r *Recovery) Save(ctx context.Context, key string, d wizard.Draft) error {
	if d.SavedAt.IsZero() {
		d.SavedAt = r.clock.Now()
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return r.store.Set(ctx, r.prefix+key, string(raw), r.ttl)
}

// Load returns the draft under key.  ok is false when there is none, when
// it cannot be decoded, or when it is older than the TTL; the last two are
// also removed from the store.
func (r *Recovery) Load(ctx context.Context, key string) (wizard.Draft, bool, error) {
	raw, ok, err := r.store.Get(ctx, r.prefix+key)
	if err != nil || !ok {
		return wizard.Draft{}, false, err
	}
	var d wizard.Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		log.Printf("draft: discarding unreadable draft %s: %v", key, err)
		return wizard.Draft{}, false, r.store.Remove(ctx, r.prefix+key)
	}
	if age := r.clock.Now().Sub(d.SavedAt); age > r.ttl {
		log.Printf("draft: discarding draft %s, %s old", key, age.Round(time.Minute))
		return wizard.Draft{}, false, r.store.Remove(ctx, r.prefix+key)
	}
	return d, true, nil
}

// Clear removes the draft under key.
func (r *Recovery) Clear(ctx context.Context, key string) error {
	return r.store.Remove(ctx, r.prefix+key)
}

// MemoryStore is an in-process Store.  It ignores ttl.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
