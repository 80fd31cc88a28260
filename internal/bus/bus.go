// Package bus is an in-process publish/subscribe hub.  It lets the booking
// lifecycle and the waitlist lifecycle react to each other without either
// package importing the other.
package bus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultHistorySize is the number of published events retained for
// diagnostics when no explicit size is configured.
const DefaultHistorySize = 100

// Topic names a stream of events on the bus.
type Topic string

// Handler receives a published payload.  A returned error is logged by the
// bus and never reaches the publisher.
type Handler func(ctx context.Context, payload any) error

// Record is a published event kept in the history ring.
type Record struct {
	Topic     Topic     `json:"topic"`
	Payload   any       `json:"payload"`
	Published time.Time `json:"published_at"`
}

// Subscription is the capability to stop receiving events.
type Subscription interface {
	Unsubscribe()
}

type listener struct {
	id    uint64
	async bool
	fn    Handler
}

// Bus dispatches payloads to the handlers registered for a topic.  The zero
// value is not usable; construct with New.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Topic][]listener
	nextID    uint64

	histMu  sync.Mutex
	history []Record
	head    int
	size    int

	now func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize overrides the capacity of the history ring.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.history = make([]Record, n)
		}
	}
}

// WithClock overrides the time source used to stamp history records.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		listeners: make(map[Topic][]listener),
		history:   make([]Record, DefaultHistorySize),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a synchronous handler.  Synchronous handlers run inline
// during Publish, one after another in registration order.
func (b *Bus) Subscribe(topic Topic, fn Handler) Subscription {
	return b.add(topic, fn, false)
}

// SubscribeAsync registers a handler that Publish starts in its own
// goroutine.  Publish waits for every asynchronous handler of the topic
// before returning, but they run concurrently with one another.
func (b *Bus) SubscribeAsync(topic Topic, fn Handler) Subscription {
	return b.add(topic, fn, true)
}

func (b *Bus) add(topic Topic, fn Handler, async bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[topic] = append(b.listeners[topic], listener{id: id, async: async, fn: fn})
	log.Printf("bus: subscribed to %q (listeners=%d)", topic, len(b.listeners[topic]))
	return &subscription{bus: b, topic: topic, id: id}
}

type subscription struct {
	bus   *Bus
	topic Topic
	id    uint64
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.topic, s.id) })
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ls := b.listeners[topic]
	for i, l := range ls {
		if l.id == id {
			// copy so a Publish iterating the old slice is unaffected
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			ls = next
			break
		}
	}
	if len(ls) == 0 {
		delete(b.listeners, topic)
	} else {
		b.listeners[topic] = ls
	}
	log.Printf("bus: unsubscribed from %q", topic)
}

// Publish offers payload to every handler registered for topic.  It returns
// once synchronous handlers have run and asynchronous handlers have
// finished.  Handler errors and panics are logged and isolated: they never
// stop sibling handlers and never propagate to the caller.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) {
	b.record(topic, payload)

	b.mu.RLock()
	ls := b.listeners[topic]
	b.mu.RUnlock()
	if len(ls) == 0 {
		log.Printf("bus: no listeners for %q", topic)
		return
	}

	var wg sync.WaitGroup
	for _, l := range ls {
		if l.async {
			wg.Add(1)
			go func(l listener) {
				defer wg.Done()
				b.invoke(ctx, topic, l, payload)
			}(l)
			continue
		}
		b.invoke(ctx, topic, l, payload)
	}
	wg.Wait()
}

func (b *Bus) invoke(ctx context.Context, topic Topic, l listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: handler %d for %q panicked: %v", l.id, topic, r)
		}
	}()
	if err := l.fn(ctx, payload); err != nil {
		log.Printf("bus: handler %d for %q failed: %v", l.id, topic, err)
	}
}

func (b *Bus) record(topic Topic, payload any) {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	b.history[b.head] = Record{Topic: topic, Payload: payload, Published: b.now()}
	b.head = (b.head + 1) % len(b.history)
	if b.size < len(b.history) {
		b.size++
	}
}

// History returns the retained events, oldest first.
func (b *Bus) History() []Record {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	out := make([]Record, 0, b.size)
	start := (b.head - b.size + len(b.history)) % len(b.history)
	for i := 0; i < b.size; i++ {
		out = append(out, b.history[(start+i)%len(b.history)])
	}
	return out
}

// ListenerCount returns the number of handlers registered for topic.
func (b *Bus) ListenerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}

// Clear drops every listener and the history.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.listeners = make(map[Topic][]listener)
	b.mu.Unlock()

	b.histMu.Lock()
	b.history = make([]Record, len(b.history))
	b.head, b.size = 0, 0
	b.histMu.Unlock()
}

// On registers a synchronous handler that receives payloads of type T.  A
// payload of any other type is reported as a handler error.
func On[T any](b *Bus, topic Topic, fn func(context.Context, T) error) Subscription {
	return b.Subscribe(topic, typed(topic, fn))
}

// OnAsync is the asynchronous counterpart of On.
func OnAsync[T any](b *Bus, topic Topic, fn func(context.Context, T) error) Subscription {
	return b.SubscribeAsync(topic, typed(topic, fn))
}

func typed[T any](topic Topic, fn func(context.Context, T) error) Handler {
	return func(ctx context.Context, payload any) error {
		v, ok := payload.(T)
		if !ok {
			if p, isPtr := payload.(*T); isPtr && p != nil {
				v = *p
			} else {
				return fmt.Errorf("unexpected payload %T on %q", payload, topic)
			}
		}
		return fn(ctx, v)
	}
}
