package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-booking/internal/bus"
)

// Notifier appends one line per message to a log file.  Actually reaching
// customers is left to whatever tails that file.
type Notifier struct {
	path string
	mu   sync.Mutex
}

// NewNotifier writes to path, creating its directory on first use.
func NewNotifier(path string) *Notifier {
	return &Notifier{path: path}
}

// Handle formats body and appends it to the log.
func (n *Notifier) Handle(queue string, body []byte) error {
	line, err := Format(queue, body)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(n.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Format renders a message as a single human-friendly line.
func Format(queue string, body []byte) (string, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	at := m.PublishedAt.Format(time.RFC3339)

	switch queue {
	case QueueReservationConfirmed:
		var p bus.ReservationConfirmed
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return "", fmt.Errorf("unmarshal payload: %w", err)
		}
		return fmt.Sprintf("[%s] Reservation confirmed | booking_id=%s | event_id=%s | persons=%d | to=%q <%s>\n",
			at, p.BookingID, p.EventID, p.NumberOfPersons, p.ContactName, p.Email), nil
	case QueueReservationCancelled:
		var p bus.ReservationCancelled
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return "", fmt.Errorf("unmarshal payload: %w", err)
		}
		return fmt.Sprintf("[%s] Reservation cancelled | booking_id=%s | event_id=%s | persons=%d\n",
			at, p.BookingID, p.EventID, p.NumberOfPersons), nil
	case QueueSpotsAvailable:
		var p bus.WaitlistSpotsAvailable
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return "", fmt.Errorf("unmarshal payload: %w", err)
		}
		who := make([]string, 0, len(p.Entries))
		for _, e := range p.Entries {
			who = append(who, fmt.Sprintf("%s(%d)<%s>", e.EntryID, e.NumberOfPersons, e.CustomerEmail))
		}
		return fmt.Sprintf("[%s] Waitlist spots available | event_id=%s | available=%d | contact=[%s]\n",
			at, p.EventID, p.AvailableCapacity, strings.Join(who, ",")), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}

// StartConsumer connects to RabbitMQ, declares every notification queue
// (durable) and hands each delivery to n.  It reconnects with backoff until
// ctx is cancelled.  Messages that cannot be handled are rejected without
// requeue so a bad payload cannot spin.
func StartConsumer(ctx context.Context, url string, n *Notifier) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, n)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, n *Notifier) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, name := range Queues() {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		wg.Add(1)
		go func(name string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range msgs {
				if err := n.Handle(name, d.Body); err != nil {
					log.Printf("notify-consumer: handle %s message failed: %v", name, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}(name, msgs)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		_ = ch.Close()
	case err := <-closed:
		if err != nil {
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return errors.New("deliveries channel closed")
}
