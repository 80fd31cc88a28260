// Package queue defines the broker side of notifications: the queues bus
// events are forwarded to and the consumer that turns them into log lines.
package queue

import (
	"encoding/json"
	"time"

	"github.com/iliyamo/venue-booking/internal/bus"
)

// Durable queues fed from the in-process bus.
const (
	QueueReservationConfirmed = "reservation.confirmed"
	QueueReservationCancelled = "reservation.cancelled"
	QueueSpotsAvailable       = "waitlist.spots_available"
)

// Routes maps the bus topics that leave the process to their queue.
var Routes = map[bus.Topic]string{
	bus.TopicReservationConfirmed:   QueueReservationConfirmed,
	bus.TopicReservationCancelled:   QueueReservationCancelled,
	bus.TopicWaitlistSpotsAvailable: QueueSpotsAvailable,
}

// Queues lists every queue the notifier consumes.
func Queues() []string {
	return []string{QueueReservationConfirmed, QueueReservationCancelled, QueueSpotsAvailable}
}

// Message is the body of every broker message.  Payload is the JSON form of
// the bus payload named by Topic.
type Message struct {
	Topic       bus.Topic       `json:"topic"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Encode wraps a bus payload into a message body.
func Encode(topic bus.Topic, payload any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Topic: topic, PublishedAt: at.UTC(), Payload: raw})
}
