// Package queue_publisher forwards bus events to RabbitMQ.  Errors are logged
// and never reach the booking flow that published the event.
package queue_publisher

import (
	"context"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-booking/internal/bus"
	q "github.com/iliyamo/venue-booking/internal/queue"
)

// Sender delivers an encoded message to a named queue.
type Sender interface {
	Send(ctx context.Context, queue string, body []byte) error
}

// Publisher sends messages to RabbitMQ, opening a connection per message.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// Send publishes body to queue.  The queue is declared durable and messages
// are marked as persistent.
func (p *Publisher) Send(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// Forward subscribes to every routed topic and relays payloads through s.
// Delivery happens off the publisher's goroutine.
func Forward(b *bus.Bus, s Sender, now func() time.Time) []bus.Subscription {
	subs := make([]bus.Subscription, 0, len(q.Routes))
	for topic, queue := range q.Routes {
		topic, queue := topic, queue
		subs = append(subs, b.SubscribeAsync(topic, func(ctx context.Context, payload any) error {
			body, err := q.Encode(topic, payload, now())
			if err != nil {
				return err
			}
			// the request that published may already be finished
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return s.Send(sendCtx, queue, body)
		}))
	}
	return subs
}
