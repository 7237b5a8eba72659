package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes events to a fanout exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewAMQPPublisher dials url and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, channel, err := dialExchange(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func dialExchange(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, channel, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event GroupChanged) error {
	msg, err := amqpPublishing(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		"",         // routing key (ignored by fanout)
		false,      // mandatory
		false,      // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func amqpPublishing(event GroupChanged) (amqp091.Publishing, error) {
	body, err := event.Encode()
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   event.At,
		Type:        string(event.Kind),
		Body:        body,
	}, nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// AMQPSubscriber binds an exclusive, auto-deleted queue to the exchange so
// every instance receives every event.
type AMQPSubscriber struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp091.Connection
}

// NewAMQPSubscriber creates a subscriber. The connection is made by Run.
func NewAMQPSubscriber(url, exchange string) *AMQPSubscriber {
	return &AMQPSubscriber{url: url, exchange: exchange}
}

// Run consumes until ctx is done, reconnecting with backoff when the
// broker connection drops.
func (s *AMQPSubscriber) Run(ctx context.Context, handle Handler) error {
	for attempt := 0; ; attempt++ {
		err := s.consume(ctx, handle)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		slog.WarnContext(ctx, "AMQP consumer stopped, reconnecting", "error", err, "attempt", attempt)
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return err
		}
	}
}

func (s *AMQPSubscriber) consume(ctx context.Context, handle Handler) error {
	conn, channel, err := dialExchange(s.url, s.exchange)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()
	defer channel.Close()

	queue, err := channel.QueueDeclare(
		"",    // name (server generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(queue.Name, "", s.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := channel.Consume(
		queue.Name, // queue
		"",         // consumer
		false,      // auto-ack (we want manual ack)
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming group events", "exchange", s.exchange, "queue", queue.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			process(ctx, delivery.Body, delivery, handle)
		}
	}
}

// acknowledger is the subset of amqp091.Delivery used by deliver.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func process(ctx context.Context, body []byte, ack acknowledger, handle Handler) {
	event, err := Decode(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode group event", "error", err)
		ack.Nack(false, false) // reject and don't requeue
		return
	}
	if err := handle(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to handle group event", "error", err, "group_id", event.GroupID)
		ack.Nack(false, true) // reject and requeue
		return
	}
	ack.Ack(false)
}

func (s *AMQPSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn.Close()
	}
	return nil
}
