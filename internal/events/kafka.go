package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a topic, keyed by group so a group's
// events stay ordered within one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event GroupChanged) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessage(event GroupChanged) (kafka.Message, error) {
	data, err := event.Encode()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.GroupID),
		Value: data,
		Time:  event.At,
	}, nil
}

// KafkaSubscriber reads events from a topic. Each instance uses its own
// consumer group so every instance sees every event.
type KafkaSubscriber struct {
	reader *kafka.Reader
}

// NewKafkaSubscriber creates a subscriber reading topic as consumer group groupID.
func NewKafkaSubscriber(brokers []string, topic, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    1 << 20,
		}),
	}
}

// Run fetches messages and commits each one after handle returns.
// Malformed messages are logged and committed so they are not redelivered.
func (s *KafkaSubscriber) Run(ctx context.Context, handle Handler) error {
	slog.InfoContext(ctx, "Started consuming group events", "topic", s.reader.Config().Topic)
	attempt := 0
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
				return ctx.Err()
			}
			slog.WarnContext(ctx, "Failed to fetch kafka message", "error", err, "attempt", attempt)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return err
			}
			attempt++
			continue
		}
		attempt = 0

		event, err := Decode(msg.Value)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to decode group event", "error", err, "offset", msg.Offset)
		} else if err := handle(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to handle group event", "error", err, "group_id", event.GroupID)
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "Failed to commit kafka message", "error", err, "offset", msg.Offset)
		}
	}
}

func (s *KafkaSubscriber) Close() error {
	return s.reader.Close()
}
