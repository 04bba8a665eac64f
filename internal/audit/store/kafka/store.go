package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"caseguard/internal/audit"
	"caseguard/pkg/platform/sentinel"
)

// Store publishes audit events to a Kafka topic for downstream SIEM and
// long-retention consumers. Events are keyed by actor id so one actor's
// trail stays ordered within a partition.
type Store struct {
	client *kgo.Client
	topic  string
}

// New creates a Kafka-backed audit store from broker seeds.
func New(brokers []string, topic string) (*Store, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Store{client: client, topic: topic}, nil
}

// Append produces one event synchronously. The worker already isolates the
// caller from latency, so waiting for the broker ack here keeps delivery
// visible to the failure log.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.ActorID),
		Value: payload,
		Topic: s.topic,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Close flushes and shuts down the producer.
func (s *Store) Close() {
	s.client.Close()
}
