// Package events delivers SequenceGenerated events to Kafka. The worker feeds
// it from the transactional outbox, so delivery stays at-least-once even when
// the broker is down at generation time.
package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"seqgen/internal/infrastructure/storage/postgres"
)

// KafkaPublisher produces event payloads to a single topic.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the given brokers. The returned publisher
// must be closed to flush buffered records.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Produce sends one payload, keyed so all events of a sequence land in the
// same partition and stay ordered.
func (p *KafkaPublisher) Produce(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// RelayHandler adapts the Kafka publisher to the outbox relay.
type RelayHandler struct {
	publisher *KafkaPublisher
}

// NewRelayHandler creates a relay handler forwarding outbox payloads to Kafka.
func NewRelayHandler(publisher *KafkaPublisher) *RelayHandler {
	return &RelayHandler{publisher: publisher}
}

var _ postgres.OutboxHandler = (*RelayHandler)(nil)

// Handle implements postgres.OutboxHandler.
func (h *RelayHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	key := msg.Scope + "/" + msg.SequenceName
	return h.publisher.Produce(ctx, key, msg.Payload)
}
