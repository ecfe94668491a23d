// Package sink delivers flow events to Kafka. Host applications consume the
// topic to drive their own telemetry, breadcrumbs, and compliance archives.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "onboard/pkg/platform/audit"
)

// Kafka publishes events to a single topic, keyed by session id so each
// session's transitions stay ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka builds a Kafka sink from seed brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// Publish produces one event synchronously. The outbox worker retries on the
// next tick, so per-call idempotence is carried by the event id in the value.
func (k *Kafka) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal flow event: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.SessionID.String()),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce flow event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
