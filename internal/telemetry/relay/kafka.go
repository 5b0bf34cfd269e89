// Package relay mirrors persisted telemetry batches to Kafka for downstream
// analytics consumers. The relay is strictly best-effort: publish failures
// are counted and logged, never surfaced to the batch writer.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"fidotel/internal/telemetry"
)

// record is the JSON payload published per event.
type record struct {
	ID             string            `json:"id"`
	Kind           string            `json:"kind"`
	SubjectID      string            `json:"subjectId"`
	Outcome        bool              `json:"outcome"`
	DurationMillis int64             `json:"durationMillis"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
	NodeID         string            `json:"nodeId"`
}

// Kafka publishes telemetry events to a single topic, keyed by subject so a
// subject's events stay ordered within a partition.
type Kafka struct {
	client    *kgo.Client
	topic     string
	logger    *slog.Logger
	onFailure func()

	failures atomic.Int64
}

// Option configures the Kafka relay.
type Option func(*Kafka)

// WithFailureHook invokes fn for every record that fails to publish, in
// addition to the internal counter. Used to feed an external metric.
func WithFailureHook(fn func()) Option {
	return func(k *Kafka) { k.onFailure = fn }
}

// NewKafka connects to the brokers and ensures the topic exists.
func NewKafka(ctx context.Context, brokers []string, topic string, logger *slog.Logger, opts ...Option) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("relay requires at least one broker")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	k := &Kafka{client: client, topic: topic, logger: logger}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

func (k *Kafka) recordFailure() {
	k.failures.Add(1)
	if k.onFailure != nil {
		k.onFailure()
	}
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", topic, err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %q: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// PublishBatch fires one record per event and returns without waiting for
// acknowledgement. Failed produces increment the failure counter from the
// client's callback goroutine.
func (k *Kafka) PublishBatch(ctx context.Context, events []telemetry.Event) {
	for _, event := range events {
		payload, err := json.Marshal(record{
			ID:             event.ID.String(),
			Kind:           string(event.Kind),
			SubjectID:      event.SubjectID,
			Outcome:        event.Outcome,
			DurationMillis: event.DurationMillis,
			Attributes:     event.Attributes,
			OccurredAt:     event.OccurredAt,
			NodeID:         event.NodeID,
		})
		if err != nil {
			k.recordFailure()
			continue
		}

		k.client.Produce(ctx, &kgo.Record{
			Topic: k.topic,
			Key:   []byte(event.SubjectID),
			Value: payload,
		}, func(_ *kgo.Record, err error) {
			if err != nil {
				k.recordFailure()
				if k.logger != nil {
					k.logger.Warn("relay publish failed", "topic", k.topic, "error", err)
				}
			}
		})
	}
}

// Failures returns the total number of records that failed to publish.
func (k *Kafka) Failures() int64 {
	return k.failures.Load()
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close() {
	if err := k.client.Flush(context.Background()); err != nil && k.logger != nil {
		k.logger.Warn("relay flush on close failed", "error", err)
	}
	k.client.Close()
}
