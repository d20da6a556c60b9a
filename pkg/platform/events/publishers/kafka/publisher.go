// Package kafka publishes outbox events to a Kafka (or Redpanda) topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"meritledger/pkg/platform/events"
)

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher writes each event as one record keyed by aggregate, so all events
// for a certificate or scholarship land on the same partition in order.
type Publisher struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) Publish(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(batch))
	for _, ev := range batch {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(ev.AggregateID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(ev.Type)},
				{Key: "category", Value: []byte(ev.Type.Category())},
				{Key: "seq", Value: []byte(strconv.FormatUint(ev.Seq, 10))},
			},
		})
	}
	if err := p.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}
