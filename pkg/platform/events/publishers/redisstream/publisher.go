// Package redisstream publishes outbox events to a Redis stream, which the UI
// backend tails for live updates.
package redisstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"meritledger/pkg/platform/events"
)

const defaultMaxLen = 10000

type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

type Option func(*Publisher)

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

func New(client *redis.Client, stream string, opts ...Option) *Publisher {
	p := &Publisher{client: client, stream: stream, maxLen: defaultMaxLen}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Name() string { return "redis-stream" }

func (p *Publisher) Publish(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, ev := range batch {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]any{
				"seq":          strconv.FormatUint(ev.Seq, 10),
				"id":           ev.ID.String(),
				"type":         string(ev.Type),
				"category":     string(ev.Type.Category()),
				"aggregate_id": ev.AggregateID,
				"occurred_at":  ev.OccurredAt.Format(time.RFC3339Nano),
				"payload":      string(ev.Payload),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd to %s: %w", p.stream, err)
	}
	return nil
}
