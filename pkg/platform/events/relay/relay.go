// Package relay drains the event outbox to external publishers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meritledger/pkg/platform/events"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Relay polls the outbox for unpublished events and hands each batch to every
// publisher. A batch is marked published only when all publishers accept it,
// so delivery is at-least-once.
type Relay struct {
	store      events.Store
	publishers []events.Publisher
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(store events.Store, publishers []events.Publisher, opts ...Option) *Relay {
	r := &Relay{
		store:      store,
		publishers: publishers,
		interval:   defaultInterval,
		batchSize:  defaultBatchSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains on every tick until ctx is cancelled. Publish failures are logged
// and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return ctx.Err()
				}
				r.logger.WarnContext(ctx, "event relay drain failed", "error", err)
			}
		}
	}
}

// Drain publishes pending events batch by batch until the outbox is empty or a
// publisher fails. It returns the number of events marked published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		batch, err := r.store.Pending(ctx, r.batchSize)
		if err != nil {
			return total, fmt.Errorf("load pending events: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		for _, pub := range r.publishers {
			start := time.Now()
			if err := pub.Publish(ctx, batch); err != nil {
				if r.metrics != nil {
					r.metrics.IncPublishFailures(pub.Name())
				}
				return total, fmt.Errorf("publish via %s: %w", pub.Name(), err)
			}
			if r.metrics != nil {
				r.metrics.ObservePublish(pub.Name(), start)
			}
		}

		seqs := make([]uint64, len(batch))
		for i, ev := range batch {
			seqs[i] = ev.Seq
		}
		if err := r.store.MarkPublished(ctx, seqs); err != nil {
			return total, fmt.Errorf("mark events published: %w", err)
		}
		total += len(batch)
		if r.metrics != nil {
			r.metrics.AddRelayed(len(batch))
		}

		if len(batch) < r.batchSize {
			return total, nil
		}
	}
}
