package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
)

// InMemoryStore is an append-only event log. Appends made inside an in-memory
// transaction are truncated again if the transaction rolls back.
type InMemoryStore struct {
	mu        sync.RWMutex
	log       []events.Event
	published map[uint64]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[uint64]bool)}
}

func (s *InMemoryStore) Append(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	n := len(s.log)
	event.Seq = uint64(n + 1)
	s.log = append(s.log, event)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.log = s.log[:n]
	})
	return nil
}

// List returns up to limit events with Seq greater than afterSeq.
func (s *InMemoryStore) List(_ context.Context, afterSeq uint64, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if afterSeq >= uint64(len(s.log)) {
		return []events.Event{}, nil
	}
	out := s.log[afterSeq:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]events.Event{}, out...), nil
}

func (s *InMemoryStore) Pending(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, ev := range s.log {
		if s.published[ev.Seq] {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, seqs []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range seqs {
		s.published[seq] = true
	}
	return nil
}
