package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/events/store/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu      sync.Mutex
	name    string
	batches [][]events.Event
	fail    error
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(_ context.Context, batch []events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.batches = append(p.batches, append([]events.Event{}, batch...))
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func seed(t *testing.T, store *memory.InMemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, events.Emit(context.Background(), store, events.TypeCertificateIssued, "certificate:1", map[string]int{"i": i}))
	}
}

func TestDrainPublishesInBatches(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 5)
	pub := &recordingPublisher{name: "rec"}

	r := New(store, []events.Publisher{pub}, WithBatchSize(2))
	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, pub.batches, 3)

	pending, err := store.Pending(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainLeavesBatchPendingWhenAnyPublisherFails(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 2)
	ok := &recordingPublisher{name: "ok"}
	broken := &recordingPublisher{name: "broken", fail: errors.New("unreachable")}

	r := New(store, []events.Publisher{ok, broken})
	n, err := r.Drain(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, n)

	pending, err := store.Pending(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	broken.fail = nil
	n, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, ok.count(), "at-least-once: ok publisher sees the batch twice")
}

func TestRunStopsOnCancel(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 3)
	pub := &recordingPublisher{name: "rec"}

	ctx, cancel := context.WithCancel(context.Background())
	r := New(store, []events.Publisher{pub}, WithInterval(5*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
