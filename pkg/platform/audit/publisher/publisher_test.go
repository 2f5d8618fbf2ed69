package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "merch/pkg/domain-errors"
	audit "merch/pkg/platform/audit"
	"merch/pkg/platform/audit/store/memory"
)

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, _ audit.Event) error {
	<-s.release
	return nil
}

func TestPublisher_SyncEmitStoresEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventCodeConsumed), Code: "DEMO123"}))

	events, err := store.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventMintAuthorized)}))
	}
	pub.Close()

	events, _ := store.ListRecent(context.Background(), 0)
	assert.Len(t, events, 10)

	err := pub.Emit(context.Background(), audit.Event{Action: "late"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	pub.Close()
}

func TestPublisher_AsyncBufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	// First event is picked up by the worker and blocks; second fills the buffer.
	var full error
	for range 3 {
		if err := pub.Emit(context.Background(), audit.Event{Action: "x"}); err != nil {
			full = err
		}
	}
	close(store.release)
	pub.Close()

	require.Error(t, full)
	assert.True(t, errors.Is(full, dErrors.New(dErrors.CodeUnavailable, "")))
}
