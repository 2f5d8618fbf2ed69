package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_DefaultsShardCount(t *testing.T) {
	assert.Len(t, NewShardedMutex(0).shards, defaultShards)
	assert.Len(t, NewShardedMutex(8).shards, 8)
}

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex(4)
	counter := 0
	var wg sync.WaitGroup

	for range 200 {
		wg.Go(func() {
			_ = m.Do("DEMO123", func() error {
				counter++
				return nil
			})
		})
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestShardedMutex_DoReturnsError(t *testing.T) {
	m := NewShardedMutex(4)
	want := errors.New("boom")

	assert.ErrorIs(t, m.Do("TEST456", func() error { return want }), want)

	// Lock must have been released.
	m.Lock("TEST456")
	m.Unlock("TEST456")
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex(32)
	shards := make(map[int]bool)
	for _, key := range []string{"EVENT2025", "DEMO123", "TEST456", "BLOCKCHAIN789", "BASE2025", "MERCH001"} {
		shards[m.shardFor(key)] = true
	}
	assert.GreaterOrEqual(t, len(shards), 3)
}

func TestHashString(t *testing.T) {
	assert.Equal(t, hashString("DEMO123"), hashString("DEMO123"))
	assert.NotEqual(t, hashString("DEMO123"), hashString("DEMO124"))
	assert.Equal(t, uint32(0), hashString(""))
}
