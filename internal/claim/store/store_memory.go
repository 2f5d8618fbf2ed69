package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"merch/internal/claim/models"
	"merch/pkg/platform/sentinel"
	platformsync "merch/pkg/platform/sync"
)

// InMemoryStore keeps codes in a map. The map itself is guarded by mu;
// each record is mutated only under its code's shard lock.
type InMemoryStore struct {
	mu    sync.RWMutex
	codes map[string]*models.ClaimCode
	locks *platformsync.ShardedMutex
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		codes: make(map[string]*models.ClaimCode),
		locks: platformsync.NewShardedMutex(32),
	}
}

func (s *InMemoryStore) lookup(code string) (*models.ClaimCode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	return c, ok
}

func (s *InMemoryStore) Get(_ context.Context, code string) (*models.ClaimCode, error) {
	c, ok := s.lookup(code)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	s.locks.Lock(code)
	defer s.locks.Unlock(code)
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) MarkUsed(_ context.Context, code, consumer string, now time.Time) (*models.ClaimCode, error) {
	return s.mutate(code, func(c *models.ClaimCode) error {
		if err := c.CheckConsumable(consumer, now); err != nil {
			return err
		}
		c.ApplyConsume(consumer, now)
		return nil
	})
}

func (s *InMemoryStore) Reserve(_ context.Context, code, holder string, now, until time.Time) (*models.ClaimCode, error) {
	return s.mutate(code, func(c *models.ClaimCode) error {
		if err := c.CheckConsumable(holder, now); err != nil {
			return err
		}
		c.ApplyReserve(holder, until)
		return nil
	})
}

func (s *InMemoryStore) mutate(code string, fn func(*models.ClaimCode) error) (*models.ClaimCode, error) {
	c, ok := s.lookup(code)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	s.locks.Lock(code)
	defer s.locks.Unlock(code)
	if err := fn(c); err != nil {
		return nil, err
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) Seed(_ context.Context, codes []models.ClaimCode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for i := range codes {
		if _, exists := s.codes[codes[i].Code]; exists {
			continue
		}
		c := codes[i]
		s.codes[c.Code] = &c
		inserted++
	}
	return inserted, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.ClaimCode, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.codes))
	for k := range s.codes {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	out := make([]models.ClaimCode, 0, len(keys))
	for _, k := range keys {
		if c, err := s.Get(context.Background(), k); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// Health always succeeds; present so every backend can register a readiness check.
func (s *InMemoryStore) Health(context.Context) error {
	return nil
}
