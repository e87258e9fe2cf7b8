package usage

import (
	"context"
	"sync"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]map[contract.Kind]Counter
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]map[contract.Kind]Counter)}
}

func (s *memoryStore) Get(ctx context.Context, userID string, kind contract.Kind, now time.Time) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(userID, kind, now), nil
}

func (s *memoryStore) All(ctx context.Context, userID string, now time.Time) (map[contract.Kind]Counter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[contract.Kind]Counter, len(s.data[userID]))
	for kind, c := range s.data[userID] {
		out[kind] = c
	}
	return out, nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, kind contract.Kind, limit int, now time.Time) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(userID, kind, now)
	if limit != tier.Unlimited && c.Used >= limit {
		return c, ErrLimitReached
	}
	c.Used++
	s.data[userID][kind] = c
	return c, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

// ensure must be called with mu held.
func (s *memoryStore) ensure(userID string, kind contract.Kind, now time.Time) Counter {
	byKind, ok := s.data[userID]
	if !ok {
		byKind = make(map[contract.Kind]Counter)
		s.data[userID] = byKind
	}
	c, ok := byKind[kind]
	if !ok || c.expired(now) {
		c = Counter{PeriodStart: now}
		byKind[kind] = c
	}
	return c
}
