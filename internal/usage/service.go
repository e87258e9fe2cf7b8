package usage

import (
	"context"
	"errors"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

type store interface {
	Get(ctx context.Context, userID string, kind contract.Kind, now time.Time) (Counter, error)
	All(ctx context.Context, userID string, now time.Time) (map[contract.Kind]Counter, error)
	Consume(ctx context.Context, userID string, kind contract.Kind, limit int, now time.Time) (Counter, error)
	Reset(ctx context.Context, userID string, now time.Time) error
}

// Service enforces per-kind quotas for a user's tier.
type Service struct {
	store store
	now   func() time.Time
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore(), now: time.Now}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore, now: time.Now}
}

// Check reports whether one more request of kind is allowed without consuming it.
func (s *Service) Check(ctx context.Context, userID string, t tier.Tier, kind contract.Kind) (contract.TierUsage, error) {
	c, err := s.store.Get(ctx, userID, kind, s.now().UTC())
	if err != nil {
		return contract.TierUsage{}, err
	}
	return tier.Check(t, kind, c.Used), nil
}

// Consume counts one request of kind. It returns ErrLimitReached with the
// current usage when the quota is exhausted.
func (s *Service) Consume(ctx context.Context, userID string, t tier.Tier, kind contract.Kind) (contract.TierUsage, error) {
	limit := tier.Limit(t, kind)
	c, err := s.store.Consume(ctx, userID, kind, limit, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrLimitReached) {
			return tier.Check(t, kind, c.Used), err
		}
		return contract.TierUsage{}, err
	}
	return tier.Check(t, kind, c.Used), nil
}

// Summary returns usage for every kind under t.
func (s *Service) Summary(ctx context.Context, userID string, t tier.Tier) (Summary, error) {
	now := s.now().UTC()
	counters, err := s.store.All(ctx, userID, now)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Tier: t, Kinds: make([]Usage, 0, len(contract.Kinds()))}
	for _, kind := range contract.Kinds() {
		c, ok := counters[kind]
		if !ok || c.expired(now) {
			c = Counter{PeriodStart: now}
		}
		out.Kinds = append(out.Kinds, Usage{
			Kind:     kind,
			Used:     c.Used,
			Limit:    tier.Limit(t, kind),
			Allowed:  tier.Allowed(t, kind, c.Used),
			ResetsAt: c.ResetsAt(),
		})
	}
	return out, nil
}

// Reset zeroes every counter for the user.
func (s *Service) Reset(ctx context.Context, userID string) error {
	return s.store.Reset(ctx, userID, s.now().UTC())
}
