package syncfeed

import (
	"context"
	"sort"
	"sync"
)

// Repo stores the per-user event feed. Append is idempotent on Event.ID.
type Repo interface {
	Append(ctx context.Context, e Event) error
	ListSince(ctx context.Context, userID, sinceID string, limit int) ([]Event, error)
}

// MemoryRepo keeps events in memory.
type MemoryRepo struct {
	mu     sync.RWMutex
	byUser map[string][]Event
	seen   map[string]bool
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUser: make(map[string][]Event), seen: make(map[string]bool)}
}

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[e.ID] {
		return nil
	}
	r.seen[e.ID] = true
	events := append(r.byUser[e.UserID], e)
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	r.byUser[e.UserID] = events
	return nil
}

func (r *MemoryRepo) ListSince(ctx context.Context, userID, sinceID string, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, 0)
	for _, e := range r.byUser[userID] {
		if e.ID <= sinceID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
