package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Analysis), now: time.Now}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = analysis.CreatedAt
	}
	r.byID[analysis.ID] = analysis
	return nil
}

// Complete marks the analysis completed with its result.
func (r *MemoryRepo) Complete(ctx context.Context, analysisID string, c Completion) error {
	return r.update(ctx, analysisID, func(a *Analysis) {
		a.Status = StatusCompleted
		a.Result = c.Result
		a.Confidence = c.Confidence
		a.Provider = c.Provider
		a.ProcessingTimeMs = c.ProcessingTimeMs
		a.RawAnalysis = c.Raw
	})
}

// Fail marks the analysis failed.
func (r *MemoryRepo) Fail(ctx context.Context, analysisID, code, message string) error {
	return r.update(ctx, analysisID, func(a *Analysis) {
		a.Status = StatusFailed
		a.ErrorCode = code
		a.ErrorMessage = message
	})
}

func (r *MemoryRepo) update(ctx context.Context, analysisID string, apply func(*Analysis)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	apply(&a)
	a.UpdatedAt = r.now().UTC()
	r.byID[analysisID] = a
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// ListByUser returns analyses for a user, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Analysis, 0)
	for _, a := range r.byID {
		if a.UserID != userID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	offset := max(filter.Offset, 0)
	if offset >= len(out) {
		return []Analysis{}, nil
	}
	end := len(out)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return out[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
