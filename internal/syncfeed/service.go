package syncfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"coach-backend/internal/queue"
	"coach-backend/internal/shared/metrics"
	"coach-backend/internal/shared/telemetry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service records and serves sync events. With a Queue configured, Publish
// hands events to the queue and a worker stores them through Ingest.
type Service struct {
	Repo  Repo
	Queue queue.Client
	now   func() time.Time
	newID func(time.Time) string
}

// NewService constructs a Service. q may be nil.
func NewService(repo Repo, q queue.Client) *Service {
	return &Service{
		Repo:  repo,
		Queue: q,
		now:   time.Now,
		newID: func(t time.Time) string { return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String() },
	}
}

// Publish records a new event for userID. queued reports whether the event was
// handed to the queue instead of being stored directly.
func (s *Service) Publish(ctx context.Context, userID, requestID string, in Input) (Event, bool, error) {
	if userID == "" {
		return Event{}, false, fmt.Errorf("%w: user is required", ErrInvalidEvent)
	}
	if err := in.validate(); err != nil {
		return Event{}, false, err
	}
	now := s.now().UTC()
	ts := in.Timestamp.UTC()
	if in.Timestamp.IsZero() {
		ts = now
	}
	e := Event{
		ID:         s.newID(now),
		UserID:     userID,
		AnalysisID: in.AnalysisID,
		Kind:       in.Kind,
		Platform:   in.Platform,
		Result:     in.Result,
		Timestamp:  ts,
	}

	if s.Queue != nil {
		if err := s.Queue.Send(ctx, e.message(requestID)); err != nil {
			return Event{}, false, fmt.Errorf("enqueue sync event: %w", err)
		}
		telemetry.Info("sync.event.queued", map[string]any{
			"request_id":  requestID,
			"user_id":     userID,
			"event_id":    e.ID,
			"analysis_id": e.AnalysisID,
		})
		return e, true, nil
	}
	if err := s.store(ctx, e); err != nil {
		return Event{}, false, err
	}
	return e, false, nil
}

// Ingest stores an event taken off the queue.
func (s *Service) Ingest(ctx context.Context, msg queue.Message) error {
	e, err := FromMessage(msg)
	if err != nil {
		return err
	}
	return s.store(ctx, e)
}

func (s *Service) store(ctx context.Context, e Event) error {
	if err := s.Repo.Append(ctx, e); err != nil {
		return fmt.Errorf("store sync event: %w", err)
	}
	metrics.IncSyncEventsStored()
	telemetry.Info("sync.event.stored", map[string]any{
		"user_id":     e.UserID,
		"event_id":    e.ID,
		"analysis_id": e.AnalysisID,
		"kind":        string(e.Kind),
	})
	return nil
}

// List returns events after sinceID, oldest first.
func (s *Service) List(ctx context.Context, userID, sinceID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	return s.Repo.ListSince(ctx, userID, sinceID, limit)
}
