package syncfeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/queue"
)

var ErrInvalidEvent = errors.New("validation: invalid sync event")

// Event tells a user's other surfaces that an analysis finished. IDs are ULIDs,
// so ordering by ID is ordering by creation time.
type Event struct {
	ID         string          `json:"id"`
	UserID     string          `json:"-"`
	AnalysisID string          `json:"analysis_id"`
	Kind       contract.Kind   `json:"request_type"`
	Platform   string          `json:"platform,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Input is the body of POST /api/sync/events.
type Input struct {
	AnalysisID string          `json:"analysis_id"`
	Kind       contract.Kind   `json:"request_type"`
	Platform   string          `json:"platform"`
	Result     json.RawMessage `json:"result"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (in Input) validate() error {
	if in.AnalysisID == "" {
		return fmt.Errorf("%w: analysis_id is required", ErrInvalidEvent)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown request_type", ErrInvalidEvent)
	}
	return nil
}

func (e Event) message(requestID string) queue.Message {
	return queue.Message{
		EventID:    e.ID,
		UserID:     e.UserID,
		AnalysisID: e.AnalysisID,
		Kind:       string(e.Kind),
		Platform:   e.Platform,
		Result:     e.Result,
		OccurredAt: e.Timestamp,
		RequestID:  requestID,
		Version:    queue.MessageVersion,
	}
}

// FromMessage rebuilds an event from its queue message.
func FromMessage(msg queue.Message) (Event, error) {
	if msg.EventID == "" || msg.UserID == "" || msg.AnalysisID == "" {
		return Event{}, fmt.Errorf("%w: eventId, userId and analysisId are required", ErrInvalidEvent)
	}
	return Event{
		ID:         msg.EventID,
		UserID:     msg.UserID,
		AnalysisID: msg.AnalysisID,
		Kind:       contract.Kind(msg.Kind),
		Platform:   msg.Platform,
		Result:     msg.Result,
		Timestamp:  msg.OccurredAt,
	}, nil
}
