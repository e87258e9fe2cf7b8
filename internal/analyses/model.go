package analyses

import (
	"encoding/json"
	"time"

	"coach-backend/internal/contract"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis is a persisted analysis record. It is inserted as processing and
// patched once the providers have answered.
type Analysis struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Kind              contract.Kind   `json:"analysisType"`
	Status            string          `json:"status"`
	Input             json.RawMessage `json:"input,omitempty"`
	Result            map[string]any  `json:"result,omitempty"`
	Confidence        float64         `json:"confidence"`
	Provider          string          `json:"aiProvider,omitempty"`
	PreferredProvider string          `json:"preferredProvider,omitempty"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	ErrorCode         string          `json:"errorCode,omitempty"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
	ProcessingTimeMs  int64           `json:"processingTimeMs"`
	RawAnalysis       json.RawMessage `json:"-"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Completion is the patch applied to a record when analysis succeeds. Raw is
// the provider response body kept for audit.
type Completion struct {
	Result           map[string]any
	Raw              json.RawMessage
	Confidence       float64
	Provider         string
	ProcessingTimeMs int64
}

// ListFilter narrows ListByUser.
type ListFilter struct {
	Kind   contract.Kind
	Limit  int
	Offset int
}
