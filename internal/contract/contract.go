package contract

import (
	"encoding/json"
	"strings"
)

// Kind identifies what is being analyzed. The string values are the wire request types.
type Kind string

const (
	KindProfile       Kind = "profile_analysis"
	KindConversation  Kind = "conversation_coaching"
	KindPhoto         Kind = "photo_analysis"
	KindCompatibility Kind = "compatibility_check"
	KindPage          Kind = "page_analysis"
)

var kinds = []Kind{KindProfile, KindConversation, KindPhoto, KindCompatibility, KindPage}

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind accepts either the wire name or the short name ("photo", "page", ...).
func ParseKind(raw string) (Kind, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "profile":
		return KindProfile, true
	case "conversation":
		return KindConversation, true
	case "photo":
		return KindPhoto, true
	case "compatibility":
		return KindCompatibility, true
	case "page":
		return KindPage, true
	}
	k := Kind(v)
	return k, k.Valid()
}

type Depth string

const (
	DepthBasic         Depth = "basic"
	DepthStandard      Depth = "standard"
	DepthComprehensive Depth = "comprehensive"
	DepthExpert        Depth = "expert"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Options tune an analysis. Field order is part of the request digest.
type Options struct {
	DepthLevel             Depth    `json:"depth_level"`
	IncludeRecommendations bool     `json:"include_recommendations"`
	CulturalContext        string   `json:"cultural_context"`
	Platform               string   `json:"platform"`
	Priority               Priority `json:"priority"`
}

// Request is the body of POST /api/analysis.
type Request struct {
	UserID       string          `json:"user_id"`
	SessionToken string          `json:"session_token"`
	RequestType  Kind            `json:"request_type"`
	Data         json.RawMessage `json:"data"`
	Options      Options         `json:"options"`
}

// TierUsage reports the quota state for one kind.
type TierUsage struct {
	Allowed     bool   `json:"allowed"`
	CurrentTier string `json:"current_tier"`
	Kind        Kind   `json:"request_type"`
	Used        int    `json:"usage"`
	Limit       int    `json:"limit"`
}

// Response is the AnalysisResponse returned by the backend and by the broker.
type Response struct {
	Success         bool           `json:"success"`
	Data            map[string]any `json:"data,omitempty"`
	Error           string         `json:"error,omitempty"`
	AnalysisID      string         `json:"analysis_id,omitempty"`
	Confidence      float64        `json:"confidence"`
	ProcessingTime  int64          `json:"processing_time"`
	TierUsage       *TierUsage     `json:"tier_usage"`
	UpgradeRequired bool           `json:"upgrade_required,omitempty"`
	CurrentTier     string         `json:"current_tier,omitempty"`
	UsedProvider    string         `json:"used_provider,omitempty"`
}

// Failure builds the standard failed response.
func Failure(msg string) Response {
	return Response{Success: false, Error: msg}
}

// TierLimited builds the response for a request blocked by the caller's tier.
func TierLimited(usage TierUsage) Response {
	return Response{
		Success:         false,
		Error:           "Tier limit exceeded",
		TierUsage:       &usage,
		UpgradeRequired: true,
		CurrentTier:     usage.CurrentTier,
	}
}
