package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"coach-backend/internal/contract"
	"coach-backend/internal/llm"
	"coach-backend/internal/orchestrator"
	"coach-backend/internal/shared/metrics"
	"coach-backend/internal/shared/storage/object"
	"coach-backend/internal/shared/telemetry"
	"coach-backend/internal/tier"
	"coach-backend/internal/usage"
)

const (
	confidenceParsed = 0.9
	confidenceCanned = 0.5
)

// Service runs analyses and keeps their records.
type Service struct {
	Repo              Repo
	Usage             *usage.Service
	Orchestrator      *orchestrator.Orchestrator
	Store             object.Store
	PreferredProvider string
	now               func() time.Time
}

// PhotoRequest is the body of the enhanced photo analysis endpoint.
type PhotoRequest struct {
	ImageData         string `json:"imageData"`
	FileName          string `json:"fileName"`
	AnalysisType      string `json:"analysisType"`
	PreferredProvider string `json:"preferredProvider"`
}

// PhotoResult is what the enhanced photo analysis endpoint returns.
type PhotoResult struct {
	AnalysisID       string         `json:"analysis_id"`
	ImageURL         string         `json:"image_url"`
	Analysis         map[string]any `json:"analysis"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	AIProviderUsed   string         `json:"ai_provider_used"`
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// Analyze handles an AnalysisRequest for userID on tier t. A request over quota
// yields an unsuccessful response with a nil error; provider failures are errors.
func (s *Service) Analyze(ctx context.Context, userID string, t tier.Tier, req contract.Request) (contract.Response, error) {
	kind, ok := contract.ParseKind(string(req.RequestType))
	if !ok {
		return contract.Response{}, ErrInvalidKind
	}

	if s.Usage != nil {
		u, err := s.Usage.Check(ctx, userID, t, kind)
		if err != nil {
			return contract.Response{}, fmt.Errorf("usage check: %w", err)
		}
		if !u.Allowed {
			metrics.IncTierLimited()
			telemetry.Info("analysis.tier_limited", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"user_id":    userID,
				"kind":       string(kind),
				"tier":       string(t),
				"used":       u.Used,
				"limit":      u.Limit,
			})
			return contract.TierLimited(u), nil
		}
	}

	job := orchestrator.Job{
		Kind:              kind,
		PreferredProvider: s.PreferredProvider,
	}
	input := req.Data
	var imageURL string
	if kind == contract.KindPhoto {
		img, err := photoFromPayload(req.Data)
		if err != nil {
			return contract.Response{}, err
		}
		job.Image = &img
		job.Prompt = orchestrator.BuildPrompt(kind, nil, req.Options)
		if imageURL, err = s.storeImage(ctx, userID, "photo", img); err != nil {
			return contract.Response{}, err
		}
		input = photoInputRef(imageURL, img)
	} else {
		job.Prompt = orchestrator.BuildPrompt(kind, req.Data, req.Options)
	}

	analysis := Analysis{
		ID:                uuid.NewString(),
		UserID:            userID,
		Kind:              kind,
		Status:            StatusProcessing,
		Input:             input,
		PreferredProvider: job.PreferredProvider,
		ImageURL:          imageURL,
		CreatedAt:         s.clock(),
	}
	res, err := s.run(ctx, analysis, job)
	if err != nil {
		return contract.Response{}, err
	}

	resp := contract.Response{
		Success:        true,
		Data:           res.Record,
		AnalysisID:     analysis.ID,
		Confidence:     confidence(res),
		ProcessingTime: res.Duration.Milliseconds(),
		UsedProvider:   res.UsedProvider,
		CurrentTier:    string(t),
	}
	if s.Usage != nil {
		u, err := s.Usage.Consume(ctx, userID, t, kind)
		if err != nil && !errors.Is(err, usage.ErrLimitReached) {
			log.Printf("usage consume failed analysis=%s: %v", analysis.ID, err)
		} else {
			resp.TierUsage = &u
		}
	}
	return resp, nil
}

// AnalyzePhoto stores the image, analyzes it and returns the enhanced photo result.
func (s *Service) AnalyzePhoto(ctx context.Context, userID string, t tier.Tier, req PhotoRequest) (PhotoResult, error) {
	if s.Usage != nil {
		u, err := s.Usage.Check(ctx, userID, t, contract.KindPhoto)
		if err != nil {
			return PhotoResult{}, fmt.Errorf("usage check: %w", err)
		}
		if !u.Allowed {
			metrics.IncTierLimited()
			return PhotoResult{}, usage.ErrLimitReached
		}
	}

	img, err := llm.ParseDataURL(req.ImageData)
	if err != nil {
		return PhotoResult{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	imageURL, err := s.storeImage(ctx, userID, req.FileName, img)
	if err != nil {
		return PhotoResult{}, err
	}

	preferred := req.PreferredProvider
	if preferred == "" {
		preferred = s.PreferredProvider
	}
	analysisType := strings.TrimSpace(req.AnalysisType)
	if analysisType == "" {
		analysisType = "comprehensive"
	}
	analysis := Analysis{
		ID:                uuid.NewString(),
		UserID:            userID,
		Kind:              contract.KindPhoto,
		Status:            StatusProcessing,
		Input:             photoInputRef(imageURL, img),
		PreferredProvider: preferred,
		ImageURL:          imageURL,
		CreatedAt:         s.clock(),
	}
	res, err := s.run(ctx, analysis, orchestrator.Job{
		Kind:              contract.KindPhoto,
		Prompt:            orchestrator.PhotoPrompt(analysisType),
		Image:             &img,
		PreferredProvider: preferred,
	})
	if err != nil {
		return PhotoResult{}, err
	}
	if s.Usage != nil {
		if _, err := s.Usage.Consume(ctx, userID, t, contract.KindPhoto); err != nil && !errors.Is(err, usage.ErrLimitReached) {
			log.Printf("usage consume failed analysis=%s: %v", analysis.ID, err)
		}
	}

	return PhotoResult{
		AnalysisID:       analysis.ID,
		ImageURL:         imageURL,
		Analysis:         res.Record,
		ProcessingTimeMs: res.Duration.Milliseconds(),
		AIProviderUsed:   res.UsedProvider,
	}, nil
}

// run inserts the processing record, orchestrates and patches the outcome.
func (s *Service) run(ctx context.Context, analysis Analysis, job orchestrator.Job) (orchestrator.Result, error) {
	if s.Orchestrator == nil {
		return orchestrator.Result{}, orchestrator.ErrNoProvider
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return orchestrator.Result{}, fmt.Errorf("storage create analysis: %w", err)
	}
	metrics.IncAnalysisStarted()
	s.logStatus(ctx, analysis, StatusProcessing, "none->processing", nil)

	started := s.clock()
	res, err := s.Orchestrator.Run(ctx, job)
	if err != nil {
		s.failAnalysis(ctx, analysis, err, started)
		return orchestrator.Result{}, err
	}

	if err := s.Repo.Complete(ctx, analysis.ID, Completion{
		Result:           res.Record,
		Raw:              res.Raw,
		Confidence:       confidence(res),
		Provider:         res.UsedProvider,
		ProcessingTimeMs: res.Duration.Milliseconds(),
	}); err != nil {
		err = fmt.Errorf("storage complete analysis: %w", err)
		s.failAnalysis(ctx, analysis, err, started)
		return orchestrator.Result{}, err
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(res.Duration.Microseconds()) / 1000.0)
	s.logStatus(ctx, analysis, StatusCompleted, "processing->completed", map[string]any{
		"provider":      res.Provider,
		"used_provider": res.UsedProvider,
		"fell_back":     res.FellBack,
		"canned":        res.Canned,
		"duration_ms":   res.Duration.Milliseconds(),
	})
	return res, nil
}

func (s *Service) failAnalysis(ctx context.Context, analysis Analysis, err error, startedAt time.Time) {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	if updateErr := s.Repo.Fail(context.WithoutCancel(ctx), analysis.ID, code, msg); updateErr != nil {
		log.Printf("failAnalysis: update failed id=%s err=%v orig=%v", analysis.ID, updateErr, err)
	}
	metrics.IncAnalysisFailed()
	elapsed := s.clock().Sub(startedAt)
	metrics.ObserveAnalysisDurationMs(float64(elapsed.Microseconds()) / 1000.0)
	s.logStatus(ctx, analysis, StatusFailed, "processing->failed", map[string]any{
		"error_code":  code,
		"error":       msg,
		"duration_ms": elapsed.Milliseconds(),
	})
}

func (s *Service) logStatus(ctx context.Context, analysis Analysis, status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"analysis_id":       analysis.ID,
		"kind":              string(analysis.Kind),
		"status":            status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if status == StatusFailed {
		telemetry.Error("analysis.status", fields)
		return
	}
	telemetry.Info("analysis.status", fields)
}

// Get returns an analysis owned by userID.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, filter)
}

func (s *Service) storeImage(ctx context.Context, userID, fileName string, img llm.Image) (string, error) {
	if s.Store == nil {
		return "", nil
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = "photo"
	}
	obj, err := s.Store.Put(ctx, userID, fileName, img.MimeType, img.Data)
	if err != nil {
		return "", fmt.Errorf("storage put image: %w", err)
	}
	return obj.URL, nil
}

func confidence(res orchestrator.Result) float64 {
	if res.Canned {
		return confidenceCanned
	}
	return confidenceParsed
}

// photoFromPayload reads photoData from a photo analysis payload. It may be a
// data URL or an object holding one under imageData.
func photoFromPayload(data json.RawMessage) (llm.Image, error) {
	var payload struct {
		PhotoData json.RawMessage `json:"photoData"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.PhotoData) == 0 {
		return llm.Image{}, fmt.Errorf("%w: photoData is required", ErrInvalidImage)
	}
	var raw string
	if err := json.Unmarshal(payload.PhotoData, &raw); err != nil {
		var nested struct {
			ImageData string `json:"imageData"`
		}
		if err := json.Unmarshal(payload.PhotoData, &nested); err != nil {
			return llm.Image{}, fmt.Errorf("%w: photoData must be a data URL", ErrInvalidImage)
		}
		raw = nested.ImageData
	}
	img, err := llm.ParseDataURL(raw)
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func photoInputRef(imageURL string, img llm.Image) json.RawMessage {
	ref, _ := json.Marshal(map[string]any{
		"image_url":  imageURL,
		"mime_type":  img.MimeType,
		"size_bytes": len(img.Data),
	})
	return ref
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	var providersErr *orchestrator.ProvidersError
	switch {
	case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrInvalidImage):
		return ErrorCodeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	case errors.As(err, &providersErr), errors.Is(err, orchestrator.ErrNoProvider):
		return ErrorCodeProvider
	}
	if strings.Contains(strings.ToLower(err.Error()), "storage") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
