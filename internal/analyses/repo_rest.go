package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"coach-backend/internal/contract"
)

// RESTRepo stores analyses through a PostgREST-style data API. Requests carry
// the service key both as a bearer token and as the apikey header.
type RESTRepo struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

// NewRESTRepo builds a RESTRepo for baseURL (e.g. https://<project>.example.co).
func NewRESTRepo(ctx context.Context, baseURL, apiKey string, timeout time.Duration) *RESTRepo {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = timeout
	return &RESTRepo{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		now:     time.Now,
	}
}

type restRow struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	AnalysisType      string          `json:"analysis_type"`
	Status            string          `json:"status"`
	InputData         json.RawMessage `json:"input_data,omitempty"`
	Results           map[string]any  `json:"results,omitempty"`
	ConfidenceScore   *float64        `json:"confidence_score,omitempty"`
	AIProvider        string          `json:"ai_provider,omitempty"`
	PreferredProvider string          `json:"preferred_provider,omitempty"`
	ImageURL          string          `json:"image_url,omitempty"`
	ErrorCode         string          `json:"error_code,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	ProcessingTimeMs  *int64          `json:"processing_time_ms,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (r restRow) analysis() Analysis {
	a := Analysis{
		ID:                r.ID,
		UserID:            r.UserID,
		Kind:              contract.Kind(r.AnalysisType),
		Status:            r.Status,
		Input:             r.InputData,
		Result:            r.Results,
		Provider:          r.AIProvider,
		PreferredProvider: r.PreferredProvider,
		ImageURL:          r.ImageURL,
		ErrorCode:         r.ErrorCode,
		ErrorMessage:      r.ErrorMessage,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.ConfidenceScore != nil {
		a.Confidence = *r.ConfidenceScore
	}
	if r.ProcessingTimeMs != nil {
		a.ProcessingTimeMs = *r.ProcessingTimeMs
	}
	return a
}

// Create inserts the processing record.
func (r *RESTRepo) Create(ctx context.Context, a Analysis) error {
	row := restRow{
		ID:                a.ID,
		UserID:            a.UserID,
		AnalysisType:      string(a.Kind),
		Status:            a.Status,
		InputData:         a.Input,
		PreferredProvider: a.PreferredProvider,
		ImageURL:          a.ImageURL,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.CreatedAt,
	}
	return r.do(ctx, http.MethodPost, r.tableURL(nil), row, nil)
}

// Complete patches the record with its result.
func (r *RESTRepo) Complete(ctx context.Context, analysisID string, c Completion) error {
	fields := map[string]any{
		"status":             StatusCompleted,
		"results":            c.Result,
		"confidence_score":   c.Confidence,
		"ai_provider":        c.Provider,
		"processing_time_ms": c.ProcessingTimeMs,
	}
	if len(c.Raw) > 0 && json.Valid(c.Raw) {
		fields["raw_analysis"] = c.Raw
	}
	return r.patch(ctx, analysisID, fields)
}

// Fail marks the record failed.
func (r *RESTRepo) Fail(ctx context.Context, analysisID, code, message string) error {
	return r.patch(ctx, analysisID, map[string]any{
		"status":        StatusFailed,
		"error_code":    code,
		"error_message": message,
	})
}

func (r *RESTRepo) patch(ctx context.Context, analysisID string, fields map[string]any) error {
	fields["updated_at"] = r.now().UTC()
	var rows []restRow
	q := url.Values{"id": {"eq." + analysisID}}
	if err := r.do(ctx, http.MethodPatch, r.tableURL(q), fields, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns an analysis by ID.
func (r *RESTRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	var rows []restRow
	q := url.Values{"id": {"eq." + analysisID}, "select": {"*"}, "limit": {"1"}}
	if err := r.do(ctx, http.MethodGet, r.tableURL(q), nil, &rows); err != nil {
		return Analysis{}, err
	}
	if len(rows) == 0 {
		return Analysis{}, ErrNotFound
	}
	return rows[0].analysis(), nil
}

// ListByUser returns analyses for a user, newest first.
func (r *RESTRepo) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	q := url.Values{
		"user_id": {"eq." + userID},
		"select":  {"*"},
		"order":   {"created_at.desc"},
	}
	if filter.Kind != "" {
		q.Set("analysis_type", "eq."+string(filter.Kind))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	var rows []restRow
	if err := r.do(ctx, http.MethodGet, r.tableURL(q), nil, &rows); err != nil {
		return nil, err
	}
	out := make([]Analysis, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.analysis())
	}
	return out, nil
}

func (r *RESTRepo) tableURL(q url.Values) string {
	u := r.baseURL + "/rest/v1/analyses"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (r *RESTRepo) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode analysis row: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	} else if method == http.MethodPost {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage request %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage request %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storage decode: %w", err)
	}
	return nil
}

var _ Repo = (*RESTRepo)(nil)
