package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coach-backend/internal/contract"
)

// Transport delivers one analysis request to the backend.
type Transport interface {
	Send(ctx context.Context, req contract.Request) (contract.Response, error)
}

// HealthChecker is implemented by transports that can probe the backend.
type HealthChecker interface {
	Health(ctx context.Context) (Health, error)
}

type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// HTTPTransport posts to {BaseURL}/api/analysis.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPTransport returns a transport with a bounded client timeout.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req contract.Request) (contract.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return contract.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/analysis", bytes.NewReader(payload))
	if err != nil {
		return contract.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.SessionToken)

	resp, err := t.client().Do(httpReq)
	if err != nil {
		return contract.Response{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return contract.Response{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return contract.Response{}, statusError(resp, body)
	}
	var out contract.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return contract.Response{}, fmt.Errorf("decode analysis response: %w", err)
	}
	return out, nil
}

func (t *HTTPTransport) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/api/health", nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Health{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Health{}, statusError(resp, body)
	}
	var out Health
	if err := json.Unmarshal(body, &out); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	return out, nil
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// statusError keeps the server's error message when the body carries one.
func statusError(resp *http.Response, body []byte) error {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		return fmt.Errorf("API request failed: %s: %s", resp.Status, env.Error.Message)
	}
	return fmt.Errorf("API request failed: %s", resp.Status)
}
