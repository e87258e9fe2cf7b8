package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coach-backend/internal/services/health"
	"coach-backend/internal/shared/auth"
	"coach-backend/internal/shared/config"
	"coach-backend/internal/shared/server/middleware"
	"coach-backend/internal/syncfeed"
)

func TestHealthIsPublic(t *testing.T) {
	r := NewRouter(RouterDeps{Health: health.NewService(nil, []string{"openai"})})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body health.Report
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Services["api"] != "up" {
		t.Fatalf("unexpected health: %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(RouterDeps{})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "analysis_started_total") {
		t.Fatalf("unexpected metrics response %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMeRequiresToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "router-secret")
	r := NewRouter(RouterDeps{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	token, err := auth.SignJWT(auth.Claims{Sub: "user-1", Email: "a@example.com", Tier: "plus"})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["userId"] != "user-1" || body["tier"] != "premium" || body["email"] != "a@example.com" {
		t.Fatalf("unexpected me body: %+v", body)
	}
}

func TestPollingRateLimit(t *testing.T) {
	t.Setenv("JWT_SECRET", "router-secret")
	r := NewRouter(RouterDeps{
		Config:      config.Config{Env: "dev"},
		SyncHandler: syncfeed.NewHandler(syncfeed.NewService(syncfeed.NewMemoryRepo(), nil)),
		RateLimits: map[string]middleware.RateLimitRule{
			middleware.RateLimitPolling: {Rate: 0.001, Burst: 1},
		},
	})
	token, _ := auth.SignJWT(auth.Claims{Sub: "user-1", Tier: "free"})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/sync/events", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes: %v", codes)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
