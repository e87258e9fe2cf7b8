package usage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"coach-backend/internal/contract"
	"coach-backend/internal/shared/auth"
	"coach-backend/internal/shared/server/middleware"
)

func newUsageRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth())
	h := NewHandler(svc)
	h.RegisterRoutes(r.Group("/api/v1"))
	h.RegisterDevRoutes(r.Group("/api/v1/dev"))
	return r
}

func bearer(t *testing.T, sub, tierName string) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "usage-secret")
	token, err := auth.SignJWT(auth.Claims{Sub: sub, Tier: tierName})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return "Bearer " + token
}

func TestGetUsageUsesTokenTier(t *testing.T) {
	svc := NewService()
	router := newUsageRouter(svc)
	authz := bearer(t, "user-9", "plus")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	req.Header.Set("Authorization", authz)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body Summary
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tier != "premium" {
		t.Fatalf("expected premium tier, got %s", body.Tier)
	}
	for _, u := range body.Kinds {
		if u.Kind == contract.KindPhoto && u.Limit != 50 {
			t.Fatalf("expected premium photo limit 50, got %d", u.Limit)
		}
	}
}

func TestResetUsage(t *testing.T) {
	svc := NewService()
	router := newUsageRouter(svc)
	authz := bearer(t, "user-9", "free")
	svc.Consume(t.Context(), "user-9", "free", contract.KindProfile)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dev/usage/reset", nil)
	req.Header.Set("Authorization", authz)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body Summary
	json.Unmarshal(resp.Body.Bytes(), &body)
	for _, u := range body.Kinds {
		if u.Used != 0 {
			t.Fatalf("expected zero usage after reset, got %+v", u)
		}
	}
}
