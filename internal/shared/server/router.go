package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coach-backend/internal/analyses"
	"coach-backend/internal/services/health"
	"coach-backend/internal/shared/config"
	"coach-backend/internal/shared/metrics"
	"coach-backend/internal/shared/server/middleware"
	"coach-backend/internal/shared/server/respond"
	"coach-backend/internal/syncfeed"
	"coach-backend/internal/usage"
)

// RouterDeps are the handlers the API mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	AnalysisHandler *analyses.Handler
	UsageHandler    *usage.Handler
	SyncHandler     *syncfeed.Handler
	RateLimits      map[string]middleware.RateLimitRule
}

// DefaultRateLimits bounds provider-backed and polling routes per user.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		middleware.RateLimitAnalysis: {Rate: 0.5, Burst: 10},
		middleware.RateLimitPolling:  {Rate: 2, Burst: 30},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil, nil)
	}

	api := r.Group("/api")
	api.Use(
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rules,
			GroupFor: middleware.GroupByRoute,
		}),
	)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status(c.Request.Context()))
	})
	v1 := api.Group("/v1")
	registerMeRoutes(v1)

	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(v1)
		if deps.Config.Env == "dev" {
			deps.UsageHandler.RegisterDevRoutes(v1.Group("/dev"))
		}
	}
	if deps.SyncHandler != nil {
		deps.SyncHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
