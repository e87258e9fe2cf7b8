package usage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coach-backend/internal/shared/server/middleware"
	"coach-backend/internal/shared/server/respond"
	"coach-backend/internal/tier"
)

// Handler exposes usage endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

// RegisterDevRoutes attaches dev-only usage routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage/reset", h.resetUsage)
}

func (h *Handler) getUsage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	t := tier.Normalize(middleware.TierFromContext(c))
	summary, err := h.Svc.Summary(c.Request.Context(), userID, t)
	if err != nil {
		writeStoreError(c, err, "failed to fetch usage")
		return
	}
	respond.JSON(c, http.StatusOK, summary)
}

func (h *Handler) resetUsage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.Svc.Reset(c.Request.Context(), userID); err != nil {
		writeStoreError(c, err, "failed to reset usage")
		return
	}
	t := tier.Normalize(middleware.TierFromContext(c))
	summary, err := h.Svc.Summary(c.Request.Context(), userID, t)
	if err != nil {
		writeStoreError(c, err, "failed to fetch usage")
		return
	}
	respond.JSON(c, http.StatusOK, summary)
}

func writeStoreError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
