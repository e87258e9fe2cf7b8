package syncfeed

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"coach-backend/internal/shared/server/middleware"
	"coach-backend/internal/shared/server/respond"
)

// Handler exposes the sync feed.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches sync routes to the /api group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/sync/events", h.publish)
	api.GET("/sync/events", h.list)
}

func (h *Handler) publish(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	event, queued, err := h.Svc.Publish(c.Request.Context(), middleware.UserIDFromContext(c), middleware.RequestIDFromContext(c), in)
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record sync event", nil)
		return
	}
	c.Set("analysisId", event.AnalysisID)
	status := http.StatusCreated
	if queued {
		status = http.StatusAccepted
	}
	respond.JSON(c, status, gin.H{"id": event.ID, "queued": queued})
}

func (h *Handler) list(c *gin.Context) {
	since := c.Query("since")
	if since != "" {
		if _, err := ulid.ParseStrict(since); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "since must be an event id", nil)
			return
		}
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	events, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), since, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list sync events", nil)
		return
	}
	next := since
	if len(events) > 0 {
		next = events[len(events)-1].ID
	}
	respond.OK(c, gin.H{"events": events, "next": next})
}
