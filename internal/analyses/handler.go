package analyses

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coach-backend/internal/contract"
	"coach-backend/internal/orchestrator"
	"coach-backend/internal/shared/server/middleware"
	"coach-backend/internal/shared/server/respond"
	"coach-backend/internal/tier"
	"coach-backend/internal/usage"
)

const maxListLimit = 100

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the /api group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/analysis", h.analyze)

	v1 := api.Group("/v1")
	v1.POST("/photo-analyses", h.analyzePhoto)
	v1.GET("/analyses", h.listAnalyses)
	v1.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) analyze(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var req contract.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.UserID != "" && req.UserID != userID {
		respond.Error(c, http.StatusForbidden, "forbidden", "user_id does not match session", nil)
		return
	}
	c.Set("requestType", string(req.RequestType))

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	resp, err := h.Svc.Analyze(ctx, userID, tier.Normalize(middleware.TierFromContext(c)), req)
	if err != nil {
		switch code := classifyFailure(err); code {
		case ErrorCodeValidation:
			respond.Error(c, http.StatusBadRequest, code, sanitizeError(err), nil)
		case ErrorCodeProvider, ErrorCodeTimeout:
			respond.Error(c, http.StatusBadGateway, code, sanitizeError(err), nil)
		default:
			log.Printf("analysis failed user=%s type=%s: %v", userID, req.RequestType, err)
			respond.Error(c, http.StatusInternalServerError, code, "failed to run analysis", nil)
		}
		return
	}
	if resp.AnalysisID != "" {
		c.Set("analysisId", resp.AnalysisID)
		c.Set("usedProvider", resp.UsedProvider)
		c.Set("statusTransition", "processing->completed")
	}
	respond.OK(c, resp)
}

func (h *Handler) analyzePhoto(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var req PhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageData == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "imageData is required", nil)
		return
	}
	c.Set("requestType", string(contract.KindPhoto))

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	result, err := h.Svc.AnalyzePhoto(ctx, userID, tier.Normalize(middleware.TierFromContext(c)), req)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrLimitReached):
			respond.Error(c, http.StatusTooManyRequests, "limit_reached", "You've reached your photo analysis limit. Upgrade your plan to continue.", []map[string]string{
				{"field": "usage", "issue": "limit_reached"},
			})
		case errors.Is(err, ErrInvalidImage):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, sanitizeError(err), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodePhotoFailed, sanitizeError(err), nil)
		}
		return
	}
	c.Set("analysisId", result.AnalysisID)
	c.Set("usedProvider", result.AIProviderUsed)
	respond.OK(c, gin.H{"data": result})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	filter := ListFilter{Limit: 20}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	filter.Limit = min(max(filter.Limit, 0), maxListLimit)
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = max(parsed, 0)
		}
	}
	if v := c.Query("type"); v != "" {
		kind, ok := contract.ParseKind(v)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown analysis type", nil)
			return
		}
		filter.Kind = kind
	}

	analyses, err := h.Svc.List(c.Request.Context(), userID, filter)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"analysisId":   a.ID,
			"analysisType": a.Kind,
			"status":       a.Status,
			"createdAt":    a.CreatedAt,
		}
		if a.Status == StatusCompleted {
			item["confidence"] = a.Confidence
			item["aiProvider"] = a.Provider
			if score, ok := a.Result[orchestrator.ScoreField(a.Kind)]; ok {
				item["score"] = score
			}
		}
		if a.ImageURL != "" {
			item["imageUrl"] = a.ImageURL
		}
		resp = append(resp, item)
	}

	respond.OK(c, resp)
}
