package http

import (
	"log/slog"
	"net/http"

	"github.com/toolhub/toolhub/pkg/httputil"
	"github.com/toolhub/toolhub/pkg/validator"
	"github.com/toolhub/toolhub/services/scoring/internal/scoring"
	"github.com/toolhub/toolhub/services/scoring/internal/service"
)

// FeaturedHandler handles HTTP requests for the featured tool selection.
type FeaturedHandler struct {
	service *service.FeaturedService
	logger  *slog.Logger
}

// NewFeaturedHandler creates a new featured HTTP handler.
func NewFeaturedHandler(svc *service.FeaturedService, logger *slog.Logger) *FeaturedHandler {
	return &FeaturedHandler{
		service: svc,
		logger:  logger,
	}
}

// featuredQuery holds the query parameters shared by the featured routes.
// Limits above the maximum are capped by the service, not rejected.
type featuredQuery struct {
	Limit int `json:"limit" validate:"min=1"`
}

func (h *FeaturedHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, ok := httputil.QueryInt(r, "limit", scoring.DefaultFeaturedLimit)
	if !ok {
		httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be an integer")
		return 0, false
	}
	if err := validator.Validate(featuredQuery{Limit: limit}); err != nil {
		httputil.WriteValidationError(w, r, err)
		return 0, false
	}
	return limit, true
}

// ListFeatured handles GET /api/v1/admin/featured
//
// Query params: limit (default 100, capped at 100), debug (include score
// breakdowns).
func (h *FeaturedHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListFeatured(r.Context(), limit, httputil.QueryBool(r, "debug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: list})
}

// RefreshFeatured handles POST /api/v1/admin/featured/refresh
func (h *FeaturedHandler) RefreshFeatured(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	refresh, err := h.service.RefreshFeatured(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: refresh})
}

// GetToolFeaturedScore handles GET /api/v1/admin/featured/tools/{toolId}
//
// Returns one tool's featured score with its breakdown.
func (h *FeaturedHandler) GetToolFeaturedScore(w http.ResponseWriter, r *http.Request) {
	toolID, err := pathToolID(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	score, err := h.service.GetFeaturedScore(r.Context(), toolID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: score})
}
