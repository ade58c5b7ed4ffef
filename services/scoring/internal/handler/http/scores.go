package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
	"github.com/toolhub/toolhub/pkg/httputil"
	"github.com/toolhub/toolhub/services/scoring/internal/domain"
	"github.com/toolhub/toolhub/services/scoring/internal/service"
)

// ScoresHandler handles HTTP requests for aggregated review scores.
type ScoresHandler struct {
	service *service.AggregationService
	logger  *slog.Logger
}

// NewScoresHandler creates a new scores HTTP handler.
func NewScoresHandler(svc *service.AggregationService, logger *slog.Logger) *ScoresHandler {
	return &ScoresHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request / Response DTOs ---

// RecalculateRequest is the JSON request body for a single recalculation.
// ToolID is kept raw so a missing id and a malformed one can be told apart.
type RecalculateRequest struct {
	ToolID json.RawMessage `json:"toolId"`
}

// RecalculateResponse is returned by POST /api/v1/admin/scores/recalculate.
type RecalculateResponse struct {
	Message          string                  `json:"message"`
	ToolID           int64                   `json:"toolId"`
	AggregatedScores *domain.AggregatedScore `json:"aggregatedScores"`
	ReviewsProcessed int                     `json:"reviewsProcessed"`
}

// RecalculateAllResponse is returned by POST /api/v1/admin/scores/recalculate-all.
type RecalculateAllResponse struct {
	Message    string                `json:"message"`
	TotalTools int                   `json:"totalTools"`
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	Failures   []domain.BatchFailure `json:"failures"`
}

var (
	errMissingToolID = apperrors.InvalidInputCode("MISSING_TOOL_ID", "toolId is required")
	errInvalidToolID = apperrors.InvalidInputCode("INVALID_TOOL_ID", "toolId must be a positive integer")
)

// parseToolID accepts a JSON integer or a string holding one.
func parseToolID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errMissingToolID
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, errInvalidToolID
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, errMissingToolID
		}
	} else {
		text = string(raw)
	}

	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidToolID
	}
	return id, nil
}

func pathToolID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "toolId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidToolID
	}
	return id, nil
}

// --- Handlers ---

// Recalculate handles POST /api/v1/admin/scores/recalculate
func (h *ScoresHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}

	toolID, err := parseToolID(req.ToolID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Recalculate(r.Context(), toolID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	message := "Scores recalculated successfully"
	if result.Score == nil {
		message = "No approved reviews; aggregated score removed"
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: RecalculateResponse{
		Message:          message,
		ToolID:           result.ToolID,
		AggregatedScores: result.Score,
		ReviewsProcessed: result.ReviewsProcessed,
	}})
}

// RecalculateAll handles POST /api/v1/admin/scores/recalculate-all
//
// Per-tool failures do not fail the request; they are listed in failures.
func (h *ScoresHandler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecalculateAll(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	message := fmt.Sprintf("Recalculated scores for %d tools", result.Successful)
	if result.HasFailures() {
		message = fmt.Sprintf("Recalculated scores for %d of %d tools", result.Successful, result.TotalTools)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: RecalculateAllResponse{
		Message:    message,
		TotalTools: result.TotalTools,
		Successful: result.Successful,
		Failed:     result.Failed,
		Failures:   result.Failures,
	}})
}

// GetToolScores handles GET /api/v1/tools/{toolId}/scores
func (h *ScoresHandler) GetToolScores(w http.ResponseWriter, r *http.Request) {
	toolID, err := pathToolID(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	score, err := h.service.GetAggregatedScore(r.Context(), toolID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: score})
}
