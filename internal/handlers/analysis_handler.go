package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
)

// ResultEnqueuer is the analysis-queue surface the handler needs
type ResultEnqueuer interface {
	Enqueue(ctx context.Context, body any, dedupKey string) (bool, error)
}

// AnalysisHandler accepts OCR results from the external provider and queues
// them for analysis
type AnalysisHandler struct {
	analysisQueue ResultEnqueuer
	logger        arbor.ILogger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analysisQueue ResultEnqueuer, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{analysisQueue: analysisQueue, logger: logger}
}

// ResultsHandler handles POST /analysis/results: one OCR result per call.
// Repeated deliveries of the same job are dropped by dedup key, so the OCR
// provider can retry freely.
func (h *AnalysisHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var result models.OCRResult
	if err := decodeBody(r, &result); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(result.JobID) == "" {
		WriteError(w, http.StatusBadRequest, "jobId is required")
		return
	}
	if strings.TrimSpace(result.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	enqueued, err := h.analysisQueue.Enqueue(r.Context(), result, result.JobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"queued":   enqueued,
		"jobId":    result.JobID,
	})
}
