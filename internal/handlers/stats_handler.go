package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/common"
	"github.com/ternarybob/diario/internal/queue"
	"github.com/ternarybob/diario/internal/registry"
)

// StatsHandler serves the service descriptor, registry stats and queue health
type StatsHandler struct {
	registry *registry.Registry
	queues   []*queue.BadgerQueue
	logger   arbor.ILogger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(reg *registry.Registry, queues []*queue.BadgerQueue, logger arbor.ILogger) *StatsHandler {
	return &StatsHandler{registry: reg, queues: queues, logger: logger}
}

// IndexHandler handles GET /: the service descriptor
func (h *StatsHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"service":           "diario",
		"version":           common.GetVersion(),
		"spidersRegistered": h.registry.Len(),
	})
}

// StatsHandler handles GET /stats: registry totals per platform plus how
// much work is still sitting on the queues.
func (h *StatsHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := queue.StatsFor(r.Context(), h.queues...)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	expected := 0
	for _, s := range stats {
		expected += s.Pending
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"total":              h.registry.Len(),
		"platforms":          h.registry.TypeCounts(),
		"expectedProcessing": expected,
	})
}

// QueueHealthHandler handles GET /health/queue: per-queue depths and a
// rolled-up status. Dead letters mean degraded, not down.
func (h *StatsHandler) QueueHealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := queue.StatsFor(r.Context(), h.queues...)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "down",
			"error":  err.Error(),
		})
		return
	}

	status := "ok"
	for _, s := range stats {
		if s.Dead > 0 {
			status = "degraded"
			break
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"queues": stats,
	})
}
