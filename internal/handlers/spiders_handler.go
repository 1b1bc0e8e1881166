package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/registry"
)

// SpidersHandler serves the registry's contents
type SpidersHandler struct {
	registry *registry.Registry
	logger   arbor.ILogger
}

// NewSpidersHandler creates a new SpidersHandler
func NewSpidersHandler(reg *registry.Registry, logger arbor.ILogger) *SpidersHandler {
	return &SpidersHandler{registry: reg, logger: logger}
}

// spiderSummary is the listing shape for one registry entry
type spiderSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	TerritoryID string            `json:"territoryId"`
	SpiderType  models.SpiderType `json:"spiderType"`
	StartDate   models.Date       `json:"startDate,omitempty"`
}

// ListHandler handles GET /spiders, optionally filtered by ?type=
func (h *SpidersHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	var configs []models.SpiderConfig
	if t := r.URL.Query().Get("type"); t != "" {
		filtered, err := h.registry.ByType(models.SpiderType(t))
		if err != nil {
			WriteError(w, statusForError(err), err.Error())
			return
		}
		configs = filtered
	} else {
		configs = h.registry.All()
	}

	spiders := make([]spiderSummary, 0, len(configs))
	for _, cfg := range configs {
		spiders = append(spiders, spiderSummary{
			ID:          cfg.ID,
			Name:        cfg.Name,
			TerritoryID: cfg.TerritoryID,
			SpiderType:  cfg.SpiderType,
			StartDate:   cfg.StartDate,
		})
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"total":   len(spiders),
		"spiders": spiders,
	})
}
