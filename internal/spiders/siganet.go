package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/diario/internal/models"
)

// Siganet crawls Siganet tenant sites through their range-query API
type Siganet struct {
	base
	cfg *models.SiganetConfig
}

// NewSiganet builds the Siganet adapter
func NewSiganet(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Siganet, error) {
	platform, ok := cfg.Config.(*models.SiganetConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("siganet config requires baseUrl", nil)
	}
	return &Siganet{base: newBase(cfg, window, deps), cfg: platform}, nil
}

type siganetEdition struct {
	Date    models.Date `json:"data"`
	Numero  string      `json:"numero"`
	Extra   bool        `json:"extra"`
	Arquivo string      `json:"link"`
}

func (s *Siganet) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	url := fmt.Sprintf("%s/api/diarios?inicio=%s&fim=%s", baseURL, s.window.Start, s.window.End)

	var editions []siganetEdition
	if err := s.client.GetJSON(ctx, url, &editions); err != nil {
		return nil, err
	}

	var gazettes []models.Gazette
	for _, edition := range editions {
		if !s.keep(edition.Date) {
			continue
		}
		if edition.Arquivo == "" {
			return nil, models.NewParseError("siganet: edition without file on "+edition.Date.String(), nil)
		}
		g := s.gazette(edition.Date, absoluteURL(baseURL, edition.Arquivo))
		g.EditionNumber = edition.Numero
		g.IsExtraEdition = edition.Extra
		gazettes = append(gazettes, g)
	}
	return gazettes, nil
}
