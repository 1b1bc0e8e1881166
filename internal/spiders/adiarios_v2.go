package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/diario/internal/models"
)

// ADiariosV2 crawls the reworked ADiarios layout, whose listing is assembled
// entirely by client-side JavaScript. It requires a rendering browser; when
// none is configured the crawl degrades to a typed Unavailable error instead
// of reporting a false empty result.
type ADiariosV2 struct {
	base
	cfg     *models.ADiariosV2Config
	browser Renderer
}

// NewADiariosV2 builds the browser-backed ADiarios adapter
func NewADiariosV2(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*ADiariosV2, error) {
	platform, ok := cfg.Config.(*models.ADiariosV2Config)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("adiarios_v2 config requires baseUrl", nil)
	}
	return &ADiariosV2{
		base:    newBase(cfg, window, deps),
		cfg:     platform,
		browser: deps.Browser,
	}, nil
}

func (s *ADiariosV2) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}
	if s.browser == nil {
		return nil, models.NewUnavailableError("adiarios_v2 requires a rendering browser")
	}

	url := fmt.Sprintf("%s/diarios?data_inicial=%s&data_final=%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		s.window.Start.Format(brDateLayout),
		s.window.End.Format(brDateLayout))

	s.renders++
	rows, err := s.browser.RenderTable(ctx, url, "table.diarios tbody tr")
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewTimeoutError("render adiarios_v2 listing", ctx.Err())
		}
		return nil, models.NewNetworkError("render adiarios_v2 listing", err)
	}

	var gazettes []models.Gazette
	for _, cells := range rows {
		rowText := strings.Join(cells, " ")
		date, ok := findBRDate(rowText)
		if !ok {
			return nil, models.NewParseError("adiarios_v2: rendered row without date", nil)
		}
		if !s.keep(date) {
			continue
		}

		fileURL := ""
		for _, cell := range cells {
			if strings.Contains(cell, ".pdf") || strings.Contains(cell, "/download") {
				fileURL = absoluteURL(s.cfg.BaseURL, cell)
				break
			}
		}
		if fileURL == "" {
			return nil, models.NewParseError("adiarios_v2: rendered row without file link on "+date.String(), nil)
		}

		g := s.gazette(date, fileURL)
		g.EditionNumber = editionFromText(rowText)
		g.IsExtraEdition = isExtraEdition(rowText)
		gazettes = append(gazettes, g)
	}
	return gazettes, nil
}
