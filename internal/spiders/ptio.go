package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Ptio crawls PTIO tenant sites, a paged newest-first table
type Ptio struct {
	base
	cfg *models.PtioConfig
}

// NewPtio builds the PTIO adapter
func NewPtio(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Ptio, error) {
	platform, ok := cfg.Config.(*models.PtioConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("ptio config requires baseUrl", nil)
	}
	return &Ptio{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *Ptio) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/diario?pagina=%d", baseURL, page)
		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		pageGazettes, passedStart, err := s.parsePage(baseURL, doc)
		if err != nil {
			return nil, err
		}
		gazettes = append(gazettes, pageGazettes...)

		if passedStart || len(pageGazettes) == 0 {
			break
		}
	}
	return gazettes, nil
}

func (s *Ptio) parsePage(baseURL string, doc *goquery.Document) ([]models.Gazette, bool, error) {
	var gazettes []models.Gazette
	var parseErr error
	passedStart := false

	doc.Find("table tbody tr, div.edicao-item").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		date, ok := findBRDate(row.Text())
		if !ok {
			return true
		}
		if date.Before(s.window.Start) {
			passedStart = true
			return false
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href$='.pdf'], a[href*='arquivo']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("ptio: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(baseURL, href))
		g.EditionNumber = editionFromText(row.Find("td, strong").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, passedStart, parseErr
}
