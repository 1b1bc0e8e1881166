package spiders

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// DiarioOficialBR crawls diariooficial.com.br city archives, paged
// newest-first under the city slug.
type DiarioOficialBR struct {
	base
	cfg *models.DiarioOficialBRConfig
}

// NewDiarioOficialBR builds the diariooficial.com.br adapter
func NewDiarioOficialBR(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*DiarioOficialBR, error) {
	platform, ok := cfg.Config.(*models.DiarioOficialBRConfig)
	if !ok || platform.CitySlug == "" {
		return nil, models.NewInputError("diario_oficial_br config requires citySlug", nil)
	}
	return &DiarioOficialBR{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *DiarioOficialBR) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	siteURL := fmt.Sprintf("https://www.diariooficial.com.br/%s", s.cfg.CitySlug)
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/page/%d", siteURL, page)
		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		pageGazettes, passedStart, err := s.parsePage(siteURL, doc)
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

func (s *DiarioOficialBR) parsePage(siteURL string, doc *goquery.Document) ([]models.Gazette, bool, error) {
	var gazettes []models.Gazette
	var parseErr error
	passedStart := false

	doc.Find("article, table tbody tr").EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		date, ok := findBRDate(entry.Text())
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

		href, exists := entry.Find("a[href$='.pdf'], a[href*='edicao']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("diario_oficial_br: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(siteURL, href))
		g.EditionNumber = editionFromText(entry.Find("h2, td").First().Text())
		g.IsExtraEdition = isExtraEdition(entry.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, passedStart, parseErr
}
