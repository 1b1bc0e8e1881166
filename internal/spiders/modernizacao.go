package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Modernizacao crawls Modernizacao tenant sites, a plain paged table under
// the tenant's own domain.
type Modernizacao struct {
	base
	cfg *models.ModernizacaoConfig
}

// NewModernizacao builds the Modernizacao adapter
func NewModernizacao(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Modernizacao, error) {
	platform, ok := cfg.Config.(*models.ModernizacaoConfig)
	if !ok || platform.Domain == "" {
		return nil, models.NewInputError("modernizacao config requires domain", nil)
	}
	return &Modernizacao{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *Modernizacao) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	siteURL := "https://" + strings.TrimPrefix(strings.TrimRight(s.cfg.Domain, "/"), "https://")
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/diario/index.php?pagina=%d", siteURL, page)
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

func (s *Modernizacao) parsePage(siteURL string, doc *goquery.Document) ([]models.Gazette, bool, error) {
	var gazettes []models.Gazette
	var parseErr error
	passedStart := false

	doc.Find("table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
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
			parseErr = models.NewParseError("modernizacao: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(siteURL, href))
		g.EditionNumber = editionFromText(row.Find("td").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, passedStart, parseErr
}
