package spiders

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// AtendeV2 crawls Atende.net city tenants, each served from its own
// subdomain. The listing pages newest-first.
type AtendeV2 struct {
	base
	cfg *models.AtendeV2Config
}

// NewAtendeV2 builds the Atende.net adapter
func NewAtendeV2(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*AtendeV2, error) {
	platform, ok := cfg.Config.(*models.AtendeV2Config)
	if !ok || platform.CitySubdomain == "" {
		return nil, models.NewInputError("atende-v2 config requires citySubdomain", nil)
	}
	return &AtendeV2{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *AtendeV2) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	siteURL := fmt.Sprintf("https://%s.atende.net", s.cfg.CitySubdomain)
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/diariooficial/edicao/pagina/atende.php?rot=54015&aca=101&ajax=t&processo=loadPluginDiarioOficial&parametro=%d", siteURL, page)

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

func (s *AtendeV2) parsePage(siteURL string, doc *goquery.Document) ([]models.Gazette, bool, error) {
	var gazettes []models.Gazette
	var parseErr error
	passedStart := false

	doc.Find("div.nova_listagem div.linha, table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
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

		href, exists := row.Find("a[href*='download'], a[href$='.pdf'], button[data-link]").Attr("href")
		if !exists {
			href, exists = row.Find("button[data-link]").Attr("data-link")
		}
		if !exists {
			parseErr = models.NewParseError("atende-v2: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(siteURL, href))
		g.EditionNumber = editionFromText(row.Find("div.titulo, td").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, passedStart, parseErr
}
