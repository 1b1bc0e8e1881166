package spiders

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// DiarioBA crawls the aggregated Bahia municipal listing. Cities are
// addressed by slug inside one shared search form.
type DiarioBA struct {
	base
	cfg *models.DiarioBAConfig
}

const diarioBASearchURL = "https://www.diariooficialba.com.br/diario/busca"

// NewDiarioBA builds the Bahia aggregation adapter
func NewDiarioBA(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*DiarioBA, error) {
	platform, ok := cfg.Config.(*models.DiarioBAConfig)
	if !ok || platform.CitySlug == "" {
		return nil, models.NewInputError("diario-ba config requires citySlug", nil)
	}
	return &DiarioBA{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *DiarioBA) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	form := url.Values{
		"municipio":    {s.cfg.CitySlug},
		"data_inicial": {s.window.Start.Format(brDateLayout)},
		"data_final":   {s.window.End.Format(brDateLayout)},
	}

	doc, err := s.client.PostFormDocument(ctx, diarioBASearchURL, form)
	if err != nil {
		return nil, err
	}

	var gazettes []models.Gazette
	var parseErr error

	doc.Find("div.resultado-busca div.edicao, table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		date, ok := findBRDate(row.Text())
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href$='.pdf'], a[href*='download']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("diario-ba: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(diarioBASearchURL, href))
		g.EditionNumber = editionFromText(row.Find("strong, td").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
