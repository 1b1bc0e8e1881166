package spiders

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// MunicipioOnline crawls municipioonline.com.br, which nests each city under
// its state code. The listing answers a single form post with the range.
type MunicipioOnline struct {
	base
	cfg *models.MunicipioOnlineConfig
}

// NewMunicipioOnline builds the Municipio Online adapter
func NewMunicipioOnline(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*MunicipioOnline, error) {
	platform, ok := cfg.Config.(*models.MunicipioOnlineConfig)
	if !ok || platform.StateUF == "" || platform.CitySlug == "" {
		return nil, models.NewInputError("municipio-online config requires stateUf and citySlug", nil)
	}
	return &MunicipioOnline{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *MunicipioOnline) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	pageURL := fmt.Sprintf("https://www.municipioonline.com.br/%s/prefeitura/%s/cidadao/diariooficial",
		s.cfg.StateUF, s.cfg.CitySlug)
	form := url.Values{
		"dtini": {s.window.Start.Format(brDateLayout)},
		"dtfim": {s.window.End.Format(brDateLayout)},
	}

	doc, err := s.client.PostFormDocument(ctx, pageURL, form)
	if err != nil {
		return nil, err
	}

	var gazettes []models.Gazette
	var parseErr error

	doc.Find("div.diario-lista div.row, table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		date, ok := findBRDate(row.Text())
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href*='diariooficial'], a[href$='.pdf']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("municipio-online: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(pageURL, href))
		g.EditionNumber = editionFromText(row.Find("strong, td").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
