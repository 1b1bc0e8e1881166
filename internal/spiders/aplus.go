package spiders

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Aplus crawls A+ tenant sites. A single form post with the date range
// returns the whole listing.
type Aplus struct {
	base
	cfg *models.AplusConfig
}

// NewAplus builds the A+ adapter
func NewAplus(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Aplus, error) {
	platform, ok := cfg.Config.(*models.AplusConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("aplus config requires baseUrl", nil)
	}
	return &Aplus{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *Aplus) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	form := url.Values{
		"data_inicial": {s.window.Start.Format(brDateLayout)},
		"data_final":   {s.window.End.Format(brDateLayout)},
	}

	doc, err := s.client.PostFormDocument(ctx, baseURL+"/diario/consulta", form)
	if err != nil {
		return nil, err
	}

	var gazettes []models.Gazette
	var parseErr error

	doc.Find("table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		date, ok := findBRDate(row.Text())
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href$='.pdf'], a[href*='arquivo']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("aplus: entry without file link on "+date.String(), nil)
			return false
		}

		label := row.Find("td").First().Text()
		g := s.gazette(date, absoluteURL(baseURL, href))
		// Trailing "-N" on the edition id marks republications of the day
		g.EditionNumber = editionFromText(label)
		g.IsExtraEdition = isExtraEdition(row.Text()) || strings.Contains(label, "-")
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
