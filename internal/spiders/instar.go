package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Instar crawls the Instar portal listing, which pages newest-first. Paging
// stops as soon as a page yields an entry older than the window start.
type Instar struct {
	base
	cfg *models.InstarConfig
}

// maxIndexPages bounds runaway pagination when a site loops its last page
const maxIndexPages = 200

// NewInstar builds the Instar adapter
func NewInstar(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Instar, error) {
	platform, ok := cfg.Config.(*models.InstarConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("instar config requires baseUrl", nil)
	}
	return &Instar{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *Instar) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/portal/diario-oficial/%d", baseURL, page)
		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		pageGazettes, passedStart, err := s.parsePage(doc)
		if err != nil {
			return nil, err
		}
		gazettes = append(gazettes, pageGazettes...)

		if passedStart || doc.Find("a.proxima, a[rel='next']").Length() == 0 {
			break
		}
	}
	return gazettes, nil
}

// parsePage returns the in-window entries of one page plus whether the page
// reached entries older than the window start.
func (s *Instar) parsePage(doc *goquery.Document) ([]models.Gazette, bool, error) {
	var gazettes []models.Gazette
	var parseErr error
	passedStart := false

	doc.Find("div.dio-item, div.diario-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		date, ok := findBRDate(item.Text())
		if !ok {
			parseErr = models.NewParseError("instar: entry without date", nil)
			return false
		}
		if date.Before(s.window.Start) {
			passedStart = true
			return false
		}
		if !s.keep(date) {
			return true
		}

		href, exists := item.Find("a[href*='download'], a[href$='.pdf']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("instar: entry without file link on "+date.String(), nil)
			return false
		}

		label := item.Find("h3, strong").First().Text()
		g := s.gazette(date, absoluteURL(s.cfg.BaseURL, href))
		g.EditionNumber = editionFromText(label)
		g.IsExtraEdition = isExtraEdition(item.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, passedStart, parseErr
}
