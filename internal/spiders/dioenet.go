package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Dioenet crawls Dioenet tenant sites. The range listing names editions but
// not files; each entry's detail page resolves the PDF.
type Dioenet struct {
	base
	cfg *models.DioenetConfig
}

// NewDioenet builds the Dioenet adapter
func NewDioenet(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Dioenet, error) {
	platform, ok := cfg.Config.(*models.DioenetConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("dioenet config requires baseUrl", nil)
	}
	return &Dioenet{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *Dioenet) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	url := fmt.Sprintf("%s/listagem?de=%s&ate=%s",
		baseURL,
		s.window.Start.Format(brDateLayout),
		s.window.End.Format(brDateLayout))

	doc, err := s.client.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	type entry struct {
		date       models.Date
		edition    string
		extra      bool
		detailPath string
	}
	var entries []entry
	var parseErr error

	doc.Find("ul.listagem li, table tbody tr").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		date, ok := findBRDate(item.Text())
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := item.Find("a[href*='visualizacao'], a[href*='edicao']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("dioenet: entry without detail link on "+date.String(), nil)
			return false
		}

		entries = append(entries, entry{
			date:       date,
			edition:    editionFromText(item.Find("strong, span").First().Text()),
			extra:      isExtraEdition(item.Text()),
			detailPath: href,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	var gazettes []models.Gazette
	for _, e := range entries {
		detailURL := absoluteURL(baseURL+"/", e.detailPath)
		detail, err := s.client.GetDocument(ctx, detailURL)
		if err != nil {
			return nil, err
		}

		href, exists := detail.Find("a[href$='.pdf']").Attr("href")
		if !exists {
			href, exists = detail.Find("iframe[src*='.pdf'], embed[src*='.pdf']").Attr("src")
		}
		if !exists {
			return nil, models.NewParseError("dioenet: detail page without file link "+detailURL, nil)
		}

		g := s.gazette(e.date, absoluteURL(detailURL, href))
		g.EditionNumber = e.edition
		g.IsExtraEdition = e.extra
		gazettes = append(gazettes, g)
	}
	return gazettes, nil
}
