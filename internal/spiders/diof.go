package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Diof crawls DIOF tenant sites. The index pages newest-first with the
// requested range passed as query parameters; the range keeps paging shallow
// but entries outside it still leak through and are filtered locally.
type Diof struct {
	base
	cfg *models.DiofConfig
}

// NewDiof builds the DIOF adapter
func NewDiof(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Diof, error) {
	platform, ok := cfg.Config.(*models.DiofConfig)
	if !ok || platform.Website == "" {
		return nil, models.NewInputError("diof config requires website", nil)
	}
	return &Diof{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *Diof) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	site := strings.TrimRight(s.cfg.Website, "/")
	if !strings.HasPrefix(site, "http") {
		site = "https://" + site
	}

	var gazettes []models.Gazette
	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/diarios?de=%s&ate=%s&pagina=%d",
			site,
			s.window.Start.Format(brDateLayout),
			s.window.End.Format(brDateLayout),
			page)

		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		pageGazettes, err := s.parsePage(site, doc)
		if err != nil {
			return nil, err
		}
		if len(pageGazettes) == 0 {
			break
		}
		gazettes = append(gazettes, pageGazettes...)

		if doc.Find("a[rel='next'], li.next a").Length() == 0 {
			break
		}
	}
	return gazettes, nil
}

func (s *Diof) parsePage(site string, doc *goquery.Document) ([]models.Gazette, error) {
	var gazettes []models.Gazette
	var parseErr error

	doc.Find("table tbody tr, div.edicao").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		date, ok := findBRDate(row.Text())
		if !ok {
			// Header and spacer rows carry no date
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href$='.pdf'], a[href*='baixar']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("diof: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(site, href))
		g.EditionNumber = editionFromText(row.Find("td").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
