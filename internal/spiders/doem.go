package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// Doem crawls doem.org.br, which indexes one page of gazette boxes per
// calendar month under /{state}/{city}/diarios/{year}/{month}.
type Doem struct {
	base
	cfg *models.DoemConfig
}

// NewDoem builds the DOEM adapter
func NewDoem(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Doem, error) {
	platform, ok := cfg.Config.(*models.DoemConfig)
	if !ok || platform.StateCityPath == "" {
		return nil, models.NewInputError("doem config requires stateCityPath", nil)
	}
	return &Doem{base: newBase(cfg, window, deps), cfg: platform}, nil
}

// Crawl walks every month the window touches
func (s *Doem) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	var gazettes []models.Gazette
	for _, month := range s.window.Months() {
		url := fmt.Sprintf("https://doem.org.br/%s/diarios/%d/%02d",
			strings.Trim(s.cfg.StateCityPath, "/"), month.Year(), int(month.Month()))

		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		monthly, err := s.parseMonth(doc)
		if err != nil {
			return nil, err
		}
		gazettes = append(gazettes, monthly...)
	}
	return gazettes, nil
}

func (s *Doem) parseMonth(doc *goquery.Document) ([]models.Gazette, error) {
	var gazettes []models.Gazette
	var parseErr error

	doc.Find("div.box-diario").EachWithBreak(func(_ int, box *goquery.Selection) bool {
		heading := box.Find("span.data-diario").Text()
		date, ok := findLongDate(heading)
		if !ok {
			if date, ok = findBRDate(heading); !ok {
				parseErr = models.NewParseError("doem: no date in entry heading "+strings.TrimSpace(heading), nil)
				return false
			}
		}
		if !s.keep(date) {
			return true
		}

		href, exists := box.Find(`a[title="Baixar Diário"]`).Attr("href")
		if !exists {
			href, exists = box.Find("a[href$='.pdf']").Attr("href")
		}
		if !exists {
			parseErr = models.NewParseError("doem: entry without file link on "+date.String(), nil)
			return false
		}

		label := box.Find("h2").Text()
		g := s.gazette(date, absoluteURL("https://doem.org.br", href))
		g.EditionNumber = editionFromText(label)
		g.IsExtraEdition = isExtraEdition(label)
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
