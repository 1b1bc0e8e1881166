package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// AmmMT crawls the Mato Grosso municipal association journal. The archive is
// organized one HTML page per month; every edition covers all member cities,
// so each hit is attributed to this adapter's territory.
type AmmMT struct {
	base
	cfg *models.AmmMTConfig
}

const ammMTArchiveURL = "https://diariomunicipal.org/mt/amm"

// NewAmmMT builds the AMM-MT adapter
func NewAmmMT(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*AmmMT, error) {
	platform, ok := cfg.Config.(*models.AmmMTConfig)
	if !ok || platform.EntityName == "" {
		return nil, models.NewInputError("amm-mt config requires entityName", nil)
	}
	return &AmmMT{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *AmmMT) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	var gazettes []models.Gazette
	for _, month := range s.window.Months() {
		url := fmt.Sprintf("%s/edicoes/%d/%02d", ammMTArchiveURL, month.Year(), int(month.Month()))

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

func (s *AmmMT) parseMonth(doc *goquery.Document) ([]models.Gazette, error) {
	var gazettes []models.Gazette
	var parseErr error

	doc.Find("ul.edicoes li, table tbody tr").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		date, ok := findBRDate(item.Text())
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := item.Find("a[href$='.pdf'], a[href*='download']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("amm-mt: entry without file link on "+date.String(), nil)
			return false
		}

		label := item.Find("strong, span").First().Text()
		g := s.gazette(date, absoluteURL(ammMTArchiveURL, href))
		g.EditionNumber = editionFromText(label)
		g.IsExtraEdition = isExtraEdition(strings.ToLower(item.Text()))
		g.Power = models.PowerExecutiveLegislative
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
