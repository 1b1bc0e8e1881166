package spiders

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// DomSC crawls the statewide Santa Catarina aggregation. The shared search
// form filters by municipality label; rows of other entities still appear in
// shared editions and are dropped by name.
type DomSC struct {
	base
	cfg *models.DomSCConfig
}

const domSCSearchURL = "https://diariomunicipal.sc.gov.br/site/webservice/busca"

// NewDomSC builds the DOM/SC adapter
func NewDomSC(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*DomSC, error) {
	platform, ok := cfg.Config.(*models.DomSCConfig)
	if !ok || platform.EntityName == "" {
		return nil, models.NewInputError("dom_sc config requires entityName", nil)
	}
	return &DomSC{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *DomSC) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	form := url.Values{
		"entidade":     {s.cfg.EntityName},
		"data_inicial": {s.window.Start.Format(brDateLayout)},
		"data_final":   {s.window.End.Format(brDateLayout)},
	}

	doc, err := s.client.PostFormDocument(ctx, domSCSearchURL, form)
	if err != nil {
		return nil, err
	}

	entity := strings.ToLower(s.cfg.EntityName)
	var gazettes []models.Gazette
	var parseErr error

	doc.Find("table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		rowText := row.Text()
		if !strings.Contains(strings.ToLower(rowText), entity) {
			return true
		}
		date, ok := findBRDate(rowText)
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href$='.pdf'], a[href*='edicao']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("dom_sc: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(domSCSearchURL, href))
		g.EditionNumber = editionFromText(row.Find("td").First().Text())
		g.IsExtraEdition = isExtraEdition(rowText)
		g.Power = models.PowerExecutiveLegislative
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
