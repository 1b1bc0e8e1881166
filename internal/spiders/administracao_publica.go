package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// AdministracaoPublica crawls Administracao Publica tenant sites, a paged
// listing filtered server-side by date range.
type AdministracaoPublica struct {
	base
	cfg *models.AdministracaoPublicaConfig
}

// NewAdministracaoPublica builds the Administracao Publica adapter
func NewAdministracaoPublica(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*AdministracaoPublica, error) {
	platform, ok := cfg.Config.(*models.AdministracaoPublicaConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("administracao_publica config requires baseUrl", nil)
	}
	return &AdministracaoPublica{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *AdministracaoPublica) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/publicacoes?inicio=%s&fim=%s&pagina=%d",
			baseURL,
			s.window.Start.Format(brDateLayout),
			s.window.End.Format(brDateLayout),
			page)

		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		pageGazettes, err := s.parsePage(baseURL, doc)
		if err != nil {
			return nil, err
		}
		if len(pageGazettes) == 0 {
			break
		}
		gazettes = append(gazettes, pageGazettes...)

		if doc.Find("a[rel='next'], li.pagination-next a").Length() == 0 {
			break
		}
	}
	return gazettes, nil
}

func (s *AdministracaoPublica) parsePage(baseURL string, doc *goquery.Document) ([]models.Gazette, error) {
	var gazettes []models.Gazette
	var parseErr error

	doc.Find("div.publicacao, table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		date, ok := findBRDate(row.Text())
		if !ok {
			return true
		}
		if !s.keep(date) {
			return true
		}

		href, exists := row.Find("a[href$='.pdf'], a[href*='download']").Attr("href")
		if !exists {
			parseErr = models.NewParseError("administracao_publica: entry without file link on "+date.String(), nil)
			return false
		}

		g := s.gazette(date, absoluteURL(baseURL, href))
		g.EditionNumber = editionFromText(row.Find("strong, td").First().Text())
		g.IsExtraEdition = isExtraEdition(row.Text())
		gazettes = append(gazettes, g)
		return true
	})

	return gazettes, parseErr
}
