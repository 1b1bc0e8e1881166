package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/diario/internal/models"
)

// ADiariosV1 crawls the legacy ADiarios layout. The index only shows dates
// and edition titles; each entry links to a detail page that holds the actual
// PDF, so every index row costs one extra request.
type ADiariosV1 struct {
	base
	cfg *models.ADiariosV1Config
}

// NewADiariosV1 builds the legacy ADiarios adapter
func NewADiariosV1(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*ADiariosV1, error) {
	platform, ok := cfg.Config.(*models.ADiariosV1Config)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("adiarios_v1 config requires baseUrl", nil)
	}
	return &ADiariosV1{base: newBase(cfg, window, deps), cfg: platform}, nil
}

func (s *ADiariosV1) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	var gazettes []models.Gazette

	for page := 1; page <= maxIndexPages; page++ {
		url := fmt.Sprintf("%s/jornal.php?dtini=%s&dtfim=%s&pagina=%d",
			baseURL,
			s.window.Start.Format(brDateLayout),
			s.window.End.Format(brDateLayout),
			page)

		doc, err := s.client.GetDocument(ctx, url)
		if err != nil {
			return nil, err
		}

		entries, err := s.parseIndex(doc)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			fileURL, err := s.resolveFile(ctx, baseURL, entry.detailPath)
			if err != nil {
				return nil, err
			}
			g := s.gazette(entry.date, fileURL)
			g.EditionNumber = entry.edition
			g.IsExtraEdition = entry.extra
			gazettes = append(gazettes, g)
		}

		if doc.Find("a:contains('Próxima'), a[rel='next']").Length() == 0 {
			break
		}
	}
	return gazettes, nil
}

type adiariosEntry struct {
	date       models.Date
	edition    string
	extra      bool
	detailPath string
}

func (s *ADiariosV1) parseIndex(doc *goquery.Document) ([]adiariosEntry, error) {
	var entries []adiariosEntry
	var parseErr error

	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		link := row.Find("a[href*='jornal.php?id=']")
		if link.Length() == 0 {
			return true
		}
		date, ok := findBRDate(row.Text())
		if !ok {
			parseErr = models.NewParseError("adiarios_v1: entry without date", nil)
			return false
		}
		if !s.keep(date) {
			return true
		}

		href, _ := link.Attr("href")
		entries = append(entries, adiariosEntry{
			date:       date,
			edition:    editionFromText(link.Text()),
			extra:      isExtraEdition(row.Text()),
			detailPath: href,
		})
		return true
	})

	return entries, parseErr
}

// resolveFile follows the detail page and returns the PDF link it embeds
func (s *ADiariosV1) resolveFile(ctx context.Context, baseURL, detailPath string) (string, error) {
	detailURL := absoluteURL(baseURL+"/", detailPath)
	doc, err := s.client.GetDocument(ctx, detailURL)
	if err != nil {
		return "", err
	}

	href, exists := doc.Find("a[href$='.pdf']").Attr("href")
	if !exists {
		href, exists = doc.Find("iframe[src*='.pdf']").Attr("src")
	}
	if !exists {
		return "", models.NewParseError("adiarios_v1: detail page without file link "+detailURL, nil)
	}
	return absoluteURL(detailURL, href), nil
}
