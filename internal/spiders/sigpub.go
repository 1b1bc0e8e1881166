package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/diario/internal/models"
)

// Sigpub crawls SIGPub association calendars one month at a time. Each
// calendar response carries every publication of the month; out-of-cycle
// editions are flagged in the payload.
type Sigpub struct {
	base
	cfg *models.SigpubConfig
}

// NewSigpub builds the SIGPub adapter
func NewSigpub(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Sigpub, error) {
	platform, ok := cfg.Config.(*models.SigpubConfig)
	if !ok || platform.CalendarURL == "" || platform.EntityID == "" {
		return nil, models.NewInputError("sigpub config requires calendarUrl and entityId", nil)
	}
	return &Sigpub{base: newBase(cfg, window, deps), cfg: platform}, nil
}

type sigpubCalendar struct {
	Publicacoes []struct {
		Date       models.Date `json:"data"`
		Edition    string      `json:"numero_edicao"`
		FileURL    string      `json:"url_arquivo"`
		TipoEdicao int         `json:"tipo_edicao_id"`
	} `json:"publicacoes"`
}

func (s *Sigpub) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	calendarURL := strings.TrimRight(s.cfg.CalendarURL, "/")
	var gazettes []models.Gazette

	for _, month := range s.window.Months() {
		url := fmt.Sprintf("%s/calendar?entity=%s&month=%d&year=%d",
			calendarURL, s.cfg.EntityID, int(month.Month()), month.Year())

		var calendar sigpubCalendar
		if err := s.client.GetJSON(ctx, url, &calendar); err != nil {
			return nil, err
		}

		for _, pub := range calendar.Publicacoes {
			if !s.keep(pub.Date) {
				continue
			}
			if pub.FileURL == "" {
				return nil, models.NewParseError("sigpub: publication without file url on "+pub.Date.String(), nil)
			}
			g := s.gazette(pub.Date, pub.FileURL)
			g.EditionNumber = pub.Edition
			// Ordinary editions carry type 1; everything else is out of cycle
			g.IsExtraEdition = pub.TipoEdicao != 1
			g.Power = models.PowerExecutiveLegislative
			gazettes = append(gazettes, g)
		}
	}
	return gazettes, nil
}
