package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/diario/internal/models"
)

// BarcoDigital crawls Barco Digital tenant sites through their monthly
// calendar API.
type BarcoDigital struct {
	base
	cfg *models.BarcoDigitalConfig
}

// NewBarcoDigital builds the Barco Digital adapter
func NewBarcoDigital(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*BarcoDigital, error) {
	platform, ok := cfg.Config.(*models.BarcoDigitalConfig)
	if !ok || platform.BaseURL == "" {
		return nil, models.NewInputError("barco_digital config requires baseUrl", nil)
	}
	return &BarcoDigital{base: newBase(cfg, window, deps), cfg: platform}, nil
}

type barcoCalendar struct {
	Dias []struct {
		Edicoes []struct {
			Date       models.Date `json:"data"`
			Numero     string      `json:"numero"`
			TipoEdicao int         `json:"tipo_edicao_id"`
			Arquivo    string      `json:"arquivo"`
		} `json:"edicoes"`
	} `json:"dias"`
}

func (s *BarcoDigital) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	baseURL := strings.TrimRight(s.cfg.BaseURL, "/")
	var gazettes []models.Gazette

	for _, month := range s.window.Months() {
		url := fmt.Sprintf("%s/api/publicacoes/calendario?mes=%d&ano=%d",
			baseURL, int(month.Month()), month.Year())

		var calendar barcoCalendar
		if err := s.client.GetJSON(ctx, url, &calendar); err != nil {
			return nil, err
		}

		for _, day := range calendar.Dias {
			for _, edition := range day.Edicoes {
				if !s.keep(edition.Date) {
					continue
				}
				if edition.Arquivo == "" {
					return nil, models.NewParseError("barco_digital: edition without file on "+edition.Date.String(), nil)
				}
				g := s.gazette(edition.Date, absoluteURL(baseURL, edition.Arquivo))
				g.EditionNumber = edition.Numero
				g.IsExtraEdition = edition.TipoEdicao != 1
				gazettes = append(gazettes, g)
			}
		}
	}
	return gazettes, nil
}
