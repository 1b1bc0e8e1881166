package spiders

import (
	"context"
	"fmt"

	"github.com/ternarybob/diario/internal/models"
)

// Dosp crawls the DOSP shared API. Tenants are addressed by journal code and
// section; the API answers with structured editions, and file URLs are
// derived from the edition identifier.
type Dosp struct {
	base
	cfg *models.DospConfig
}

// NewDosp builds the DOSP adapter
func NewDosp(cfg models.SpiderConfig, window models.DateRange, deps Deps) (*Dosp, error) {
	platform, ok := cfg.Config.(*models.DospConfig)
	if !ok || platform.Code == "" {
		return nil, models.NewInputError("dosp config requires code", nil)
	}
	return &Dosp{base: newBase(cfg, window, deps), cfg: platform}, nil
}

type dospResponse struct {
	Data []struct {
		ID      int         `json:"iddiario"`
		Date    models.Date `json:"data"`
		Edition string      `json:"edicao_numero"`
		Extra   int         `json:"flag_extra"`
	} `json:"data"`
}

func (s *Dosp) Crawl(ctx context.Context) ([]models.Gazette, error) {
	if s.emptyWindow() {
		return nil, nil
	}

	url := fmt.Sprintf("https://dosp.com.br/api/index.php/dioe.php?j=%s&s=%s&de=%s&ate=%s",
		s.cfg.Code, s.cfg.Section, s.window.Start, s.window.End)

	var resp dospResponse
	if err := s.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	var gazettes []models.Gazette
	for _, edition := range resp.Data {
		if !s.keep(edition.Date) {
			continue
		}
		fileURL := fmt.Sprintf("https://dosp.com.br/exibe_do.php?i=%d.pdf", edition.ID)
		g := s.gazette(edition.Date, fileURL)
		g.EditionNumber = edition.Edition
		g.IsExtraEdition = edition.Extra != 0
		gazettes = append(gazettes, g)
	}
	return gazettes, nil
}
