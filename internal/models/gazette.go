package models

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// Power identifies which government branch published a gazette
type Power string

const (
	PowerExecutive            Power = "executive"
	PowerLegislative          Power = "legislative"
	PowerExecutiveLegislative Power = "executive_legislative"
)

// IsValid reports whether the power value is one of the known branches
func (p Power) IsValid() bool {
	switch p {
	case PowerExecutive, PowerLegislative, PowerExecutiveLegislative:
		return true
	}
	return false
}

var territoryIDPattern = regexp.MustCompile(`^\d{7}$`)

// Gazette is the canonical record produced by any spider: one published
// edition of a municipal official bulletin.
type Gazette struct {
	TerritoryID    string    `json:"territoryId" validate:"required,territory_id"`
	Date           Date      `json:"date" validate:"required"`
	FileURL        string    `json:"fileUrl" validate:"required,absolute_url"`
	EditionNumber  string    `json:"editionNumber,omitempty"`
	IsExtraEdition bool      `json:"isExtraEdition"`
	Power          Power     `json:"power" validate:"required,power_enum"`
	ScrapedAt      time.Time `json:"scrapedAt" validate:"required"`
}

// DedupKey is the idempotency key downstream consumers deduplicate on
func (g Gazette) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s", g.TerritoryID, g.Date, g.FileURL)
}

var gazetteValidator = newGazetteValidator()

func newGazetteValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("territory_id", func(fl validator.FieldLevel) bool {
		return territoryIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("absolute_url", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && u.IsAbs() && u.Host != ""
	})
	_ = v.RegisterValidation("power_enum", func(fl validator.FieldLevel) bool {
		return Power(fl.Field().String()).IsValid()
	})
	return v
}

// Validate checks the structural invariants of a gazette record against the
// spider configuration and requested window it was produced under.
func (g Gazette) Validate(territoryID string, window DateRange, executionStart time.Time) error {
	if err := gazetteValidator.Struct(g); err != nil {
		return fmt.Errorf("gazette schema: %w", err)
	}
	if g.TerritoryID != territoryID {
		return fmt.Errorf("gazette territory %s does not match configured territory %s", g.TerritoryID, territoryID)
	}
	if !window.Contains(g.Date) {
		return fmt.Errorf("gazette date %s outside requested range %s", g.Date, window)
	}
	if g.Date.After(Today()) {
		return fmt.Errorf("gazette date %s is in the future", g.Date)
	}
	if g.ScrapedAt.Before(executionStart) {
		return fmt.Errorf("gazette scrapedAt %s predates execution start %s",
			g.ScrapedAt.Format(time.RFC3339), executionStart.Format(time.RFC3339))
	}
	return nil
}
