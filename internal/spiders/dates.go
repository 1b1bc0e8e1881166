package spiders

import (
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/diario/internal/models"
)

// brDateLayout is the day-first format gazette sites render dates in
const brDateLayout = "02/01/2006"

var (
	brDatePattern = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	editionNumber = regexp.MustCompile(`\b(\d{1,6})\b`)

	// Portuguese month names as printed in long-form headings
	ptMonths = map[string]time.Month{
		"janeiro":   time.January,
		"fevereiro": time.February,
		"marco":     time.March,
		"março":     time.March,
		"abril":     time.April,
		"maio":      time.May,
		"junho":     time.June,
		"julho":     time.July,
		"agosto":    time.August,
		"setembro":  time.September,
		"outubro":   time.October,
		"novembro":  time.November,
		"dezembro":  time.December,
	}

	longDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+([a-zçã]+)\s+de\s+(\d{4})\b`)
)

// parseBRDate parses a DD/MM/YYYY string
func parseBRDate(s string) (models.Date, error) {
	t, err := time.Parse(brDateLayout, strings.TrimSpace(s))
	if err != nil {
		return models.Date{}, models.NewParseError("parse date "+s, err)
	}
	return models.NewDate(t.Year(), t.Month(), t.Day()), nil
}

// findBRDate extracts the first DD/MM/YYYY occurrence from free text
func findBRDate(text string) (models.Date, bool) {
	match := brDatePattern.FindString(text)
	if match == "" {
		return models.Date{}, false
	}
	date, err := parseBRDate(match)
	if err != nil {
		return models.Date{}, false
	}
	return date, true
}

// findLongDate extracts a "12 de Março de 2024" style date from free text
func findLongDate(text string) (models.Date, bool) {
	m := longDatePattern.FindStringSubmatch(text)
	if m == nil {
		return models.Date{}, false
	}
	month, ok := ptMonths[strings.ToLower(m[2])]
	if !ok {
		return models.Date{}, false
	}
	day := atoiSafe(m[1])
	year := atoiSafe(m[3])
	if day < 1 || day > 31 || year < 1900 {
		return models.Date{}, false
	}
	return models.NewDate(year, month, day), true
}

// isExtraEdition reports whether a label marks an out-of-cycle edition
func isExtraEdition(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "extra") ||
		strings.Contains(lower, "extraordin") ||
		strings.Contains(lower, "suplement")
}

// editionFromText pulls the first plausible edition number out of a label
func editionFromText(text string) string {
	return editionNumber.FindString(text)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
