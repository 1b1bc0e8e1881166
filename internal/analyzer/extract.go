package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/diario/internal/models"
)

// parseBRNumber parses a Brazilian-locale numeric literal: "." groups
// thousands, "," marks the decimal.
func parseBRNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var citySplitPattern = regexp.MustCompile(`\s*(?:,|\be\b|\band\b)\s*`)

// splitCityList breaks "Salvador, Camaçari e Lauro de Freitas" into names
func splitCityList(s string) []string {
	parts := citySplitPattern.Split(s, -1)
	var cities []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cities = append(cities, trimmed)
		}
	}
	return cities
}

// firstCapture runs a pattern family in declared order; first group-1 wins
func firstCapture(family string, text string) string {
	for _, re := range extractionPatterns[family] {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// extractConcursoData pulls the structured fields from a classified passage
func extractConcursoData(text string) *models.ConcursoData {
	data := models.ConcursoData{
		EditalNumber:       firstCapture("editalNumber", text),
		RegistrationPeriod: firstCapture("registrationPeriod", text),
		ExamDate:           firstCapture("examDate", text),
		Institution:        firstCapture("institution", text),
		Agency:             firstCapture("agency", text),
	}

	if raw := firstCapture("vacancies", text); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			data.Vacancies = n
		}
	}
	if raw := firstCapture("salary", text); raw != "" {
		if v, ok := parseBRNumber(raw); ok {
			data.Salary = v
		}
	}
	if raw := firstCapture("registrationFee", text); raw != "" {
		if v, ok := parseBRNumber(raw); ok {
			data.RegistrationFee = v
		}
	}
	if raw := firstCapture("position", text); raw != "" {
		data.Positions = []string{raw}
	}
	if raw := firstCapture("cities", text); raw != "" {
		data.Cities = splitCityList(raw)
	}

	if data.IsEmpty() {
		return nil
	}
	return &data
}
