package analyzer

import (
	"context"
	"regexp"

	"github.com/ternarybob/diario/internal/models"
)

// entityRules are the document-independent entities worth surfacing from any
// gazette page: registry numbers, money values and calendar dates.
var entityRules = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{"cnpj", regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`)},
	{"money", regexp.MustCompile(`R\$\s*[\d.]+,\d{2}`)},
	{"date", regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)},
	{"law", regexp.MustCompile(`(?i)\blei\s+(?:municipal\s+)?n[ºo°]?\s*[\d.]+/\d{4}`)},
	{"decree", regexp.MustCompile(`(?i)\bdecreto\s+n[ºo°]?\s*[\d.]+/\d{4}`)},
}

// entityCap bounds how many occurrences of one kind are reported per page
const entityCap = 20

// EntityAnalyzer surfaces structured entities found anywhere in the text
type EntityAnalyzer struct{}

// NewEntityAnalyzer builds the entity extractor
func NewEntityAnalyzer() *EntityAnalyzer { return &EntityAnalyzer{} }

// Name implements Analyzer
func (a *EntityAnalyzer) Name() string { return "entity" }

// Analyze implements Analyzer
func (a *EntityAnalyzer) Analyze(ctx context.Context, ocr models.OCRResult) ([]models.Finding, error) {
	var findings []models.Finding
	for _, rule := range entityRules {
		locs := rule.pattern.FindAllStringIndex(ocr.Text, entityCap)
		for _, loc := range locs {
			findings = append(findings, models.Finding{
				Type:       "entity",
				Confidence: 0.95,
				Data: map[string]any{
					"kind":  rule.kind,
					"value": ocr.Text[loc[0]:loc[1]],
				},
				Location: &models.Location{Offset: loc[0]},
			})
		}
	}
	return findings, ctx.Err()
}
