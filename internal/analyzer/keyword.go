package analyzer

import (
	"context"
	"strings"

	"github.com/ternarybob/diario/internal/models"
)

// trackedKeywords are the domain terms the keyword analyzer counts. The list
// covers the concurso lifecycle plus the neighbouring acts that routinely
// share a gazette page with it.
var trackedKeywords = []string{
	"concurso público",
	"edital",
	"processo seletivo",
	"inscrições",
	"convocação",
	"homologação",
	"nomeação",
	"gabarito",
	"retificação",
	"prorrogação",
}

// KeywordAnalyzer emits one finding per tracked keyword present in the text,
// with its occurrence count and first location.
type KeywordAnalyzer struct{}

// NewKeywordAnalyzer builds the keyword counter
func NewKeywordAnalyzer() *KeywordAnalyzer { return &KeywordAnalyzer{} }

// Name implements Analyzer
func (a *KeywordAnalyzer) Name() string { return "keyword" }

// Analyze implements Analyzer
func (a *KeywordAnalyzer) Analyze(ctx context.Context, ocr models.OCRResult) ([]models.Finding, error) {
	idx := indexText(ocr.Text)

	var findings []models.Finding
	for _, keyword := range trackedKeywords {
		hits := idx.locate(keyword)
		if len(hits) == 0 {
			continue
		}
		confidence := 0.5 + 0.1*float64(len(hits))
		if confidence > 0.9 {
			confidence = 0.9
		}
		findings = append(findings, models.Finding{
			Type:       "keyword",
			Confidence: confidence,
			Data: map[string]any{
				"keyword": keyword,
				"count":   len(hits),
			},
			Location: &models.Location{Offset: hits[0].Offset},
			Context:  hits[0].Context,
		})
	}
	return findings, ctx.Err()
}

// categoryRules maps a category label to terms whose presence claims it
var categoryRules = map[string][]string{
	"concurso":   {"concurso público", "edital de abertura", "processo seletivo"},
	"pessoal":    {"nomeação", "exoneração", "posse", "convocação"},
	"licitacao":  {"licitação", "pregão", "tomada de preços", "dispensa de licitação"},
	"contrato":   {"contrato administrativo", "termo aditivo", "extrato de contrato"},
	"orcamento":  {"crédito suplementar", "dotação orçamentária", "lei orçamentária"},
}

// CategoryAnalyzer tags the gazette with coarse subject categories
type CategoryAnalyzer struct{}

// NewCategoryAnalyzer builds the category tagger
func NewCategoryAnalyzer() *CategoryAnalyzer { return &CategoryAnalyzer{} }

// Name implements Analyzer
func (a *CategoryAnalyzer) Name() string { return "category" }

// Analyze implements Analyzer
func (a *CategoryAnalyzer) Analyze(ctx context.Context, ocr models.OCRResult) ([]models.Finding, error) {
	lower := strings.ToLower(ocr.Text)

	var findings []models.Finding
	for category, terms := range categoryRules {
		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		findings = append(findings, models.Finding{
			Type:       "category",
			Confidence: 0.4 + 0.2*float64(matched),
			Data: map[string]any{
				"category": category,
				"terms":    matched,
			},
		})
	}
	return findings, ctx.Err()
}
