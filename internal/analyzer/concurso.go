package analyzer

import (
	"context"
	"sort"

	"github.com/ternarybob/diario/internal/models"
)

// classificationFloor is the minimum confidence for a definite document type;
// below it the document falls back to nao_classificado.
const classificationFloor = 0.5

// titleRegion is the leading fraction of the text where a title-pattern
// match triggers the confidence override.
const titleRegion = 0.2

// ConcursoAnalyzer classifies hiring-notice documents by proximity-aware
// pattern matching and extracts their structured data.
type ConcursoAnalyzer struct {
	patterns []documentPattern
	titles   []titlePattern
}

// NewConcursoAnalyzer builds the classifier over the fixed catalog
func NewConcursoAnalyzer() *ConcursoAnalyzer {
	return &ConcursoAnalyzer{patterns: documentPatterns, titles: titlePatterns}
}

// Name implements Analyzer
func (a *ConcursoAnalyzer) Name() string { return "concurso" }

// Analyze implements Analyzer. Classification is deterministic: same text,
// same catalog, same findings.
func (a *ConcursoAnalyzer) Analyze(ctx context.Context, ocr models.OCRResult) ([]models.Finding, error) {
	findings := a.Classify(ocr.Text)
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Finding)
	}
	return out, ctx.Err()
}

// Classify evaluates every catalog pattern and returns the per-type best
// findings plus the document-level primary classification first.
func (a *ConcursoAnalyzer) Classify(text string) []models.ConcursoFinding {
	if text == "" {
		return nil
	}
	idx := indexText(text)
	titleHits := a.titleMatches(idx)

	var findings []models.ConcursoFinding
	for _, pattern := range a.patterns {
		if finding, ok := a.evaluate(idx, pattern, titleHits); ok {
			findings = append(findings, finding)
		}
	}
	if len(findings) == 0 {
		return nil
	}

	a.rank(findings)

	// Below the floor nothing is definite; report the best score under the
	// unclassified tag so callers still see how close it came.
	if findings[0].Confidence < classificationFloor {
		top := findings[0]
		top.DocumentType = models.DocNaoClassificado
		top.Type = string(models.DocNaoClassificado)
		return []models.ConcursoFinding{top}
	}
	return findings
}

// titleMatch records where a title pattern hit and with what confidence
type titleMatch struct {
	confidence float64
	offset     int
}

// titleMatches scans for header-style matches inside the override region
func (a *ConcursoAnalyzer) titleMatches(idx *indexedText) map[models.DocumentType]titleMatch {
	limit := int(float64(len(idx.raw)) * titleRegion)
	hits := make(map[models.DocumentType]titleMatch)

	for _, title := range a.titles {
		loc := title.Pattern.FindStringIndex(idx.raw)
		if loc == nil || loc[0] > limit {
			continue
		}
		if existing, ok := hits[title.Type]; !ok || title.BaseConfidence > existing.confidence {
			hits[title.Type] = titleMatch{confidence: title.BaseConfidence, offset: loc[0]}
		}
	}
	return hits
}

// evaluate scores one document-type pattern against the indexed text
func (a *ConcursoAnalyzer) evaluate(idx *indexedText, pattern documentPattern, titles map[models.DocumentType]titleMatch) (models.ConcursoFinding, bool) {
	var hits []keywordHit
	for _, keyword := range pattern.Keywords {
		hits = append(hits, idx.locate(keyword)...)
	}

	group := bestGroup(hits, pattern.Proximity.MaxDistance, pattern.MinKeywordsTogether)
	title, hasTitle := titles[pattern.Type]

	if group == nil && pattern.Proximity.Required {
		// No keyword cluster; only an explicit header can still claim the type
		if !hasTitle {
			return models.ConcursoFinding{}, false
		}
		return a.titleOnlyFinding(idx, pattern, title), true
	}

	regexHits := 0
	for _, re := range pattern.Regexes {
		if re.MatchString(idx.raw) {
			regexHits++
		}
	}
	regexRatio := 0.0
	if len(pattern.Regexes) > 0 {
		regexRatio = float64(regexHits) / float64(len(pattern.Regexes))
	}

	keywordHits := 0
	span := 0
	if group != nil {
		keywordHits = group.Distinct
		span = group.Span
	}

	multiplier := proximityScore(span)
	if pattern.Proximity.BoostNearby {
		multiplier = boostMultiplier(span)
	}

	keywordRatio := float64(keywordHits)
	if keywordRatio > 2 {
		keywordRatio = 2
	}
	confidence := pattern.Weight * (0.6*regexRatio + 0.4*keywordRatio/2) * multiplier

	for _, exclusion := range pattern.Exclusions {
		if exclusion.MatchString(idx.raw) {
			confidence -= 0.2
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if hasTitle && title.confidence > confidence {
		confidence = title.confidence
	}
	if confidence <= 0 {
		return models.ConcursoFinding{}, false
	}

	finding := models.ConcursoFinding{
		Finding: models.Finding{
			Type:       string(pattern.Type),
			Confidence: confidence,
		},
		DocumentType: pattern.Type,
	}
	if group != nil && len(group.Hits) > 0 {
		first := group.Hits[0]
		finding.Location = &models.Location{Offset: first.Offset}
		finding.Context = first.Context
		finding.Concurso = extractConcursoData(idx.raw)
	} else {
		finding.Concurso = extractConcursoData(idx.raw)
	}
	return finding, true
}

// titleOnlyFinding builds a finding for a header match with no keyword body
func (a *ConcursoAnalyzer) titleOnlyFinding(idx *indexedText, pattern documentPattern, title titleMatch) models.ConcursoFinding {
	return models.ConcursoFinding{
		Finding: models.Finding{
			Type:       string(pattern.Type),
			Confidence: title.confidence,
			Location:   &models.Location{Offset: title.offset},
			Context:    idx.context(title.offset, 0),
		},
		DocumentType: pattern.Type,
		Concurso:     extractConcursoData(idx.raw),
	}
}

// rank orders findings by (priority, confidence, lexicographic tag); the
// first entry is the document's primary classification.
func (a *ConcursoAnalyzer) rank(findings []models.ConcursoFinding) {
	priorityOf := make(map[models.DocumentType]patternPriority, len(a.patterns))
	for _, p := range a.patterns {
		priorityOf[p.Type] = p.Priority
	}
	sort.SliceStable(findings, func(i, j int) bool {
		pi, pj := priorityOf[findings[i].DocumentType], priorityOf[findings[j].DocumentType]
		if pi != pj {
			return pi > pj
		}
		if findings[i].Confidence != findings[j].Confidence {
			return findings[i].Confidence > findings[j].Confidence
		}
		return findings[i].DocumentType < findings[j].DocumentType
	})
}
