package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
)

// Analyzer is one plug point of the analysis pipeline
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, ocr models.OCRResult) ([]models.Finding, error)
}

// HighConfidenceThreshold is the default cut for findings counted as high
// confidence in the summary.
const HighConfidenceThreshold = 0.8

// Orchestrator runs a set of analyzers in priority order over one OCR result.
// A single analyzer failing or timing out never halts the rest; its status is
// recorded and the pipeline moves on.
type Orchestrator struct {
	analyzers      []Analyzer
	concurso       *ConcursoAnalyzer
	timeout        time.Duration
	highConfidence float64
	logger         arbor.ILogger
}

// OrchestratorOptions configures the analysis run
type OrchestratorOptions struct {
	Analyzers      []Analyzer
	Timeout        time.Duration
	HighConfidence float64 // summary threshold; zero uses HighConfidenceThreshold
	Logger         arbor.ILogger
}

// NewOrchestrator builds the orchestrator. The concurso analyzer is always
// present; extra analyzers run after it in the order given.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HighConfidence <= 0 {
		opts.HighConfidence = HighConfidenceThreshold
	}
	concurso := NewConcursoAnalyzer()
	analyzers := append([]Analyzer{concurso}, opts.Analyzers...)
	return &Orchestrator{
		analyzers:      analyzers,
		concurso:       concurso,
		timeout:        opts.Timeout,
		highConfidence: opts.HighConfidence,
		logger:         opts.Logger,
	}
}

// Analyze runs every analyzer and assembles the GazetteAnalysis bundle
func (o *Orchestrator) Analyze(ctx context.Context, ocr models.OCRResult) models.GazetteAnalysis {
	analysis := models.GazetteAnalysis{
		JobID:      ocr.JobID,
		Text:       ocr.Text,
		AnalyzedAt: time.Now().UTC(),
	}
	if ocr.Text == "" {
		analysis.Error = "empty ocr text"
		analysis.Summary = summarize(nil, o.highConfidence)
		return analysis
	}

	for _, a := range o.analyzers {
		status := o.runOne(ctx, a, ocr, &analysis)
		analysis.Analyzers = append(analysis.Analyzers, status)
	}

	analysis.Findings = dedupeFindings(analysis.Findings)
	analysis.Summary = summarize(analysis.Findings, o.highConfidence)
	return analysis
}

// runOne executes a single analyzer under the per-analyzer timeout
func (o *Orchestrator) runOne(ctx context.Context, a Analyzer, ocr models.OCRResult, analysis *models.GazetteAnalysis) models.AnalyzerStatus {
	started := time.Now()
	status := models.AnalyzerStatus{Name: a.Name(), Status: "success"}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		findings []models.Finding
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		findings, err := a.Analyze(runCtx, ocr)
		done <- outcome{findings: findings, err: err}
	}()

	select {
	case <-runCtx.Done():
		status.Status = "failure"
		status.Error = "analyzer_timeout"
	case result := <-done:
		if result.err != nil {
			status.Status = "failure"
			status.Error = result.err.Error()
		} else {
			analysis.Findings = append(analysis.Findings, result.findings...)
			status.Findings = len(result.findings)
			if a == Analyzer(o.concurso) {
				analysis.Concursos = o.concurso.Classify(ocr.Text)
			}
		}
	}

	status.Duration = time.Since(started)
	if status.Status == "failure" && o.logger != nil {
		o.logger.Warn().
			Str("analyzer", a.Name()).
			Str("error", status.Error).
			Msg("Analyzer failed; continuing with the rest")
	}
	return status
}

// dedupeFindings drops findings identical in type, data and location
func dedupeFindings(findings []models.Finding) []models.Finding {
	seen := make(map[string]bool, len(findings))
	out := findings[:0]
	for _, f := range findings {
		key := f.Type
		if f.Location != nil {
			key += fmt.Sprintf("|%d:%d:%d", f.Location.Page, f.Location.Line, f.Location.Offset)
		}
		for _, k := range sortedKeys(f.Data) {
			key += fmt.Sprintf("|%s=%v", k, f.Data[k])
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// summarize aggregates the merged findings
func summarize(findings []models.Finding, highConfidence float64) models.AnalysisSummary {
	summary := models.AnalysisSummary{
		TotalFindings:  len(findings),
		FindingsByType: make(map[string]int, len(findings)),
	}
	categories := map[string]bool{}
	keywords := map[string]bool{}

	for _, f := range findings {
		summary.FindingsByType[f.Type]++
		if f.Confidence >= highConfidence {
			summary.HighConfidenceFindings++
		}
		if f.Data != nil {
			if category, ok := f.Data["category"].(string); ok {
				categories[category] = true
			}
			if keyword, ok := f.Data["keyword"].(string); ok {
				keywords[keyword] = true
			}
		}
	}

	for category := range categories {
		summary.Categories = append(summary.Categories, category)
	}
	for keyword := range keywords {
		summary.Keywords = append(summary.Keywords, keyword)
	}
	sort.Strings(summary.Categories)
	sort.Strings(summary.Keywords)
	return summary
}
