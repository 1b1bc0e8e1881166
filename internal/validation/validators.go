package validation

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/diario/internal/httpclient"
	"github.com/ternarybob/diario/internal/models"
)

// Severity grades a validation issue
type Severity string

const (
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// Status is the rolled-up verdict for one city
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
	// StatusSkip marks cities whose adapter could not run at all, e.g. a
	// browser-backed platform validated without a rendering browser.
	StatusSkip Status = "skip"
)

// Issue is one finding of one validator against one city
type Issue struct {
	Validator string   `json:"validator"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// CityResult is the validation outcome for a single city
type CityResult struct {
	SpiderID    string            `json:"spiderId"`
	Name        string            `json:"name"`
	TerritoryID string            `json:"territoryId"`
	Platform    models.SpiderType `json:"platform"`
	Status      Status            `json:"status"`
	Gazettes    int               `json:"gazettes"`
	Requests    int               `json:"requests"`
	Duration    time.Duration     `json:"duration"`
	Issues      []Issue           `json:"issues,omitempty"`
}

func (r *CityResult) addIssue(validator string, severity Severity, message string) {
	r.Issues = append(r.Issues, Issue{Validator: validator, Severity: severity, Message: message})
}

func (r *CityResult) status() Status {
	status := StatusPass
	for _, issue := range r.Issues {
		if issue.Severity == SeverityFail {
			return StatusFail
		}
		status = StatusWarn
	}
	return status
}

// issueCap bounds per-validator noise for badly broken adapters
const issueCap = 5

// Performance thresholds. Execution time grades against the per-city budget;
// request efficiency against how many HTTP calls each produced gazette cost.
const (
	durationWarn = 60 * time.Second
	durationFail = 120 * time.Second

	requestsPerGazetteWarn = 5
	requestsPerGazetteFail = 10
)

// headProbeSample is how many file URLs the content validator probes per city
const (
	headProbeSample  = 3
	headProbeTimeout = 10 * time.Second
)

// validateStructure checks each record's schema: required fields, a 7-digit
// territory code, an absolute file URL and a date inside the requested window.
func validateStructure(result *CityResult, gazettes []models.Gazette, window models.DateRange) {
	flagged := 0
	flag := func(format string, args ...any) {
		flagged++
		if flagged <= issueCap {
			result.addIssue("structural", SeverityFail, fmt.Sprintf(format, args...))
		}
	}

	today := models.Today()
	for i, g := range gazettes {
		if g.TerritoryID == "" || g.FileURL == "" || g.Date.IsZero() || g.ScrapedAt.IsZero() {
			flag("record %d: missing required field", i)
			continue
		}
		if u, err := url.Parse(g.FileURL); err != nil || !u.IsAbs() || u.Host == "" {
			flag("record %d: fileUrl %q is not absolute", i, g.FileURL)
		}
		if !window.Contains(g.Date) {
			flag("record %d: date %s outside window %s", i, g.Date, window)
		}
		if g.Date.After(today) {
			flag("record %d: date %s is in the future", i, g.Date)
		}
	}
	if flagged > issueCap {
		result.addIssue("structural", SeverityFail,
			fmt.Sprintf("%d further structural violations suppressed", flagged-issueCap))
	}
}

// validateContent checks what the records claim against the configuration:
// territory identity, a known power value and a scrapedAt stamped during this
// run. When enabled it also HEAD-probes a small sample of file URLs to catch
// adapters that fabricate links the platform no longer serves.
func (h *Harness) validateContent(ctx context.Context, result *CityResult, client *httpclient.Client, cfg models.SpiderConfig, gazettes []models.Gazette, started time.Time) {
	flagged := 0
	flag := func(severity Severity, format string, args ...any) {
		flagged++
		if flagged <= issueCap {
			result.addIssue("content", severity, fmt.Sprintf(format, args...))
		}
	}

	for i, g := range gazettes {
		if g.TerritoryID != cfg.TerritoryID {
			flag(SeverityFail, "record %d: territory %s does not match configured %s", i, g.TerritoryID, cfg.TerritoryID)
		}
		if !g.Power.IsValid() {
			flag(SeverityFail, "record %d: unknown power %q", i, g.Power)
		}
		if g.ScrapedAt.Before(started) {
			flag(SeverityFail, "record %d: scrapedAt %s predates this run", i, g.ScrapedAt.Format(time.RFC3339))
		}
	}
	if flagged > issueCap {
		result.addIssue("content", SeverityFail,
			fmt.Sprintf("%d further content violations suppressed", flagged-issueCap))
	}

	if !h.opts.HeadProbe || client == nil {
		return
	}
	for _, g := range sampleGazettes(gazettes, headProbeSample) {
		status, err := client.Head(ctx, g.FileURL, headProbeTimeout)
		if err != nil {
			result.addIssue("content", SeverityFail, fmt.Sprintf("HEAD %s: %v", g.FileURL, err))
			continue
		}
		if status >= 400 {
			result.addIssue("content", SeverityFail, fmt.Sprintf("HEAD %s returned %d", g.FileURL, status))
		}
	}
}

// sampleGazettes spreads n picks evenly across the slice so the probe covers
// more than just the newest editions.
func sampleGazettes(gazettes []models.Gazette, n int) []models.Gazette {
	if len(gazettes) <= n {
		return gazettes
	}
	sample := make([]models.Gazette, 0, n)
	step := len(gazettes) / n
	for i := 0; i < n; i++ {
		sample = append(sample, gazettes[i*step])
	}
	return sample
}

// validatePerformance grades execution time and request efficiency
func validatePerformance(result *CityResult) {
	switch {
	case result.Duration >= durationFail:
		result.addIssue("performance", SeverityFail,
			fmt.Sprintf("crawl took %s (limit %s)", result.Duration.Round(time.Millisecond), durationFail))
	case result.Duration >= durationWarn:
		result.addIssue("performance", SeverityWarn,
			fmt.Sprintf("crawl took %s (target %s)", result.Duration.Round(time.Millisecond), durationWarn))
	}

	if result.Gazettes == 0 {
		return
	}
	ratio := float64(result.Requests) / float64(result.Gazettes)
	switch {
	case ratio > requestsPerGazetteFail:
		result.addIssue("performance", SeverityFail,
			fmt.Sprintf("%.1f requests per gazette (limit %d)", ratio, requestsPerGazetteFail))
	case ratio > requestsPerGazetteWarn:
		result.addIssue("performance", SeverityWarn,
			fmt.Sprintf("%.1f requests per gazette (target %d)", ratio, requestsPerGazetteWarn))
	}
}
