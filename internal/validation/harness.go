package validation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/common"
	"github.com/ternarybob/diario/internal/httpclient"
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/registry"
	"github.com/ternarybob/diario/internal/spiders"
	"github.com/ternarybob/diario/internal/storage"
)

// Mode selects which slice of the registry a validation run covers
type Mode string

const (
	ModeFull       Mode = "full"       // every registered city
	ModeSample     Mode = "sample"     // random percentage of the registry
	ModePlatform   Mode = "platform"   // all cities of one adapter kind
	ModeSingle     Mode = "single"     // named spider ids
	ModeRegression Mode = "regression" // cities whose last crawl failed
)

const (
	defaultParallelWorkers  = 10
	defaultTimeoutPerCity   = 60 * time.Second
	defaultSearchDays       = 7
	defaultRequestDelay     = 500 * time.Millisecond
	defaultSamplePercentage = 10.0

	// regressionLookback bounds how far back a failed crawl still counts as
	// worth re-validating.
	regressionLookback = 7 * 24 * time.Hour
)

// ClientFactory builds a fresh counting HTTP client per validated city
type ClientFactory func() *httpclient.Client

// Request selects the cities and window for one validation run
type Request struct {
	Mode             Mode
	SpiderIDs        []string          // single mode
	Platform         models.SpiderType // platform mode
	SamplePercentage float64           // sample mode; 0 uses the configured default
	Window           models.DateRange  // optional override of the search window
}

// Options configures the harness
type Options struct {
	Registry         *registry.Registry
	Results          *storage.ResultStore
	Clients          ClientFactory
	Browser          spiders.Renderer
	ParallelWorkers  int
	TimeoutPerCity   time.Duration
	SearchDays       int
	RequestDelay     time.Duration
	SamplePercentage float64
	HeadProbe        bool
	Verbose          bool
	Logger           arbor.ILogger

	// Seed fixes the sample-mode shuffle for reproducible runs; 0 seeds
	// from the clock.
	Seed int64
}

// Harness drives a slice of the registry through real crawls and validates
// what comes back. Cities run in chunks of ParallelWorkers; each chunk
// completes before the next starts, with a delay in between so validation
// traffic stays polite.
type Harness struct {
	opts Options
	rng  *rand.Rand
}

// New builds a harness with defaults filled in
func New(opts Options) *Harness {
	if opts.ParallelWorkers <= 0 {
		opts.ParallelWorkers = defaultParallelWorkers
	}
	if opts.TimeoutPerCity <= 0 {
		opts.TimeoutPerCity = defaultTimeoutPerCity
	}
	if opts.SearchDays <= 0 {
		opts.SearchDays = defaultSearchDays
	}
	if opts.RequestDelay < 0 {
		opts.RequestDelay = defaultRequestDelay
	}
	if opts.SamplePercentage <= 0 {
		opts.SamplePercentage = defaultSamplePercentage
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Harness{opts: opts, rng: rand.New(rand.NewSource(seed))}
}

// Run executes one validation pass and returns the aggregated report
func (h *Harness) Run(ctx context.Context, req Request) (*Report, error) {
	cities, err := h.selectCities(req)
	if err != nil {
		return nil, err
	}

	window := req.Window
	if window.Start.IsZero() || window.End.IsZero() {
		end := models.Today()
		window = models.DateRange{Start: end.AddDays(-(h.opts.SearchDays - 1)), End: end}
	}

	report := &Report{
		Mode:      req.Mode,
		Window:    window,
		StartedAt: time.Now().UTC(),
	}

	h.log().Info().
		Str("mode", string(req.Mode)).
		Int("cities", len(cities)).
		Str("window", window.String()).
		Int("workers", h.opts.ParallelWorkers).
		Msg("Validation run starting")

	var mu sync.Mutex
	for start := 0; start < len(cities); start += h.opts.ParallelWorkers {
		if start > 0 && h.opts.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(h.opts.RequestDelay):
			}
		}

		end := start + h.opts.ParallelWorkers
		if end > len(cities) {
			end = len(cities)
		}

		var wg sync.WaitGroup
		for _, cfg := range cities[start:end] {
			wg.Add(1)
			go func(cfg models.SpiderConfig) {
				defer wg.Done()
				result := h.validateCity(ctx, cfg, window)
				mu.Lock()
				report.Cities = append(report.Cities, result)
				mu.Unlock()
			}(cfg)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	sort.Slice(report.Cities, func(i, j int) bool {
		return report.Cities[i].SpiderID < report.Cities[j].SpiderID
	})
	report.finalize(time.Now().UTC())

	h.log().Info().
		Int("passed", report.Summary.Passed).
		Int("warned", report.Summary.Warned).
		Int("failed", report.Summary.Failed).
		Int("skipped", report.Summary.Skipped).
		Msg("Validation run finished")
	return report, nil
}

// selectCities resolves the run's city set according to the mode
func (h *Harness) selectCities(req Request) ([]models.SpiderConfig, error) {
	switch req.Mode {
	case ModeFull:
		return h.opts.Registry.All(), nil

	case ModeSample:
		percentage := req.SamplePercentage
		if percentage <= 0 {
			percentage = h.opts.SamplePercentage
		}
		all := h.opts.Registry.All()
		if len(all) == 0 {
			return nil, nil
		}
		h.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		n := int(float64(len(all))*percentage/100 + 0.5)
		if n < 1 {
			n = 1
		}
		if n > len(all) {
			n = len(all)
		}
		return all[:n], nil

	case ModePlatform:
		return h.opts.Registry.ByType(req.Platform)

	case ModeSingle:
		if len(req.SpiderIDs) == 0 {
			return nil, models.NewInputError("single mode requires spider ids", nil)
		}
		cities := make([]models.SpiderConfig, 0, len(req.SpiderIDs))
		for _, id := range req.SpiderIDs {
			cfg, err := h.opts.Registry.Get(id)
			if err != nil {
				return nil, err
			}
			cities = append(cities, cfg)
		}
		return cities, nil

	case ModeRegression:
		if h.opts.Results == nil {
			return nil, models.NewInputError("regression mode requires a result store", nil)
		}
		failed, err := h.opts.Results.FailedSince(time.Now().Add(-regressionLookback))
		if err != nil {
			return nil, err
		}
		var cities []models.SpiderConfig
		for _, result := range failed {
			cfg, err := h.opts.Registry.Get(result.SpiderID)
			if err != nil {
				// City was removed from the registry since it failed
				continue
			}
			cities = append(cities, cfg)
		}
		return cities, nil

	default:
		return nil, models.NewInputError(fmt.Sprintf("unknown validation mode %q", req.Mode), nil)
	}
}

// validateCity crawls one city under its deadline and runs every validator
// over the outcome. A deadline violation is terminal for the city.
func (h *Harness) validateCity(ctx context.Context, cfg models.SpiderConfig, window models.DateRange) CityResult {
	result := CityResult{
		SpiderID:    cfg.ID,
		Name:        cfg.Name,
		TerritoryID: cfg.TerritoryID,
		Platform:    cfg.SpiderType,
	}

	deps := spiders.Deps{Browser: h.opts.Browser, Logger: h.opts.Logger}
	var client *httpclient.Client
	if h.opts.Clients != nil {
		client = h.opts.Clients()
		deps.Client = client
	}

	spider, err := registry.CreateSpider(cfg, window, deps)
	if err != nil {
		result.addIssue("setup", SeverityFail, err.Error())
		result.Status = result.status()
		return result
	}

	started := time.Now()
	cityCtx, cancel := context.WithTimeout(ctx, h.opts.TimeoutPerCity)
	defer cancel()

	gazettes, crawlErr := spider.Crawl(cityCtx)
	result.Duration = time.Since(started)
	result.Requests = spider.RequestCount()
	result.Gazettes = len(gazettes)

	if crawlErr != nil {
		// Missing capability, not a broken adapter: the city is skipped so
		// the run's pass/fail signal stays meaningful.
		if models.KindOf(crawlErr) == models.ErrKindUnavailable {
			result.addIssue("crawl", SeverityWarn, crawlErr.Error())
			result.Status = StatusSkip
			return result
		}
		message := crawlErr.Error()
		if cityCtx.Err() == context.DeadlineExceeded {
			message = fmt.Sprintf("deadline exceeded after %s", h.opts.TimeoutPerCity)
		}
		result.addIssue("crawl", SeverityFail, message)
	} else {
		validateStructure(&result, gazettes, window)
		h.validateContent(cityCtx, &result, client, cfg, gazettes, started)
	}
	validatePerformance(&result)

	result.Status = result.status()
	switch {
	case h.opts.Verbose:
		h.log().Info().
			Str("spider", cfg.ID).
			Str("status", string(result.Status)).
			Int("gazettes", result.Gazettes).
			Int("requests", result.Requests).
			Dur("duration", result.Duration).
			Int("issues", len(result.Issues)).
			Msg("City validated")
	case h.opts.Logger != nil && result.Status != StatusPass:
		h.opts.Logger.Warn().
			Str("spider", cfg.ID).
			Str("status", string(result.Status)).
			Int("issues", len(result.Issues)).
			Msg("City validation flagged issues")
	}
	return result
}

func (h *Harness) log() arbor.ILogger {
	if h.opts.Logger != nil {
		return h.opts.Logger
	}
	return common.GetLogger()
}
