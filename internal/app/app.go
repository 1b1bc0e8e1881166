package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/analyzer"
	"github.com/ternarybob/diario/internal/common"
	"github.com/ternarybob/diario/internal/executor"
	"github.com/ternarybob/diario/internal/handlers"
	"github.com/ternarybob/diario/internal/httpclient"
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
	"github.com/ternarybob/diario/internal/registry"
	"github.com/ternarybob/diario/internal/scheduler"
	"github.com/ternarybob/diario/internal/spiders"
	"github.com/ternarybob/diario/internal/storage"
	"github.com/ternarybob/diario/internal/validation"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store    *storage.Store
	Registry *registry.Registry
	Results  *storage.ResultStore

	CrawlQueue    *queue.BadgerQueue
	OCRQueue      *queue.BadgerQueue
	AnalysisQueue *queue.BadgerQueue
	WebhookQueue  *queue.BadgerQueue

	Dispatcher   *queue.Dispatcher
	Executor     *executor.Executor
	Analysis     *executor.Analysis
	Orchestrator *analyzer.Orchestrator
	Browser      *spiders.ChromeRenderer
	Harness      *validation.Harness
	Scheduler    *scheduler.Scheduler

	CrawlHandler    *handlers.CrawlHandler
	SpidersHandler  *handlers.SpidersHandler
	StatsHandler    *handlers.StatsHandler
	AnalysisHandler *handlers.AnalysisHandler

	crawlWorker    *queue.Worker
	analysisWorker *queue.Worker
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	if err := app.initRegistry(); err != nil {
		return nil, fmt.Errorf("initialize registry: %w", err)
	}
	if err := app.initPipeline(); err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	app.initHandlers()

	if err := app.initScheduler(); err != nil {
		return nil, fmt.Errorf("initialize scheduler: %w", err)
	}

	logger.Info().
		Int("spiders", app.Registry.Len()).
		Int("concurrency", cfg.Queue.Concurrency).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	store, err := storage.Open(storage.Options{
		Path:           a.Config.Storage.Path,
		ResetOnStartup: a.Config.Storage.ResetOnStartup,
		Logger:         a.Logger,
	})
	if err != nil {
		return err
	}
	a.Store = store
	a.Results = storage.NewResultStore(store)

	for _, spec := range []struct {
		name   string
		target **queue.BadgerQueue
	}{
		{models.QueueCrawl, &a.CrawlQueue},
		{models.QueueOCR, &a.OCRQueue},
		{models.QueueAnalysis, &a.AnalysisQueue},
		{models.QueueWebhook, &a.WebhookQueue},
	} {
		q, err := queue.NewBadgerQueue(store.DB(), spec.name, queue.Options{
			VisibilityTimeout: common.Duration(a.Config.Queue.VisibilityTimeout, 0),
			MaxReceive:        a.Config.Queue.MaxReceive,
		})
		if err != nil {
			return fmt.Errorf("open queue %s: %w", spec.name, err)
		}
		*spec.target = q
	}
	return nil
}

func (a *App) initRegistry() error {
	a.Registry = registry.New(a.Logger)
	if err := a.Registry.LoadDir(a.Config.Cities.Dir); err != nil {
		return err
	}
	a.Logger.Info().
		Str("dir", a.Config.Cities.Dir).
		Int("spiders", a.Registry.Len()).
		Msg("City registry loaded")
	return nil
}

func (a *App) initPipeline() error {
	a.Dispatcher = queue.NewDispatcher(a.Registry, a.CrawlQueue, a.Logger)
	a.Dispatcher.BatchSize = a.Config.Queue.BatchSize

	// The browser is optional: without Chrome the adiarios_v2 family degrades
	// to a typed Unavailable error instead of blocking everything else.
	browser, err := spiders.NewChromeRenderer(a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Browser rendering unavailable; JS-only platforms will be skipped")
	} else {
		a.Browser = browser
	}

	var renderer spiders.Renderer
	if a.Browser != nil {
		renderer = a.Browser
	}

	a.Executor = executor.New(executor.Options{
		Registry:       a.Registry,
		OCRQueue:       a.OCRQueue,
		CrawlQueue:     a.CrawlQueue,
		Results:        a.Results,
		Clients:        a.clientFactory(),
		Browser:        renderer,
		CrawlTimeout:   common.Duration(a.Config.Crawler.CrawlTimeout, 0),
		BrowserTimeout: common.Duration(a.Config.Crawler.BrowserTimeout, 0),
		Logger:         a.Logger,
	})

	a.Orchestrator = analyzer.NewOrchestrator(analyzer.OrchestratorOptions{
		Analyzers:      a.buildAnalyzers(),
		Timeout:        common.Duration(a.Config.Analyzer.Timeout, 0),
		HighConfidence: a.Config.Analyzer.HighConfidence,
		Logger:         a.Logger,
	})

	a.Analysis = executor.NewAnalysis(executor.AnalysisOptions{
		Orchestrator:  a.Orchestrator,
		WebhookQueue:  a.WebhookQueue,
		AnalysisQueue: a.AnalysisQueue,
		Logger:        a.Logger,
	})

	pollInterval := common.Duration(a.Config.Queue.PollInterval, 0)
	a.crawlWorker = queue.NewWorker(a.CrawlQueue, a.Executor.Handle, a.Config.Queue.Concurrency, pollInterval, a.Logger)
	a.analysisWorker = queue.NewWorker(a.AnalysisQueue, a.Analysis.Handle, a.Config.Queue.Concurrency, pollInterval, a.Logger)

	a.Harness = validation.New(validation.Options{
		Registry:         a.Registry,
		Results:          a.Results,
		Clients:          validation.ClientFactory(a.clientFactory()),
		Browser:          renderer,
		ParallelWorkers:  a.Config.Validation.ParallelWorkers,
		TimeoutPerCity:   common.Duration(a.Config.Validation.TimeoutPerCity, 0),
		SearchDays:       a.Config.Validation.SearchDays,
		RequestDelay:     common.Duration(a.Config.Validation.RequestDelay, 0),
		SamplePercentage: a.Config.Validation.SamplePercentage,
		HeadProbe:        a.Config.Validation.HeadProbe,
		Verbose:          a.Config.Validation.Verbose,
		Logger:           a.Logger,
	})
	return nil
}

// buildAnalyzers assembles the extra analyzers the orchestrator runs after
// the concurso pass
func (a *App) buildAnalyzers() []analyzer.Analyzer {
	extras := []analyzer.Analyzer{
		analyzer.NewKeywordAnalyzer(),
		analyzer.NewEntityAnalyzer(),
		analyzer.NewCategoryAnalyzer(),
	}

	if a.Config.Analyzer.EnableAI {
		ai, err := analyzer.NewAIAnalyzer(a.Config.Analyzer.AnthropicAPIKey, a.Config.Analyzer.AnthropicModel, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("AI analyzer disabled")
		} else {
			extras = append(extras, ai)
			a.Logger.Info().Str("model", a.Config.Analyzer.AnthropicModel).Msg("AI analyzer enabled")
		}
	}
	return extras
}

// clientFactory builds per-crawl counting HTTP clients sharing one host
// rate limiter, so concurrent crawls of the same platform stay polite.
func (a *App) clientFactory() executor.ClientFactory {
	limiter := httpclient.NewHostLimiter(
		a.Config.Crawler.DefaultRateLimit,
		a.Config.Crawler.DomainRateLimits,
		common.Duration(a.Config.Crawler.RateLimitStarvation, 0),
	)
	retry := httpclient.NewRetryPolicy()
	if a.Config.Crawler.MaxRetries > 0 {
		retry.MaxAttempts = a.Config.Crawler.MaxRetries
	}
	timeout := common.Duration(a.Config.Crawler.RequestTimeout, 0)
	userAgent := a.Config.Crawler.UserAgent
	logger := a.Logger

	return func() *httpclient.Client {
		return httpclient.New(httpclient.Options{
			Timeout:   timeout,
			UserAgent: userAgent,
			Limiter:   limiter,
			Retry:     retry,
			Logger:    logger,
		})
	}
}

func (a *App) initHandlers() {
	a.CrawlHandler = handlers.NewCrawlHandler(a.Dispatcher, a.Registry, a.Config.Queue.Concurrency, a.Logger)
	a.SpidersHandler = handlers.NewSpidersHandler(a.Registry, a.Logger)
	a.StatsHandler = handlers.NewStatsHandler(a.Registry, a.Queues(), a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.AnalysisQueue, a.Logger)
}

func (a *App) initScheduler() error {
	if !a.Config.Scheduler.Enabled {
		return nil
	}
	s, err := scheduler.New(a.Dispatcher, scheduler.Options{
		Schedule: a.Config.Scheduler.Schedule,
		Platform: a.Config.Scheduler.Platform,
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}
	a.Scheduler = s
	return nil
}

// Queues lists the pipeline queues in stage order
func (a *App) Queues() []*queue.BadgerQueue {
	return []*queue.BadgerQueue{a.CrawlQueue, a.OCRQueue, a.AnalysisQueue, a.WebhookQueue}
}

// Start launches the queue consumers and the scheduler
func (a *App) Start(ctx context.Context) {
	a.crawlWorker.Start(ctx)
	a.analysisWorker.Start(ctx)
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
	a.Logger.Info().Msg("Pipeline workers started")
}

// Close stops the workers and releases all resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.crawlWorker != nil {
		a.crawlWorker.Stop()
	}
	if a.analysisWorker != nil {
		a.analysisWorker.Stop()
	}
	if a.Browser != nil {
		a.Browser.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	a.Logger.Info().Msg("Application stopped")
	return nil
}
