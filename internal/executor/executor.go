package executor

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/common"
	"github.com/ternarybob/diario/internal/httpclient"
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
	"github.com/ternarybob/diario/internal/registry"
	"github.com/ternarybob/diario/internal/spiders"
	"github.com/ternarybob/diario/internal/storage"
)

// ClientFactory builds a fresh counting HTTP client for one crawl so request
// counts are attributable per message.
type ClientFactory func() *httpclient.Client

// OCRForwarder enqueues gazettes for text extraction
type OCRForwarder interface {
	Enqueue(ctx context.Context, body any, dedupKey string) (bool, error)
}

// Burier is the queue surface for abandoning hopeless messages
type Burier interface {
	Bury(ctx context.Context, id string, reason string) error
}

// Options configures the executor
type Options struct {
	Registry       *registry.Registry
	OCRQueue       OCRForwarder
	CrawlQueue     Burier
	Results        *storage.ResultStore
	Clients        ClientFactory
	Browser        spiders.Renderer
	CrawlTimeout   time.Duration
	BrowserTimeout time.Duration
	Logger         arbor.ILogger
}

// Executor consumes crawl messages: it rebuilds the spider from the message,
// runs it under a deadline, forwards discovered gazettes to the OCR queue and
// persists the outcome. Retryable failures ride the queue's redelivery;
// hopeless ones are buried so they reach the dead-letter sink immediately.
type Executor struct {
	opts Options
}

// New builds an executor
func New(opts Options) *Executor {
	if opts.CrawlTimeout <= 0 {
		opts.CrawlTimeout = 60 * time.Second
	}
	if opts.BrowserTimeout <= 0 {
		opts.BrowserTimeout = 120 * time.Second
	}
	return &Executor{opts: opts}
}

// Handle processes one crawl envelope. The returned error drives queue
// redelivery: nil acks, non-nil leaves the message for another attempt.
func (e *Executor) Handle(ctx context.Context, env *queue.Envelope) error {
	var msg models.CrawlMessage
	if err := env.Decode(&msg); err != nil {
		// Undecodable payloads never improve with retries
		e.bury(ctx, env, "undecodable crawl message: "+err.Error())
		return nil
	}

	cfg, err := msg.SpiderConfig()
	if err != nil {
		e.bury(ctx, env, "invalid spider config: "+err.Error())
		e.saveResult(msg, nil, models.CrawlStats{}, err, time.Now())
		return nil
	}

	started := time.Now()
	gazettes, stats, crawlErr := e.crawlWithFallbacks(ctx, cfg, msg.DateRange)
	stats.ExecutionTimeMs = time.Since(started).Milliseconds()
	stats.DateRange = msg.DateRange

	if crawlErr != nil {
		e.saveResult(msg, nil, stats, crawlErr, started)
		if models.IsRetryable(crawlErr) {
			e.log().Warn().
				Err(crawlErr).
				Str("spider", msg.SpiderID).
				Int("receive_count", env.ReceiveCount).
				Msg("Crawl failed; retrying via redelivery")
			return crawlErr
		}
		e.bury(ctx, env, crawlErr.Error())
		return nil
	}

	valid := e.validateGazettes(msg, gazettes, started)
	e.forwardToOCR(ctx, msg, valid)
	e.saveResult(msg, valid, stats, nil, started)

	e.log().Info().
		Str("spider", msg.SpiderID).
		Int("found", len(valid)).
		Int("requests", stats.RequestCount).
		Int64("ms", stats.ExecutionTimeMs).
		Msg("Crawl completed")
	return nil
}

// crawlWithFallbacks runs the configured spider, then rotates through the
// territory's alternative configurations when the primary fails with a parse
// failure or a hard HTTP status. Those failures mean the platform moved or
// changed layout, which is exactly when the fallback entry is useful.
func (e *Executor) crawlWithFallbacks(ctx context.Context, cfg models.SpiderConfig, window models.DateRange) ([]models.Gazette, models.CrawlStats, error) {
	gazettes, stats, err := e.crawlOne(ctx, cfg, window)
	if err == nil || !fallbackWorthy(err) || e.opts.Registry == nil {
		return gazettes, stats, err
	}

	primaryErr := err
	for _, fallback := range e.opts.Registry.Fallbacks(cfg.TerritoryID, cfg.ID) {
		e.log().Info().
			Str("spider", cfg.ID).
			Str("fallback", fallback.ID).
			Str("reason", string(models.KindOf(primaryErr))).
			Msg("Rotating to fallback spider")

		fbGazettes, fbStats, fbErr := e.crawlOne(ctx, fallback, window)
		stats.RequestCount += fbStats.RequestCount
		if fbErr == nil {
			stats.TotalFound = fbStats.TotalFound
			return fbGazettes, stats, nil
		}
	}
	return nil, stats, primaryErr
}

// crawlOne constructs and runs a single spider under its deadline
func (e *Executor) crawlOne(ctx context.Context, cfg models.SpiderConfig, window models.DateRange) ([]models.Gazette, models.CrawlStats, error) {
	timeout := e.opts.CrawlTimeout
	if cfg.SpiderType.UsesBrowser() {
		timeout = e.opts.BrowserTimeout
	}
	crawlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	deps := spiders.Deps{
		Browser: e.opts.Browser,
		Logger:  e.opts.Logger,
	}
	if e.opts.Clients != nil {
		deps.Client = e.opts.Clients()
	}

	spider, err := registry.CreateSpider(cfg, window, deps)
	if err != nil {
		return nil, models.CrawlStats{}, err
	}

	gazettes, err := spider.Crawl(crawlCtx)
	stats := models.CrawlStats{
		TotalFound:   len(gazettes),
		RequestCount: spider.RequestCount(),
	}
	if err != nil {
		if crawlCtx.Err() == context.DeadlineExceeded {
			return nil, stats, models.NewTimeoutError("crawl "+cfg.ID, crawlCtx.Err())
		}
		return nil, stats, err
	}
	return gazettes, stats, nil
}

// validateGazettes drops records that violate their invariants. A bad record
// is a spider bug, not a crawl failure; the rest of the batch still ships.
func (e *Executor) validateGazettes(msg models.CrawlMessage, gazettes []models.Gazette, started time.Time) []models.Gazette {
	valid := gazettes[:0]
	for _, g := range gazettes {
		if err := g.Validate(msg.TerritoryID, msg.DateRange, started); err != nil {
			e.log().Warn().
				Err(err).
				Str("spider", msg.SpiderID).
				Str("file_url", g.FileURL).
				Msg("Dropping invalid gazette record")
			continue
		}
		valid = append(valid, g)
	}
	return valid
}

// forwardToOCR enqueues each gazette for text extraction, deduplicated on
// (territory, date, fileUrl). Forwarding failures are logged and skipped:
// losing one hand-off must never fail the crawl ack and re-run the whole
// city.
func (e *Executor) forwardToOCR(ctx context.Context, msg models.CrawlMessage, gazettes []models.Gazette) {
	if e.opts.OCRQueue == nil {
		return
	}
	for _, g := range gazettes {
		ocrMsg := models.OCRMessage{Gazette: g, SpiderID: msg.SpiderID}
		if _, err := e.opts.OCRQueue.Enqueue(ctx, ocrMsg, g.DedupKey()); err != nil {
			e.log().Error().
				Err(err).
				Str("spider", msg.SpiderID).
				Str("file_url", g.FileURL).
				Msg("OCR forward failed; gazette not queued")
		}
	}
}

func (e *Executor) saveResult(msg models.CrawlMessage, gazettes []models.Gazette, stats models.CrawlStats, err error, started time.Time) {
	if e.opts.Results == nil {
		return
	}
	result := models.CrawlResult{
		SpiderID:    msg.SpiderID,
		TerritoryID: msg.TerritoryID,
		Gazettes:    gazettes,
		Stats:       stats,
		FinishedAt:  time.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	if saveErr := e.opts.Results.Save(result); saveErr != nil {
		e.log().Error().Err(saveErr).Str("spider", msg.SpiderID).Msg("Failed to persist crawl result")
	}
}

func (e *Executor) bury(ctx context.Context, env *queue.Envelope, reason string) {
	e.log().Warn().
		Str("message_id", env.ID).
		Str("reason", reason).
		Msg("Burying crawl message")
	if e.opts.CrawlQueue == nil {
		return
	}
	if err := e.opts.CrawlQueue.Bury(ctx, env.ID, reason); err != nil {
		e.log().Error().Err(err).Str("message_id", env.ID).Msg("Bury failed")
	}
}

// fallbackWorthy reports whether an error suggests the platform itself moved
// on: layout changes and hard HTTP failures, not transient network trouble.
func fallbackWorthy(err error) bool {
	switch models.KindOf(err) {
	case models.ErrKindParse:
		return true
	case models.ErrKindHTTPStatus:
		status := models.HTTPStatusOf(err)
		return status == 404 || status == 410 || status >= 500
	}
	return false
}

func (e *Executor) log() arbor.ILogger {
	if e.opts.Logger != nil {
		return e.opts.Logger
	}
	return common.GetLogger()
}
