package queue

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/registry"
)

// DefaultWindowDays is the look-back applied when a request omits dates:
// the window runs from today minus this many days through today.
const DefaultWindowDays = 30

// dispatchBatchSize is the hard ceiling on crawl messages per bulk enqueue
const dispatchBatchSize = 100

// DispatchRequest selects which spiders to run and over what window.
// Selection is by explicit ids, by platform type, or everything.
type DispatchRequest struct {
	SpiderIDs  []string          `json:"spiderIds,omitempty"`
	SpiderType models.SpiderType `json:"spiderType,omitempty"`
	All        bool              `json:"all,omitempty"`
	StartDate  models.Date       `json:"startDate,omitempty"`
	EndDate    models.Date       `json:"endDate,omitempty"`
}

// DispatchFailure records one spider that could not be enqueued
type DispatchFailure struct {
	SpiderID string `json:"spiderId"`
	Error    string `json:"error"`
}

// DispatchResult summarizes a submission
type DispatchResult struct {
	Total    int               `json:"total"`
	Enqueued int               `json:"enqueued"`
	Failed   int               `json:"failed"`
	Window   models.DateRange  `json:"window"`
	Failures []DispatchFailure `json:"failures,omitempty"`
}

// AllSucceeded reports whether every selected spider was enqueued
func (r DispatchResult) AllSucceeded() bool { return r.Failed == 0 }

// AllFailed reports whether nothing was enqueued
func (r DispatchResult) AllFailed() bool { return r.Total > 0 && r.Enqueued == 0 }

// Enqueuer is the queue surface the dispatcher needs
type Enqueuer interface {
	Enqueue(ctx context.Context, body any, dedupKey string) (bool, error)
	EnqueueBatch(ctx context.Context, bodies []any) error
}

// Dispatcher turns crawl requests into queued crawl messages
type Dispatcher struct {
	registry *registry.Registry
	crawl    Enqueuer
	logger   arbor.ILogger

	// BatchSize caps messages per bulk enqueue; zero or anything above the
	// hard ceiling uses the ceiling.
	BatchSize int
}

// NewDispatcher builds a dispatcher over the crawl queue
func NewDispatcher(reg *registry.Registry, crawl Enqueuer, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{registry: reg, crawl: crawl, logger: logger}
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize > 0 && d.BatchSize < dispatchBatchSize {
		return d.BatchSize
	}
	return dispatchBatchSize
}

// Submit resolves the request's spiders and window, then enqueues one crawl
// message per spider in batches. Each batch goes up as a single bulk write;
// when the bulk write fails the batch falls back to per-message submission so
// one poisoned entry cannot sink its 99 neighbours.
func (d *Dispatcher) Submit(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	window, err := d.resolveWindow(req)
	if err != nil {
		return DispatchResult{}, err
	}

	configs, err := d.resolveSpiders(req)
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{Total: len(configs), Window: window}

	size := d.batchSize()
	for start := 0; start < len(configs); start += size {
		end := start + size
		if end > len(configs) {
			end = len(configs)
		}
		batch := configs[start:end]

		bodies := make([]any, 0, len(batch))
		for _, cfg := range batch {
			msg, err := models.NewCrawlMessage(cfg, window)
			if err != nil {
				result.Failed++
				result.Failures = append(result.Failures, DispatchFailure{SpiderID: cfg.ID, Error: err.Error()})
				continue
			}
			bodies = append(bodies, msg)
		}
		if len(bodies) == 0 {
			continue
		}

		if err := d.crawl.EnqueueBatch(ctx, bodies); err == nil {
			result.Enqueued += len(bodies)
			continue
		} else if d.logger != nil {
			d.logger.Warn().
				Err(err).
				Int("batch_size", len(bodies)).
				Msg("Bulk enqueue failed; retrying per message")
		}

		for i, body := range bodies {
			if _, err := d.crawl.Enqueue(ctx, body, ""); err != nil {
				result.Failed++
				result.Failures = append(result.Failures, DispatchFailure{
					SpiderID: batch[i].ID,
					Error:    err.Error(),
				})
				continue
			}
			result.Enqueued++
		}
	}

	if d.logger != nil {
		d.logger.Info().
			Int("total", result.Total).
			Int("enqueued", result.Enqueued).
			Int("failed", result.Failed).
			Str("window", window.String()).
			Msg("Crawl dispatch completed")
	}
	return result, nil
}

// SubmitTodayYesterday dispatches every spider over the trailing two days.
// This is the scheduled daily sweep: yesterday catches late publications,
// today catches the morning batch.
func (d *Dispatcher) SubmitTodayYesterday(ctx context.Context) (DispatchResult, error) {
	today := models.Today()
	return d.Submit(ctx, DispatchRequest{
		All:       true,
		StartDate: today.AddDays(-1),
		EndDate:   today,
	})
}

// resolveWindow applies the 30-day default and validates explicit bounds
func (d *Dispatcher) resolveWindow(req DispatchRequest) (models.DateRange, error) {
	end := req.EndDate
	if end.IsZero() {
		end = models.Today()
	}
	start := req.StartDate
	if start.IsZero() {
		start = end.AddDays(-DefaultWindowDays)
	}
	window, err := models.NewDateRange(start, end)
	if err != nil {
		return models.DateRange{}, models.NewInputError("dispatch window", err)
	}
	return window, nil
}

// resolveSpiders expands the request's selection into configurations
func (d *Dispatcher) resolveSpiders(req DispatchRequest) ([]models.SpiderConfig, error) {
	switch {
	case len(req.SpiderIDs) > 0:
		configs := make([]models.SpiderConfig, 0, len(req.SpiderIDs))
		for _, id := range req.SpiderIDs {
			cfg, err := d.registry.Get(id)
			if err != nil {
				return nil, err
			}
			configs = append(configs, cfg)
		}
		return configs, nil
	case req.SpiderType != "":
		return d.registry.ByType(req.SpiderType)
	case req.All:
		return d.registry.All(), nil
	default:
		return nil, models.NewInputError("dispatch request selects no spiders", nil)
	}
}

// QueueStats is one queue's live and dead-letter depth
type QueueStats struct {
	Pending int `json:"pending"`
	Dead    int `json:"dead"`
}

// StatsFor collects depth stats for the given queues
func StatsFor(ctx context.Context, queues ...*BadgerQueue) (map[string]QueueStats, error) {
	out := make(map[string]QueueStats, len(queues))
	for _, q := range queues {
		pending, dead, err := q.Stats(ctx)
		if err != nil {
			return nil, err
		}
		out[q.Name()] = QueueStats{Pending: pending, Dead: dead}
	}
	return out, nil
}

// WaitDrained polls until the queue is empty or the timeout elapses; test
// and harness helper.
func WaitDrained(ctx context.Context, q *BadgerQueue, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pending, _, err := q.Stats(ctx)
		if err == nil && pending == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}
