package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
)

// Submitter is the dispatcher surface the scheduler drives
type Submitter interface {
	Submit(ctx context.Context, req queue.DispatchRequest) (queue.DispatchResult, error)
}

// Scheduler fires the daily today-yesterday sweep on a cron schedule.
// Yesterday catches late publications, today catches the morning batch.
type Scheduler struct {
	cron     *cron.Cron
	submit   Submitter
	platform models.SpiderType
	logger   arbor.ILogger
}

// Options configures the scheduler
type Options struct {
	Schedule string
	Platform string
	Logger   arbor.ILogger
}

// New builds a scheduler and registers the sweep job. The schedule is a
// standard five-field cron expression.
func New(submit Submitter, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		submit:   submit,
		platform: models.SpiderType(opts.Platform),
		logger:   opts.Logger,
	}

	if _, err := s.cron.AddFunc(opts.Schedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// Start begins firing scheduled sweeps
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.logger != nil {
		s.logger.Info().Msg("Scheduler started")
	}
}

// Stop halts the cron loop and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info().Msg("Scheduler stopped")
	}
}

func (s *Scheduler) runSweep() {
	today := models.Today()
	req := queue.DispatchRequest{
		All:       s.platform == "",
		StartDate: today.AddDays(-1),
		EndDate:   today,
	}
	if s.platform != "" {
		req.SpiderType = s.platform
	}

	result, err := s.submit.Submit(context.Background(), req)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("Scheduled crawl sweep failed")
		}
		return
	}
	if s.logger != nil {
		s.logger.Info().
			Int("enqueued", result.Enqueued).
			Int("failed", result.Failed).
			Str("window", result.Window.String()).
			Msg("Scheduled crawl sweep dispatched")
	}
}
