package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/analyzer"
	"github.com/ternarybob/diario/internal/common"
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
)

// WebhookForwarder enqueues notifications for the external delivery worker
type WebhookForwarder interface {
	Enqueue(ctx context.Context, body any, dedupKey string) (bool, error)
}

// AnalysisOptions configures the analysis consumer
type AnalysisOptions struct {
	Orchestrator   *analyzer.Orchestrator
	WebhookQueue   WebhookForwarder
	AnalysisQueue  Burier
	SubscriptionID string
	Logger         arbor.ILogger
}

// Analysis consumes OCR results: each message is run through the analyzer
// orchestrator, and analyses that produced findings are pushed onto the
// webhook queue for the external delivery worker. Like OCR forwarding on the
// crawl side, a webhook enqueue failure never fails the ack: the analysis
// itself succeeded and redelivery would only duplicate findings.
type Analysis struct {
	opts AnalysisOptions
}

// NewAnalysis builds the analysis consumer
func NewAnalysis(opts AnalysisOptions) *Analysis {
	if opts.SubscriptionID == "" {
		opts.SubscriptionID = "concurso-findings"
	}
	return &Analysis{opts: opts}
}

// Handle processes one OCR result envelope
func (a *Analysis) Handle(ctx context.Context, env *queue.Envelope) error {
	var ocr models.OCRResult
	if err := env.Decode(&ocr); err != nil {
		a.bury(ctx, env, "undecodable ocr result: "+err.Error())
		return nil
	}

	started := time.Now()
	analysis := a.opts.Orchestrator.Analyze(ctx, ocr)

	a.log().Info().
		Str("job_id", ocr.JobID).
		Str("spider_id", ocr.SpiderID).
		Int("findings", len(analysis.Findings)).
		Int("concursos", len(analysis.Concursos)).
		Dur("duration", time.Since(started)).
		Msg("Gazette analysis completed")

	if len(analysis.Findings) == 0 && len(analysis.Concursos) == 0 {
		return nil
	}
	a.forwardToWebhook(ctx, ocr, analysis)
	return nil
}

func (a *Analysis) forwardToWebhook(ctx context.Context, ocr models.OCRResult, analysis models.GazetteAnalysis) {
	notification, err := json.Marshal(analysis)
	if err != nil {
		a.log().Error().Err(err).Str("job_id", ocr.JobID).Msg("Marshal analysis notification failed")
		return
	}

	msg := models.WebhookMessage{
		MessageID:      uuid.New().String(),
		SubscriptionID: a.opts.SubscriptionID,
		Notification:   notification,
	}
	if _, err := a.opts.WebhookQueue.Enqueue(ctx, msg, ocr.JobID); err != nil {
		a.log().Warn().
			Err(err).
			Str("job_id", ocr.JobID).
			Msg("Webhook enqueue failed; analysis still acked")
	}
}

func (a *Analysis) bury(ctx context.Context, env *queue.Envelope, reason string) {
	if a.opts.AnalysisQueue == nil {
		return
	}
	if err := a.opts.AnalysisQueue.Bury(ctx, env.ID, reason); err != nil {
		a.log().Error().Err(err).Str("message_id", env.ID).Msg("Bury failed")
	}
}

func (a *Analysis) log() arbor.ILogger {
	if a.opts.Logger != nil {
		return a.opts.Logger
	}
	return common.GetLogger()
}
