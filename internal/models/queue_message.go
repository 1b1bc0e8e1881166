package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// Queue names for the pipeline stages. The OCR queue is consumed by the
// external OCR provider; its results come back through the analysis queue.
const (
	QueueCrawl    = "crawl"
	QueueOCR      = "ocr"
	QueueAnalysis = "analysis"
	QueueWebhook  = "webhook"
)

// CrawlMessage is the crawl-queue payload. It is self-describing: an executor
// rebuilds the spider from the message alone, never from out-of-band state.
type CrawlMessage struct {
	SpiderID    string          `json:"spiderId"`
	TerritoryID string          `json:"territoryId"`
	SpiderType  SpiderType      `json:"spiderType"`
	Config      json.RawMessage `json:"config"`
	DateRange   DateRange       `json:"dateRange"`
}

// NewCrawlMessage builds the payload for one city over one window
func NewCrawlMessage(cfg SpiderConfig, window DateRange) (CrawlMessage, error) {
	var raw json.RawMessage
	if cfg.Config != nil {
		data, err := json.Marshal(cfg.Config)
		if err != nil {
			return CrawlMessage{}, fmt.Errorf("marshal platform config for %s: %w", cfg.ID, err)
		}
		raw = data
	}
	return CrawlMessage{
		SpiderID:    cfg.ID,
		TerritoryID: cfg.TerritoryID,
		SpiderType:  cfg.SpiderType,
		Config:      raw,
		DateRange:   window,
	}, nil
}

// SpiderConfig reconstructs the registry entry carried by the message
func (m CrawlMessage) SpiderConfig() (SpiderConfig, error) {
	cfg := SpiderConfig{
		ID:          m.SpiderID,
		TerritoryID: m.TerritoryID,
		SpiderType:  m.SpiderType,
	}
	if !m.SpiderType.IsValid() {
		return cfg, fmt.Errorf("unknown spiderType %q in crawl message", m.SpiderType)
	}
	if len(m.Config) > 0 {
		parsed, err := UnmarshalPlatformConfig(m.Config)
		if err != nil {
			return cfg, err
		}
		cfg.Config = parsed
	}
	return cfg, nil
}

// OCRMessage is the OCR-queue payload: one gazette awaiting text extraction
type OCRMessage struct {
	Gazette  Gazette `json:"gazette"`
	SpiderID string  `json:"spiderId"`
}

// WebhookMessage is the webhook-queue payload consumed by the delivery worker
type WebhookMessage struct {
	MessageID      string          `json:"messageId"`
	SubscriptionID string          `json:"subscriptionId"`
	Notification   json.RawMessage `json:"notification"`
	Attempts       int             `json:"attempts,omitempty"`
}
