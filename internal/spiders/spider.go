package spiders

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/httpclient"
	"github.com/ternarybob/diario/internal/models"
)

// Spider is the uniform crawl contract implemented by one adapter per
// publishing platform. Crawl discovers every gazette the platform published
// inside the requested window; a zero-length result is legitimate.
// Constructors do no I/O.
type Spider interface {
	Crawl(ctx context.Context) ([]models.Gazette, error)
	RequestCount() int
}

// Deps carries the capabilities an adapter is allowed to use. Adapters never
// open their own connections; all HTTP goes through the counting client.
type Deps struct {
	Client  *httpclient.Client
	Browser Renderer
	Logger  arbor.ILogger
}

// Renderer is the out-of-process browser capability used by JS-only
// platforms. Nil means no browser is available.
type Renderer interface {
	// RenderTable navigates to a URL, waits for the given selector and
	// returns the rendered rows as text cell matrices.
	RenderTable(ctx context.Context, url, rowSelector string) ([][]string, error)
}

// base holds the state every adapter shares: the immutable configuration,
// the effective window (requested window clamped to the platform's first
// publication date) and the counting HTTP client.
type base struct {
	cfg     models.SpiderConfig
	window  models.DateRange
	client  *httpclient.Client
	logger  arbor.ILogger
	start   time.Time
	base0   int
	renders int // browser navigations; counted as outbound attempts
}

func newBase(cfg models.SpiderConfig, window models.DateRange, deps Deps) base {
	effective := window
	if !cfg.StartDate.IsZero() {
		effective = window.ClampStart(cfg.StartDate)
	}
	b := base{
		cfg:    cfg,
		window: effective,
		client: deps.Client,
		logger: deps.Logger,
		start:  time.Now(),
	}
	if deps.Client != nil {
		b.base0 = deps.Client.RequestCount()
	}
	return b
}

// RequestCount reports the outbound HTTP attempts made by this adapter,
// browser navigations included
func (b *base) RequestCount() int {
	count := b.renders
	if b.client != nil {
		count += b.client.RequestCount() - b.base0
	}
	return count
}

// gazette stamps a record with the adapter's territory and scrape time
func (b *base) gazette(date models.Date, fileURL string) models.Gazette {
	return models.Gazette{
		TerritoryID: b.cfg.TerritoryID,
		Date:        date,
		FileURL:     fileURL,
		Power:       models.PowerExecutive,
		ScrapedAt:   time.Now().UTC(),
	}
}

// keep reports whether a record's date lies inside the effective window and
// is not in the future. Remotes routinely return neighbours of the requested
// range; adapters must drop them.
func (b *base) keep(date models.Date) bool {
	if date.After(models.Today()) {
		return false
	}
	return b.window.Contains(date)
}

// emptyWindow reports whether clamping to the platform start date left
// nothing to crawl.
func (b *base) emptyWindow() bool {
	return b.window.Start.After(b.window.End)
}
