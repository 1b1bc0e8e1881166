package spiders

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ChromeRenderer drives a headless Chrome instance for platforms whose
// listings only exist after client-side rendering. One renderer is shared by
// all browser-backed adapters; each RenderTable call gets its own tab.
type ChromeRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	logger      arbor.ILogger
}

// NewChromeRenderer starts a headless browser allocator. Returns an error
// when no Chrome binary is installed so callers can degrade to Unavailable.
func NewChromeRenderer(logger arbor.ILogger) (*ChromeRenderer, error) {
	if !chromeAvailable() {
		return nil, fmt.Errorf("no chrome binary found in PATH")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close shuts the browser allocator down
func (r *ChromeRenderer) Close() {
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

// RenderTable navigates to url, waits for rowSelector to appear and returns
// the text content of each matched row's cells.
func (r *ChromeRenderer) RenderTable(ctx context.Context, url, rowSelector string) ([][]string, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx)
	defer tabCancel()

	// Tie the tab lifetime to the caller's deadline
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}

	extract := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(function(row) {
		return Array.from(row.querySelectorAll("td, a")).map(function(cell) {
			var href = cell.getAttribute && cell.getAttribute("href");
			return href ? href : cell.textContent.trim();
		});
	})`, rowSelector)

	var rows [][]string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(rowSelector, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(extract, &rows),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	if r.logger != nil {
		r.logger.Debug().Str("url", url).Int("rows", len(rows)).Msg("Rendered table")
	}
	return rows, nil
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
