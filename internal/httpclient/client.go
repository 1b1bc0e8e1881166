package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
)

// Client is a rate-limited, retrying HTTP client that counts every outbound
// attempt. Spiders report its counter as their requestCount.
type Client struct {
	http      *http.Client
	limiter   *HostLimiter
	retry     *RetryPolicy
	userAgent string
	logger    arbor.ILogger
	requests  atomic.Int64
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Limiter   *HostLimiter
	Retry     *RetryPolicy
	Logger    arbor.ILogger
	Transport http.RoundTripper
}

// New creates a rate-limited client
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "diario-crawler/1.0"
	}
	if opts.Limiter == nil {
		opts.Limiter = NewHostLimiter(5, nil, 15*time.Second)
	}
	if opts.Retry == nil {
		opts.Retry = NewRetryPolicy()
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		limiter:   opts.Limiter,
		retry:     opts.Retry,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// RequestCount returns the number of outbound HTTP attempts made so far.
// Monotonically non-decreasing; retries count individually.
func (c *Client) RequestCount() int {
	return int(c.requests.Load())
}

// Do executes one request under rate limiting and the retry policy.
// The response body is fully read and returned so callers never hold
// connections open across suspension points.
func (c *Client) Do(ctx context.Context, method, rawURL string, body func() (io.Reader, string)) ([]byte, error) {
	op := fmt.Sprintf("%s %s", method, rawURL)

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.CalculateBackoff(attempt - 1)
			if c.logger != nil {
				c.logger.Debug().
					Int("attempt", attempt+1).
					Dur("backoff", backoff).
					Str("url", rawURL).
					Msg("Retrying request after backoff")
			}
			select {
			case <-ctx.Done():
				return nil, models.NewTimeoutError(op, ctx.Err())
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}

		data, status, err := c.attempt(ctx, method, rawURL, body)
		if err == nil && status < 400 {
			return data, nil
		}

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, models.NewTimeoutError(op, ctx.Err())
			}
			lastErr = models.NewNetworkError(op, err)
			if !c.retry.ShouldRetry(attempt+1, 0, err) {
				return nil, lastErr
			}
		default:
			lastErr = models.NewHTTPStatusError(op, status)
			if !c.retry.ShouldRetry(attempt+1, status, nil) {
				return nil, lastErr
			}
		}
	}

	return nil, lastErr
}

// attempt performs a single HTTP round trip, counting it
func (c *Client) attempt(ctx context.Context, method, rawURL string, body func() (io.Reader, string)) ([]byte, int, error) {
	var reader io.Reader
	var contentType string
	if body != nil {
		reader, contentType = body()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.requests.Add(1)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// Get fetches a URL and returns the response body
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil)
}

// GetJSON fetches a URL and decodes the JSON response into v
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	data, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return models.NewParseError("decode json from "+rawURL, err)
	}
	return nil
}

// GetDocument fetches a URL and parses the response as HTML
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	data, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, models.NewParseError("parse html from "+rawURL, err)
	}
	return doc, nil
}

// PostForm posts url-encoded values and returns the response body
func (c *Client) PostForm(ctx context.Context, rawURL string, values url.Values) ([]byte, error) {
	encoded := values.Encode()
	return c.Do(ctx, http.MethodPost, rawURL, func() (io.Reader, string) {
		return strings.NewReader(encoded), "application/x-www-form-urlencoded"
	})
}

// PostFormDocument posts url-encoded values and parses the response as HTML
func (c *Client) PostFormDocument(ctx context.Context, rawURL string, values url.Values) (*goquery.Document, error) {
	data, err := c.PostForm(ctx, rawURL, values)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, models.NewParseError("parse html from "+rawURL, err)
	}
	return doc, nil
}

// PostJSON posts a JSON body and decodes the JSON response into v
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload, v any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return models.NewInputError("encode json payload for "+rawURL, err)
	}
	data, err := c.Do(ctx, http.MethodPost, rawURL, func() (io.Reader, string) {
		return strings.NewReader(string(encoded)), "application/json"
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return models.NewParseError("decode json from "+rawURL, err)
	}
	return nil
}

// Head issues a HEAD request without retries; used by the content validator
// to probe file URLs.
func (c *Client) Head(ctx context.Context, rawURL string, timeout time.Duration) (int, error) {
	headCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(headCtx, rawURL); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(headCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, models.NewInputError("build head request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.requests.Add(1)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, models.NewNetworkError("HEAD "+rawURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
