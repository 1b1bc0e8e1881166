package httpclient

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/diario/internal/models"
)

// HostLimiter applies per-host token-bucket rate limiting. Requests queue
// when a bucket is drained; waiting longer than the starvation window yields
// a RateLimited error instead of blocking indefinitely.
type HostLimiter struct {
	mu          sync.RWMutex
	limiters    map[string]*rate.Limiter
	defaultRate rate.Limit
	overrides   map[string]rate.Limit
	starvation  time.Duration
}

// NewHostLimiter builds a limiter with a default requests/second rate and
// per-host overrides keyed by hostname.
func NewHostLimiter(defaultRPS float64, overrides map[string]float64, starvation time.Duration) *HostLimiter {
	if defaultRPS <= 0 {
		defaultRPS = 5
	}
	if starvation <= 0 {
		starvation = 15 * time.Second
	}
	ov := make(map[string]rate.Limit, len(overrides))
	for host, rps := range overrides {
		ov[host] = rate.Limit(rps)
	}
	return &HostLimiter{
		limiters:    make(map[string]*rate.Limiter),
		defaultRate: rate.Limit(defaultRPS),
		overrides:   ov,
		starvation:  starvation,
	}
}

// Wait blocks until the host's bucket grants a token or the starvation
// window elapses.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}

	limiter := h.limiterFor(host)

	waitCtx, cancel := context.WithTimeout(ctx, h.starvation)
	defer cancel()

	if err := limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return models.NewRateLimitedError("rate limit wait for " + host)
	}
	return nil
}

// RateFor returns the configured requests/second for a host
func (h *HostLimiter) RateFor(host string) float64 {
	if limit, ok := h.overrides[host]; ok {
		return float64(limit)
	}
	return float64(h.defaultRate)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if limiter, ok = h.limiters[host]; ok {
		return limiter
	}

	limit := h.defaultRate
	if override, ok := h.overrides[host]; ok {
		limit = override
	}
	// Burst of 1 keeps request spacing even; gazette hosts throttle
	// aggressively on bursts.
	limiter = rate.NewLimiter(limit, 1)
	h.limiters[host] = limiter
	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
