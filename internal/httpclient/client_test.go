package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/models"
)

func fastClient(retry *RetryPolicy) *Client {
	return New(Options{
		Timeout: 5 * time.Second,
		Limiter: NewHostLimiter(1000, nil, time.Second),
		Retry:   retry,
	})
}

func quickRetry() *RetryPolicy {
	p := NewRetryPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 5 * time.Millisecond
	return p
}

func TestGetCountsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "diario-crawler/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := fastClient(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := c.Get(ctx, server.URL)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(data))
	}
	assert.Equal(t, 3, c.RequestCount())
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	c := fastClient(quickRetry())
	data, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(data))
	assert.Equal(t, 3, c.RequestCount(), "each retry attempt is counted")
}

func TestRetryHonorsConfiguredAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 5 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	policy := quickRetry()
	policy.MaxAttempts = 5

	c := fastClient(policy)
	_, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 5, c.RequestCount())
}

func TestNoRetryOnNotFound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := fastClient(quickRetry())
	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindHTTPStatus, models.KindOf(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	var out map[string]any
	err := fastClient(nil).GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindParse, models.KindOf(err))
}

func TestHeadProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := fastClient(nil)
	status, err := c.Head(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, c.RequestCount())
}

func TestHostLimiterStarvation(t *testing.T) {
	limiter := NewHostLimiter(0.001, nil, 50*time.Millisecond)
	ctx := context.Background()

	// first token is free, the second cannot arrive inside the window
	require.NoError(t, limiter.Wait(ctx, "https://doem.org.br/a"))
	err := limiter.Wait(ctx, "https://doem.org.br/b")
	require.Error(t, err)
	assert.Equal(t, models.ErrKindRateLimited, models.KindOf(err))
}

func TestHostLimiterOverrides(t *testing.T) {
	limiter := NewHostLimiter(5, map[string]float64{"doem.org.br": 3}, time.Second)

	assert.Equal(t, 3.0, limiter.RateFor("doem.org.br"))
	assert.Equal(t, 5.0, limiter.RateFor("example.org"))
}
