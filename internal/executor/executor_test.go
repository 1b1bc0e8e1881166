package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/httpclient"
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
	"github.com/ternarybob/diario/internal/registry"
	"github.com/ternarybob/diario/internal/storage"
)

const siganetBody = `[
	{"data":"2024-03-12","numero":"410","extra":false,"link":"/files/410.pdf"},
	{"data":"2024-03-13","numero":"411","extra":true,"link":"/files/411.pdf"}
]`

func fastClients() ClientFactory {
	return func() *httpclient.Client {
		return httpclient.New(httpclient.Options{
			Timeout: 5 * time.Second,
			Limiter: httpclient.NewHostLimiter(1000, nil, time.Second),
		})
	}
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func siganetMessage(t *testing.T, baseURL string) models.CrawlMessage {
	t.Helper()
	raw, err := json.Marshal(models.SiganetConfig{Type: models.SpiderSiganet, BaseURL: baseURL})
	require.NoError(t, err)
	window, err := models.NewDateRange(models.NewDate(2024, 3, 1), models.NewDate(2024, 3, 31))
	require.NoError(t, err)
	return models.CrawlMessage{
		SpiderID:    "ma_city",
		TerritoryID: "2100055",
		SpiderType:  models.SpiderSiganet,
		Config:      raw,
		DateRange:   window,
	}
}

func envelopeFor(t *testing.T, q *queue.BadgerQueue, msg models.CrawlMessage) *queue.Envelope {
	t.Helper()
	ctx := context.Background()
	_, err := q.Enqueue(ctx, msg, "")
	require.NoError(t, err)
	env, err := q.Receive(ctx)
	require.NoError(t, err)
	return env
}

func pipelineQueues(t *testing.T, store *storage.Store) (*queue.BadgerQueue, *queue.BadgerQueue) {
	t.Helper()
	crawl, err := queue.NewBadgerQueue(store.DB(), models.QueueCrawl, queue.Options{VisibilityTimeout: time.Minute, MaxReceive: 4})
	require.NoError(t, err)
	ocr, err := queue.NewBadgerQueue(store.DB(), models.QueueOCR, queue.Options{VisibilityTimeout: time.Minute, MaxReceive: 4})
	require.NoError(t, err)
	return crawl, ocr
}

func TestHandleForwardsGazettesToOCR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, siganetBody)
	}))
	defer server.Close()

	store := testStore(t)
	crawl, ocr := pipelineQueues(t, store)
	results := storage.NewResultStore(store)

	exec := New(Options{
		OCRQueue:   ocr,
		CrawlQueue: crawl,
		Results:    results,
		Clients:    fastClients(),
	})

	msg := siganetMessage(t, server.URL)
	env := envelopeFor(t, crawl, msg)
	ctx := context.Background()

	require.NoError(t, exec.Handle(ctx, env))
	require.NoError(t, crawl.Ack(ctx, env.ID))

	pending, _, err := ocr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	ocrEnv, err := ocr.Receive(ctx)
	require.NoError(t, err)
	var ocrMsg models.OCRMessage
	require.NoError(t, ocrEnv.Decode(&ocrMsg))
	assert.Equal(t, "ma_city", ocrMsg.SpiderID)
	assert.Equal(t, "2100055", ocrMsg.Gazette.TerritoryID)

	result, found, err := results.Get("ma_city")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, result.Succeeded())
	assert.Equal(t, 2, result.Stats.TotalFound)
	assert.Equal(t, 1, result.Stats.RequestCount)
}

func TestHandleDedupesRepeatedCrawls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, siganetBody)
	}))
	defer server.Close()

	store := testStore(t)
	crawl, ocr := pipelineQueues(t, store)

	exec := New(Options{OCRQueue: ocr, CrawlQueue: crawl, Clients: fastClients()})
	msg := siganetMessage(t, server.URL)
	ctx := context.Background()

	// The same window crawled twice: redelivery after a lost ack
	for i := 0; i < 2; i++ {
		env := envelopeFor(t, crawl, msg)
		require.NoError(t, exec.Handle(ctx, env))
		require.NoError(t, crawl.Ack(ctx, env.ID))
	}

	pending, _, err := ocr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending, "dedup key suppresses the second batch")
}

func TestHandleBuriesParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>this is not the json you wanted</html>")
	}))
	defer server.Close()

	store := testStore(t)
	crawl, ocr := pipelineQueues(t, store)
	results := storage.NewResultStore(store)

	exec := New(Options{OCRQueue: ocr, CrawlQueue: crawl, Results: results, Clients: fastClients()})
	env := envelopeFor(t, crawl, siganetMessage(t, server.URL))
	ctx := context.Background()

	require.NoError(t, exec.Handle(ctx, env), "parse failures are buried, not retried")

	_, dead, err := crawl.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dead)

	result, found, err := results.Get("ma_city")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, result.Succeeded())
	assert.Contains(t, result.Error, "parse_failure")
}

func TestHandleReturnsErrorForRetryableFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(400 * time.Millisecond)
		fmt.Fprint(w, siganetBody)
	}))
	defer server.Close()

	store := testStore(t)
	crawl, ocr := pipelineQueues(t, store)

	exec := New(Options{
		OCRQueue:     ocr,
		CrawlQueue:   crawl,
		Clients:      fastClients(),
		CrawlTimeout: 100 * time.Millisecond,
	})
	env := envelopeFor(t, crawl, siganetMessage(t, server.URL))

	err := exec.Handle(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindTimeout, models.KindOf(err))

	_, dead, statErr := crawl.Stats(context.Background())
	require.NoError(t, statErr)
	assert.Zero(t, dead, "retryable failures stay on the live queue")
}

func TestHandleRotatesToFallback(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, siganetBody)
	}))
	defer working.Close()

	dir := t.TempDir()
	cityJSON := fmt.Sprintf(`[
		{"id": "ma_city", "territoryId": "2100055", "spiderType": "siganet",
		 "config": {"type": "siganet", "baseUrl": %q}},
		{"id": "ma_city_fallback", "territoryId": "2100055", "spiderType": "siganet",
		 "config": {"type": "siganet", "baseUrl": %q}}
	]`, broken.URL, working.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ma.json"), []byte(cityJSON), 0644))

	reg := registry.New(nil)
	require.NoError(t, reg.LoadDir(dir))

	store := testStore(t)
	crawl, ocr := pipelineQueues(t, store)
	results := storage.NewResultStore(store)

	exec := New(Options{
		Registry:   reg,
		OCRQueue:   ocr,
		CrawlQueue: crawl,
		Results:    results,
		Clients:    fastClients(),
	})
	env := envelopeFor(t, crawl, siganetMessage(t, broken.URL))
	ctx := context.Background()

	require.NoError(t, exec.Handle(ctx, env))

	pending, _, err := ocr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending, "fallback spider delivered the gazettes")

	result, found, err := results.Get("ma_city")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, result.Succeeded())
}

type failingOCR struct{}

func (failingOCR) Enqueue(context.Context, any, string) (bool, error) {
	return false, models.NewQueueEnqueueError("ocr queue down", nil)
}

func TestHandleOCRFailureDoesNotFailAck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, siganetBody)
	}))
	defer server.Close()

	store := testStore(t)
	crawl, _ := pipelineQueues(t, store)

	exec := New(Options{OCRQueue: failingOCR{}, CrawlQueue: crawl, Clients: fastClients()})
	env := envelopeFor(t, crawl, siganetMessage(t, server.URL))

	assert.NoError(t, exec.Handle(context.Background(), env),
		"losing the OCR hand-off must not re-run the crawl")
}

func TestHandleBuriesUndecodableMessage(t *testing.T) {
	store := testStore(t)
	crawl, _ := pipelineQueues(t, store)
	ctx := context.Background()

	_, err := crawl.Enqueue(ctx, map[string]any{"spiderType": 42}, "")
	require.NoError(t, err)
	env, err := crawl.Receive(ctx)
	require.NoError(t, err)

	exec := New(Options{CrawlQueue: crawl, Clients: fastClients()})
	require.NoError(t, exec.Handle(ctx, env))

	_, dead, err := crawl.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dead)
}

func TestHandleDropsOutOfWindowGazettes(t *testing.T) {
	// Remote returns an edition outside the requested window; the adapter
	// filters it before validation ever sees it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"data":"2024-03-12","numero":"410","extra":false,"link":"/files/410.pdf"},
			{"data":"2024-06-01","numero":"500","extra":false,"link":"/files/500.pdf"}
		]`)
	}))
	defer server.Close()

	store := testStore(t)
	crawl, ocr := pipelineQueues(t, store)

	exec := New(Options{OCRQueue: ocr, CrawlQueue: crawl, Clients: fastClients()})
	env := envelopeFor(t, crawl, siganetMessage(t, server.URL))
	ctx := context.Background()

	require.NoError(t, exec.Handle(ctx, env))

	pending, _, err := ocr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}
