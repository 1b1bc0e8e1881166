package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
	"github.com/ternarybob/diario/internal/registry"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testQueue(t *testing.T, db *badger.DB, name string) *queue.BadgerQueue {
	t.Helper()
	q, err := queue.NewBadgerQueue(db, name, queue.Options{})
	require.NoError(t, err)
	return q
}

func seedRegistry(t *testing.T, n int) *registry.Registry {
	t.Helper()
	entries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, fmt.Sprintf(
			`{"id": "ma_city_%02d", "territoryId": "21001%02d", "spiderType": "siganet",
			  "config": {"type": "siganet", "baseUrl": "http://diario.example"}}`, i, i))
	}
	dir := t.TempDir()
	cityJSON := "[" + strings.Join(entries, ",") + "]"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ma.json"), []byte(cityJSON), 0644))

	reg := registry.New(nil)
	require.NoError(t, reg.LoadDir(dir))
	return reg
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// flakyEnqueuer fails bulk writes outright and individual writes after the
// first n, exercising the partial-success path.
type flakyEnqueuer struct {
	allow int
	sent  int
}

func (f *flakyEnqueuer) Enqueue(ctx context.Context, body any, dedupKey string) (bool, error) {
	if f.sent >= f.allow {
		return false, models.NewQueueEnqueueError("enqueue", errors.New("disk full"))
	}
	f.sent++
	return true, nil
}

func (f *flakyEnqueuer) EnqueueBatch(ctx context.Context, bodies []any) error {
	return models.NewQueueEnqueueError("bulk enqueue", errors.New("disk full"))
}

func TestCrawlHandlerAllCities(t *testing.T) {
	reg := seedRegistry(t, 3)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 4, nil)

	rec := httptest.NewRecorder()
	h.CrawlHandler(rec, httptest.NewRequest("POST", "/crawl", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp crawlResponse
	decodeResponse(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.TasksEnqueued)
	assert.Len(t, resp.Cities, 3)
	assert.Zero(t, resp.FailedCount)
	assert.Empty(t, resp.Error)

	pending, _, err := crawl.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestCrawlHandlerNamedCities(t *testing.T) {
	reg := seedRegistry(t, 3)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 4, nil)

	body := `{"cities": ["ma_city_01"], "startDate": "2024-03-01", "endDate": "2024-03-07"}`
	rec := httptest.NewRecorder()
	h.CrawlHandler(rec, httptest.NewRequest("POST", "/crawl", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp crawlResponse
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 1, resp.TasksEnqueued)
	assert.Equal(t, []string{"ma_city_01"}, resp.Cities)
}

func TestCrawlHandlerUnknownCity(t *testing.T) {
	reg := seedRegistry(t, 1)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 4, nil)

	rec := httptest.NewRecorder()
	h.CrawlHandler(rec, httptest.NewRequest("POST", "/crawl", strings.NewReader(`{"cities": ["nope"]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCrawlHandlerRejectsGet(t *testing.T) {
	reg := seedRegistry(t, 1)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 4, nil)

	rec := httptest.NewRecorder()
	h.CrawlHandler(rec, httptest.NewRequest("GET", "/crawl", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCrawlHandlerPartialEnqueue(t *testing.T) {
	reg := seedRegistry(t, 3)
	h := NewCrawlHandler(queue.NewDispatcher(reg, &flakyEnqueuer{allow: 2}, nil), reg, 4, nil)

	rec := httptest.NewRecorder()
	h.CrawlHandler(rec, httptest.NewRequest("POST", "/crawl", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var resp crawlResponse
	decodeResponse(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.TasksEnqueued)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Len(t, resp.Cities, 2)
	assert.Contains(t, resp.Error, "could not be enqueued")
}

func TestCitiesHandlerRequiresCitiesAndDates(t *testing.T) {
	reg := seedRegistry(t, 2)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 4, nil)

	for name, body := range map[string]string{
		"no cities": `{"startDate": "2024-03-01", "endDate": "2024-03-07"}`,
		"no dates":  `{"cities": ["ma_city_00"]}`,
		"one date":  `{"cities": ["ma_city_00"], "startDate": "2024-03-01"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CitiesHandler(rec, httptest.NewRequest("POST", "/crawl/cities", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	good := `{"cities": ["ma_city_00"], "startDate": "2024-03-01", "endDate": "2024-03-07"}`
	h.CitiesHandler(rec, httptest.NewRequest("POST", "/crawl/cities", strings.NewReader(good)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTodayYesterdayHandler(t *testing.T) {
	reg := seedRegistry(t, 3)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 2, nil)

	rec := httptest.NewRecorder()
	h.TodayYesterdayHandler(rec, httptest.NewRequest("POST", "/crawl/today-yesterday", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp crawlResponse
	decodeResponse(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.TasksEnqueued)
	// 3 cities at ~10 s each over 2 workers rounds up to one minute
	assert.Equal(t, 1, resp.EstimatedTimeMinutes)
}

func TestTodayYesterdayHandlerPlatformFilter(t *testing.T) {
	reg := seedRegistry(t, 2)
	crawl := testQueue(t, testDB(t), "crawl")
	h := NewCrawlHandler(queue.NewDispatcher(reg, crawl, nil), reg, 4, nil)

	rec := httptest.NewRecorder()
	h.TodayYesterdayHandler(rec, httptest.NewRequest("POST", "/crawl/today-yesterday",
		strings.NewReader(`{"platform": "siganet"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp crawlResponse
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 2, resp.TasksEnqueued)

	rec = httptest.NewRecorder()
	h.TodayYesterdayHandler(rec, httptest.NewRequest("POST", "/crawl/today-yesterday",
		strings.NewReader(`{"platform": "bogus"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpidersListHandler(t *testing.T) {
	h := NewSpidersHandler(seedRegistry(t, 3), nil)

	rec := httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest("GET", "/spiders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Total   int             `json:"total"`
		Spiders []spiderSummary `json:"spiders"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Spiders, 3)
	assert.Equal(t, "ma_city_00", resp.Spiders[0].ID)
	assert.Equal(t, models.SpiderSiganet, resp.Spiders[0].SpiderType)
}

func TestSpidersListHandlerTypeFilter(t *testing.T) {
	h := NewSpidersHandler(seedRegistry(t, 2), nil)

	rec := httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest("GET", "/spiders?type=siganet", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Total int `json:"total"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 2, resp.Total)

	rec = httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest("GET", "/spiders?type=doem", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeResponse(t, rec, &resp)
	assert.Zero(t, resp.Total)

	rec = httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest("GET", "/spiders?type=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexHandler(t *testing.T) {
	reg := seedRegistry(t, 2)
	h := NewStatsHandler(reg, nil, nil)

	rec := httptest.NewRecorder()
	h.IndexHandler(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Service           string `json:"service"`
		Version           string `json:"version"`
		SpidersRegistered int    `json:"spidersRegistered"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "diario", resp.Service)
	assert.NotEmpty(t, resp.Version)
	assert.Equal(t, 2, resp.SpidersRegistered)

	rec = httptest.NewRecorder()
	h.IndexHandler(rec, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsHandler(t *testing.T) {
	reg := seedRegistry(t, 3)
	db := testDB(t)
	crawl := testQueue(t, db, "crawl")
	ocr := testQueue(t, db, "ocr")
	h := NewStatsHandler(reg, []*queue.BadgerQueue{crawl, ocr}, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := crawl.Enqueue(ctx, map[string]int{"n": i}, "")
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	h.StatsHandler(rec, httptest.NewRequest("GET", "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Total              int            `json:"total"`
		Platforms          map[string]int `json:"platforms"`
		ExpectedProcessing int            `json:"expectedProcessing"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, map[string]int{"siganet": 3}, resp.Platforms)
	assert.Equal(t, 2, resp.ExpectedProcessing)
}

func TestQueueHealthHandler(t *testing.T) {
	reg := seedRegistry(t, 1)
	db := testDB(t)
	crawl := testQueue(t, db, "crawl")
	h := NewStatsHandler(reg, []*queue.BadgerQueue{crawl}, nil)

	rec := httptest.NewRecorder()
	h.QueueHealthHandler(rec, httptest.NewRequest("GET", "/health/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string                      `json:"status"`
		Queues map[string]queue.QueueStats `json:"queues"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)

	ctx := context.Background()
	_, err := crawl.Enqueue(ctx, "poison", "")
	require.NoError(t, err)
	env, err := crawl.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, crawl.Bury(ctx, env.ID, "unparseable"))

	rec = httptest.NewRecorder()
	h.QueueHealthHandler(rec, httptest.NewRequest("GET", "/health/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, 1, resp.Queues["crawl"].Dead)
}
