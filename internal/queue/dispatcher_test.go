package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/registry"
)

// seedRegistry loads n doem spiders with sequential ids
func seedRegistry(t *testing.T, n int) *registry.Registry {
	t.Helper()
	dir := t.TempDir()

	entries := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, map[string]any{
			"id":          fmt.Sprintf("city_%04d", i),
			"name":        fmt.Sprintf("City %d", i),
			"territoryId": fmt.Sprintf("29%05d", i),
			"spiderType":  "doem",
			"config":      map[string]any{"type": "doem", "stateCityPath": fmt.Sprintf("ba/city%d", i)},
		})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.json"), data, 0644))

	reg := registry.New(nil)
	require.NoError(t, reg.LoadDir(dir))
	return reg
}

func newTestDispatcher(t *testing.T, n int) (*Dispatcher, *BadgerQueue) {
	t.Helper()
	q, err := NewBadgerQueue(testDB(t), models.QueueCrawl, Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)
	return NewDispatcher(seedRegistry(t, n), q, nil), q
}

func TestSubmitAllBatchesLargeRegistry(t *testing.T) {
	d, q := newTestDispatcher(t, 250)
	ctx := context.Background()

	result, err := d.Submit(ctx, DispatchRequest{All: true})
	require.NoError(t, err)

	assert.Equal(t, 250, result.Total)
	assert.Equal(t, 250, result.Enqueued)
	assert.Zero(t, result.Failed)
	assert.True(t, result.AllSucceeded())

	pending, _, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, pending)
}

func TestSubmitDefaultsToThirtyDayWindow(t *testing.T) {
	d, q := newTestDispatcher(t, 1)
	ctx := context.Background()

	result, err := d.Submit(ctx, DispatchRequest{All: true})
	require.NoError(t, err)
	assert.Equal(t, models.Today().AddDays(-DefaultWindowDays).String(), result.Window.Start.String())
	assert.Equal(t, models.Today().String(), result.Window.End.String())

	env, err := q.Receive(ctx)
	require.NoError(t, err)
	var msg models.CrawlMessage
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, models.Today().AddDays(-DefaultWindowDays).String(), msg.DateRange.Start.String())
	assert.Equal(t, models.Today().String(), msg.DateRange.End.String())
}

func TestSubmitExplicitWindowAndIDs(t *testing.T) {
	d, q := newTestDispatcher(t, 5)
	ctx := context.Background()

	result, err := d.Submit(ctx, DispatchRequest{
		SpiderIDs: []string{"city_0001", "city_0003"},
		StartDate: models.NewDate(2024, 3, 1),
		EndDate:   models.NewDate(2024, 3, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enqueued)

	env, err := q.Receive(ctx)
	require.NoError(t, err)
	var msg models.CrawlMessage
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, "2024-03-01..2024-03-31", msg.DateRange.String())

	// The carried config survives the round trip through the queue
	cfg, err := msg.SpiderConfig()
	require.NoError(t, err)
	assert.Equal(t, models.SpiderDoem, cfg.SpiderType)
}

func TestSubmitUnknownIDFailsWhole(t *testing.T) {
	d, _ := newTestDispatcher(t, 2)

	_, err := d.Submit(context.Background(), DispatchRequest{SpiderIDs: []string{"city_0000", "ghost"}})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnknownSpider, models.KindOf(err))
}

func TestSubmitRejectsEmptySelection(t *testing.T) {
	d, _ := newTestDispatcher(t, 2)

	_, err := d.Submit(context.Background(), DispatchRequest{})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindInputInvalid, models.KindOf(err))
}

func TestSubmitRejectsInvertedWindow(t *testing.T) {
	d, _ := newTestDispatcher(t, 2)

	_, err := d.Submit(context.Background(), DispatchRequest{
		All:       true,
		StartDate: models.NewDate(2024, 4, 1),
		EndDate:   models.NewDate(2024, 3, 1),
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindInputInvalid, models.KindOf(err))
}

func TestSubmitTodayYesterday(t *testing.T) {
	d, q := newTestDispatcher(t, 3)
	ctx := context.Background()

	result, err := d.SubmitTodayYesterday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Enqueued)
	assert.Equal(t, 2, result.Window.Days())

	env, err := q.Receive(ctx)
	require.NoError(t, err)
	var msg models.CrawlMessage
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, models.Today().String(), msg.DateRange.End.String())
}

// flakyEnqueuer fails bulk writes and rejects individual spiders by index
type flakyEnqueuer struct {
	inner    *BadgerQueue
	rejected map[string]bool
}

func (f *flakyEnqueuer) EnqueueBatch(ctx context.Context, bodies []any) error {
	for _, body := range bodies {
		msg := body.(models.CrawlMessage)
		if f.rejected[msg.SpiderID] {
			return models.NewQueueEnqueueError("bulk write refused", nil)
		}
	}
	return f.inner.EnqueueBatch(ctx, bodies)
}

func (f *flakyEnqueuer) Enqueue(ctx context.Context, body any, dedupKey string) (bool, error) {
	msg := body.(models.CrawlMessage)
	if f.rejected[msg.SpiderID] {
		return false, models.NewQueueEnqueueError("enqueue refused for "+msg.SpiderID, nil)
	}
	return f.inner.Enqueue(ctx, body, dedupKey)
}

func TestSubmitPartialFailureFallsBackPerMessage(t *testing.T) {
	inner, err := NewBadgerQueue(testDB(t), models.QueueCrawl, Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)

	// 25 of 250 spiders are refused: their batches fail in bulk, fall back
	// to per-message submission, and only the refused ones stay failed.
	rejected := map[string]bool{}
	for i := 0; i < 250; i += 10 {
		rejected[fmt.Sprintf("city_%04d", i)] = true
	}
	flaky := &flakyEnqueuer{inner: inner, rejected: rejected}
	d := NewDispatcher(seedRegistry(t, 250), flaky, nil)

	result, err := d.Submit(context.Background(), DispatchRequest{All: true})
	require.NoError(t, err)

	assert.Equal(t, 250, result.Total)
	assert.Equal(t, 225, result.Enqueued)
	assert.Equal(t, 25, result.Failed)
	assert.Len(t, result.Failures, 25)
	assert.False(t, result.AllSucceeded())
	assert.False(t, result.AllFailed())

	pending, _, err := inner.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 225, pending)
}

// recordingEnqueuer tracks the size of every bulk write
type recordingEnqueuer struct {
	inner   *BadgerQueue
	batches []int
}

func (r *recordingEnqueuer) EnqueueBatch(ctx context.Context, bodies []any) error {
	r.batches = append(r.batches, len(bodies))
	return r.inner.EnqueueBatch(ctx, bodies)
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, body any, dedupKey string) (bool, error) {
	return r.inner.Enqueue(ctx, body, dedupKey)
}

func TestSubmitHonorsConfiguredBatchSize(t *testing.T) {
	inner, err := NewBadgerQueue(testDB(t), models.QueueCrawl, Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)

	recorder := &recordingEnqueuer{inner: inner}
	d := NewDispatcher(seedRegistry(t, 25), recorder, nil)
	d.BatchSize = 10

	result, err := d.Submit(context.Background(), DispatchRequest{All: true})
	require.NoError(t, err)
	assert.Equal(t, 25, result.Enqueued)
	assert.Equal(t, []int{10, 10, 5}, recorder.batches)
}

func TestSubmitBatchSizeCappedAtCeiling(t *testing.T) {
	inner, err := NewBadgerQueue(testDB(t), models.QueueCrawl, Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)

	recorder := &recordingEnqueuer{inner: inner}
	d := NewDispatcher(seedRegistry(t, 120), recorder, nil)
	d.BatchSize = 500

	_, err = d.Submit(context.Background(), DispatchRequest{All: true})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 20}, recorder.batches)
}

func TestStatsFor(t *testing.T) {
	db := testDB(t)
	crawl, err := NewBadgerQueue(db, models.QueueCrawl, Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)
	ocr, err := NewBadgerQueue(db, models.QueueOCR, Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = crawl.Enqueue(ctx, testPayload{Value: "x"}, "")
	require.NoError(t, err)

	stats, err := StatsFor(ctx, crawl, ocr)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[models.QueueCrawl].Pending)
	assert.Zero(t, stats[models.QueueOCR].Pending)
}
