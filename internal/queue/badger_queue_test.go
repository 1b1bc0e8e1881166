package queue

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/models"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type testPayload struct {
	Value string `json:"value"`
}

func TestEnqueueReceiveAck(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "crawl", Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)
	ctx := context.Background()

	enqueued, err := q.Enqueue(ctx, testPayload{Value: "first"}, "")
	require.NoError(t, err)
	assert.True(t, enqueued)

	env, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.ReceiveCount)

	var payload testPayload
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, "first", payload.Value)

	// Claimed message is invisible to a second receiver
	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	require.NoError(t, q.Ack(ctx, env.ID))

	pending, dead, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, dead)
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "crawl", Options{VisibilityTimeout: 50 * time.Millisecond, MaxReceive: 5})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Enqueue(ctx, testPayload{Value: "redeliver"}, "")
	require.NoError(t, err)

	first, err := q.Receive(ctx)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	second, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReceiveCount)
}

func TestMaxReceiveMovesToDeadLetter(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "crawl", Options{VisibilityTimeout: time.Millisecond, MaxReceive: 2})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Enqueue(ctx, testPayload{Value: "poison"}, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := q.Receive(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	// Third receive finds the message exhausted and dead-letters it
	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	pending, dead, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 1, dead)

	letters, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)

	var payload testPayload
	require.NoError(t, letters[0].Decode(&payload))
	assert.Equal(t, "poison", payload.Value)
}

func TestBurySkipsRemainingRetries(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "crawl", Options{VisibilityTimeout: time.Minute, MaxReceive: 5})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Enqueue(ctx, testPayload{Value: "hopeless"}, "")
	require.NoError(t, err)

	env, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Bury(ctx, env.ID, "parse failure"))

	pending, dead, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 1, dead)
}

func TestDedupKeySuppressesDuplicates(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "ocr", Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)
	ctx := context.Background()

	key := "2927408|2024-03-12|https://doem.org.br/files/2410.pdf"

	first, err := q.Enqueue(ctx, testPayload{Value: "a"}, key)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := q.Enqueue(ctx, testPayload{Value: "a again"}, key)
	require.NoError(t, err)
	assert.False(t, second, "same dedup key is dropped")

	other, err := q.Enqueue(ctx, testPayload{Value: "b"}, key+"-other")
	require.NoError(t, err)
	assert.True(t, other)

	pending, _, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

func TestEnqueueBatchAllOrNothing(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "crawl", Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)
	ctx := context.Background()

	bodies := []any{
		testPayload{Value: "one"},
		testPayload{Value: "two"},
		testPayload{Value: "three"},
	}
	require.NoError(t, q.EnqueueBatch(ctx, bodies))

	pending, _, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestWorkerProcessesAndAcks(t *testing.T) {
	q, err := NewBadgerQueue(testDB(t), "crawl", Options{VisibilityTimeout: time.Minute, MaxReceive: 3})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(ctx, testPayload{Value: "job"}, "")
		require.NoError(t, err)
	}

	processed := make(chan string, 5)
	worker := NewWorker(q, func(_ context.Context, env *Envelope) error {
		processed <- env.ID
		return nil
	}, 2, 10*time.Millisecond, nil)

	worker.Start(ctx)
	defer worker.Stop()

	seen := map[string]bool{}
	timeout := time.After(3 * time.Second)
	for len(seen) < 5 {
		select {
		case id := <-processed:
			seen[id] = true
		case <-timeout:
			t.Fatalf("only %d of 5 messages processed", len(seen))
		}
	}

	require.True(t, WaitDrained(ctx, q, 2*time.Second))
}
