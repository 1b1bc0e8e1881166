package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
)

// Handler consumes one delivered envelope. Returning nil acks the message;
// returning an error leaves it invisible until the visibility timeout expires
// and it is redelivered. Handlers that know retrying is pointless should bury
// the message themselves and return nil.
type Handler func(ctx context.Context, env *Envelope) error

// Worker polls a queue with a bounded pool of goroutines
type Worker struct {
	queue        *BadgerQueue
	handler      Handler
	concurrency  int
	pollInterval time.Duration
	logger       arbor.ILogger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewWorker builds a polling worker for a queue
func NewWorker(queue *BadgerQueue, handler Handler, concurrency int, pollInterval time.Duration, logger arbor.ILogger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		queue:        queue,
		handler:      handler,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Start launches the polling goroutines. Safe to call once.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop(runCtx, i)
	}

	if w.logger != nil {
		w.logger.Info().
			Str("queue", w.queue.Name()).
			Int("concurrency", w.concurrency).
			Msg("Queue worker started")
	}
}

// Stop cancels polling and waits for in-flight handlers to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context, slot int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		// Drain everything visible before sleeping
		for {
			if ctx.Err() != nil {
				return
			}
			env, err := w.queue.Receive(ctx)
			if err != nil {
				if !errors.Is(err, models.ErrNoMessage) && w.logger != nil {
					w.logger.Error().Err(err).Str("queue", w.queue.Name()).Msg("Queue receive failed")
				}
				break
			}
			w.handle(ctx, env, slot)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) handle(ctx context.Context, env *Envelope, slot int) {
	if err := w.handler(ctx, env); err != nil {
		if w.logger != nil {
			w.logger.Warn().
				Err(err).
				Str("queue", w.queue.Name()).
				Str("message_id", env.ID).
				Int("receive_count", env.ReceiveCount).
				Int("worker", slot).
				Msg("Message handler failed; awaiting redelivery")
		}
		return
	}

	if err := w.queue.Ack(ctx, env.ID); err != nil && w.logger != nil {
		w.logger.Error().
			Err(err).
			Str("queue", w.queue.Name()).
			Str("message_id", env.ID).
			Msg("Ack failed; message will be redelivered")
	}
}
