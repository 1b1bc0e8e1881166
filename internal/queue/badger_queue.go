package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ternarybob/diario/internal/models"
)

// Envelope wraps a message body with its delivery bookkeeping
type Envelope struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Body         json.RawMessage `json:"body"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAt    time.Time       `json:"visible_at"`
	ReceiveCount int             `json:"receive_count"`
	DedupKey     string          `json:"dedup_key,omitempty"`
}

// Decode unmarshals the body into v
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Body, v); err != nil {
		return models.NewParseError("decode queue message "+e.ID, err)
	}
	return nil
}

// Options tunes a queue's delivery behavior
type Options struct {
	VisibilityTimeout time.Duration
	MaxReceive        int
}

// BadgerQueue is a persistent at-least-once queue on BadgerDB. Messages are
// stored once and indexed by visibility time; receiving claims a message by
// pushing its visibility forward, and acking deletes it. A message received
// MaxReceive times without an ack moves to the dead-letter sink instead of
// being lost.
type BadgerQueue struct {
	db   *badger.DB
	name string
	opts Options
}

// NewBadgerQueue builds a queue over a shared Badger instance
func NewBadgerQueue(db *badger.DB, name string, opts Options) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" {
		return nil, errors.New("queue name is required")
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 5 * time.Minute
	}
	if opts.MaxReceive <= 0 {
		opts.MaxReceive = 4
	}
	return &BadgerQueue{db: db, name: name, opts: opts}, nil
}

// Name returns the queue name
func (q *BadgerQueue) Name() string { return q.name }

// Enqueue stores a message. When dedupKey is non-empty and a message with the
// same key was already enqueued, the call is a no-op and reports false.
func (q *BadgerQueue) Enqueue(ctx context.Context, body any, dedupKey string) (bool, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return false, models.NewQueueEnqueueError("marshal message for "+q.name, err)
	}

	env := Envelope{
		ID:         uuid.New().String(),
		Queue:      q.name,
		Body:       data,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(),
		DedupKey:   dedupKey,
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		return false, models.NewQueueEnqueueError("marshal envelope for "+q.name, err)
	}

	enqueued := false
	err = q.db.Update(func(txn *badger.Txn) error {
		if dedupKey != "" {
			dk := q.dedupKeyBytes(dedupKey)
			if _, err := txn.Get(dk); err == nil {
				return nil // duplicate, drop silently
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if err := txn.Set(dk, []byte(env.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set(q.msgKey(env.ID), encoded); err != nil {
			return err
		}
		if err := txn.Set(q.indexKey(env.VisibleAt, env.ID), nil); err != nil {
			return err
		}
		enqueued = true
		return nil
	})
	if err != nil {
		return false, models.NewQueueEnqueueError("enqueue to "+q.name, err)
	}
	return enqueued, nil
}

// EnqueueBatch stores a batch of messages in one transaction. All-or-nothing:
// a failure leaves none of the batch enqueued so the caller can fall back to
// per-message submission.
func (q *BadgerQueue) EnqueueBatch(ctx context.Context, bodies []any) error {
	now := time.Now()
	envelopes := make([][]byte, 0, len(bodies))
	ids := make([]string, 0, len(bodies))
	visibles := make([]time.Time, 0, len(bodies))

	for _, body := range bodies {
		data, err := json.Marshal(body)
		if err != nil {
			return models.NewQueueEnqueueError("marshal batch message for "+q.name, err)
		}
		env := Envelope{
			ID:         uuid.New().String(),
			Queue:      q.name,
			Body:       data,
			EnqueuedAt: now,
			VisibleAt:  now,
		}
		encoded, err := json.Marshal(env)
		if err != nil {
			return models.NewQueueEnqueueError("marshal batch envelope for "+q.name, err)
		}
		envelopes = append(envelopes, encoded)
		ids = append(ids, env.ID)
		visibles = append(visibles, env.VisibleAt)
	}

	err := q.db.Update(func(txn *badger.Txn) error {
		for i, encoded := range envelopes {
			if err := txn.Set(q.msgKey(ids[i]), encoded); err != nil {
				return err
			}
			if err := txn.Set(q.indexKey(visibles[i], ids[i]), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.NewQueueEnqueueError("batch enqueue to "+q.name, err)
	}
	return nil
}

// Receive claims the next visible message, making it invisible for the
// visibility timeout. Returns models.ErrNoMessage when the queue is drained.
// Messages past MaxReceive are moved to the dead-letter sink during the scan.
func (q *BadgerQueue) Receive(ctx context.Context) (*Envelope, error) {
	var claimed Envelope
	found := false

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := q.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			// Index keys sort by timestamp; the first future entry ends the scan
			if ts.After(now) {
				break
			}

			item, err := txn.Get(q.msgKey(id))
			if err == badger.ErrKeyNotFound {
				// Orphaned index entry from an interrupted ack
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			} else if err != nil {
				return err
			}

			var env Envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= q.opts.MaxReceive {
				if err := q.moveToDead(txn, key, env); err != nil {
					return err
				}
				continue
			}

			env.ReceiveCount++
			env.VisibleAt = now.Add(q.opts.VisibilityTimeout)
			updated, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := txn.Set(q.msgKey(id), updated); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(q.indexKey(env.VisibleAt, id), nil); err != nil {
				return err
			}

			claimed = env
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNoMessage
	}
	return &claimed, nil
}

// Ack removes a delivered message permanently. Acking an already-removed
// message is a no-op; at-least-once delivery makes that race benign.
func (q *BadgerQueue) Ack(ctx context.Context, id string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(q.msgKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}

		var env Envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		if err := txn.Delete(q.indexKey(env.VisibleAt, id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(q.msgKey(id))
	})
}

// Bury moves a message straight to the dead-letter sink, bypassing the
// remaining redeliveries. Used when the consumer knows retrying is pointless.
func (q *BadgerQueue) Bury(ctx context.Context, id string, reason string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(q.msgKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}

		var env Envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}
		return q.moveToDead(txn, q.indexKey(env.VisibleAt, env.ID), env)
	})
}

// moveToDead relocates a message under the dead prefix and removes it from
// the live queue.
func (q *BadgerQueue) moveToDead(txn *badger.Txn, indexKey []byte, env Envelope) error {
	encoded, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := txn.Set(q.deadKey(env.ID), encoded); err != nil {
		return err
	}
	if err := txn.Delete(indexKey); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return txn.Delete(q.msgKey(env.ID))
}

// Stats reports the live message count and the dead-letter backlog
func (q *BadgerQueue) Stats(ctx context.Context) (pending int, dead int, err error) {
	err = q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for prefix, counter := range map[string]*int{
			string(q.indexPrefix()): &pending,
			string(q.deadPrefix()):  &dead,
		} {
			p := []byte(prefix)
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				*counter++
			}
		}
		return nil
	})
	return pending, dead, err
}

// DeadLetters returns up to limit dead-lettered envelopes
func (q *BadgerQueue) DeadLetters(ctx context.Context, limit int) ([]Envelope, error) {
	var out []Envelope
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := q.deadPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var env Envelope
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}
			out = append(out, env)
		}
		return nil
	})
	return out, err
}

func (q *BadgerQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.name, id))
}

func (q *BadgerQueue) indexPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", q.name))
}

func (q *BadgerQueue) indexKey(visibleAt time.Time, id string) []byte {
	// Zero-padded nanos keep lexicographic order equal to time order
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.name, visibleAt.UnixNano(), id))
}

func (q *BadgerQueue) deadPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:dead:", q.name))
}

func (q *BadgerQueue) deadKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:dead:%s", q.name, id))
}

func (q *BadgerQueue) dedupKeyBytes(key string) []byte {
	return []byte(fmt.Sprintf("queue:%s:dedup:%s", q.name, key))
}

func (q *BadgerQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := q.indexPrefix()
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("index key too short")
	}
	suffix := string(key[len(prefix):])
	if len(suffix) < 22 {
		return time.Time{}, "", fmt.Errorf("index key suffix too short")
	}
	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}
