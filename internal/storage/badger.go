package storage

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"github.com/ternarybob/arbor"
)

// Store owns the process-wide Badger instance. The raw DB backs the pipeline
// queues; the badgerhold wrapper over the same instance indexes structured
// records like crawl results.
type Store struct {
	db     *badger.DB
	hold   *badgerhold.Store
	logger arbor.ILogger
}

// Options configures the store
type Options struct {
	Path           string
	InMemory       bool
	ResetOnStartup bool
	Logger         arbor.ILogger
}

// Open creates or opens the store
func Open(opts Options) (*Store, error) {
	if opts.ResetOnStartup && opts.Path != "" {
		if err := os.RemoveAll(opts.Path); err != nil {
			return nil, fmt.Errorf("reset storage at %s: %w", opts.Path, err)
		}
	}

	badgerOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	holdOpts := badgerhold.DefaultOptions
	holdOpts.Options = badgerOpts

	hold, err := badgerhold.Open(holdOpts)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := &Store{
		db:     hold.Badger(),
		hold:   hold,
		logger: opts.Logger,
	}
	if opts.Logger != nil {
		opts.Logger.Info().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Msg("Storage opened")
	}
	return store, nil
}

// DB exposes the raw Badger instance for the queue layer
func (s *Store) DB() *badger.DB { return s.db }

// Hold exposes the badgerhold wrapper for structured records
func (s *Store) Hold() *badgerhold.Store { return s.hold }

// Close flushes and closes the underlying database
func (s *Store) Close() error {
	return s.hold.Close()
}
