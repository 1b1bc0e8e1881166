package storage

import (
	"errors"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/diario/internal/models"
)

// ResultStore persists crawl outcomes keyed by spider id. The latest result
// per spider is what the validation harness and the stats endpoint read.
type ResultStore struct {
	hold *badgerhold.Store
}

// NewResultStore builds a result store over the shared storage
func NewResultStore(store *Store) *ResultStore {
	return &ResultStore{hold: store.Hold()}
}

// Save upserts the latest result for a spider
func (r *ResultStore) Save(result models.CrawlResult) error {
	return r.hold.Upsert(result.SpiderID, result)
}

// Get returns the latest result for a spider id
func (r *ResultStore) Get(spiderID string) (models.CrawlResult, bool, error) {
	var result models.CrawlResult
	err := r.hold.Get(spiderID, &result)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return models.CrawlResult{}, false, nil
	}
	if err != nil {
		return models.CrawlResult{}, false, err
	}
	return result, true, nil
}

// ByTerritory returns every stored result for a territory
func (r *ResultStore) ByTerritory(territoryID string) ([]models.CrawlResult, error) {
	var results []models.CrawlResult
	err := r.hold.Find(&results, badgerhold.Where("TerritoryID").Eq(territoryID).Index("TerritoryID"))
	return results, err
}

// FailedSince lists spiders whose latest crawl failed after the cutoff.
// Regression validation runs re-crawl exactly this set.
func (r *ResultStore) FailedSince(cutoff time.Time) ([]models.CrawlResult, error) {
	var results []models.CrawlResult
	err := r.hold.Find(&results,
		badgerhold.Where("Error").Ne("").And("FinishedAt").Ge(cutoff))
	return results, err
}

// All returns every stored result
func (r *ResultStore) All() ([]models.CrawlResult, error) {
	var results []models.CrawlResult
	err := r.hold.Find(&results, nil)
	return results, err
}
