package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
)

// Registry holds every spider configuration loaded from the city directory.
// Entries are immutable after load; lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]models.SpiderConfig
	byType    map[models.SpiderType][]models.SpiderConfig
	territory map[string][]models.SpiderConfig
	ordered   []models.SpiderConfig
	logger    arbor.ILogger
}

// New builds an empty registry
func New(logger arbor.ILogger) *Registry {
	return &Registry{
		byID:      make(map[string]models.SpiderConfig),
		byType:    make(map[models.SpiderType][]models.SpiderConfig),
		territory: make(map[string][]models.SpiderConfig),
		logger:    logger,
	}
}

// LoadDir reads every *.json city document under dir in lexicographic file
// name order. A file may hold one entry or an array of entries. Duplicate
// ids keep the first occurrence; later duplicates for the same territory
// become fallback candidates in load order.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read cities dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read city file %s: %w", path, err)
		}
		configs, err := decodeCityFile(data)
		if err != nil {
			return fmt.Errorf("city file %s: %w", name, err)
		}
		for _, cfg := range configs {
			r.add(cfg, name)
		}
	}

	if r.logger != nil {
		r.logger.Info().
			Int("spiders", len(r.byID)).
			Int("files", len(files)).
			Str("dir", dir).
			Msg("Spider registry loaded")
	}
	return nil
}

// decodeCityFile accepts a single entry or an array of entries
func decodeCityFile(data []byte) ([]models.SpiderConfig, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var configs []models.SpiderConfig
		if err := json.Unmarshal(data, &configs); err != nil {
			return nil, err
		}
		return configs, nil
	}
	var cfg models.SpiderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return []models.SpiderConfig{cfg}, nil
}

func (r *Registry) add(cfg models.SpiderConfig, file string) {
	if _, exists := r.byID[cfg.ID]; exists {
		// First definition wins; later ones only extend the fallback chain
		if r.logger != nil {
			r.logger.Warn().Str("id", cfg.ID).Str("file", file).Msg("Duplicate spider id ignored")
		}
		return
	}
	r.byID[cfg.ID] = cfg
	r.byType[cfg.SpiderType] = append(r.byType[cfg.SpiderType], cfg)
	r.territory[cfg.TerritoryID] = append(r.territory[cfg.TerritoryID], cfg)
	r.ordered = append(r.ordered, cfg)
}

// Get returns the spider configuration for an id
func (r *Registry) Get(id string) (models.SpiderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byID[id]
	if !ok {
		return models.SpiderConfig{}, models.NewUnknownSpiderError("spider id " + id)
	}
	return cfg, nil
}

// ByType returns every configuration using a platform adapter, in load order
func (r *Registry) ByType(t models.SpiderType) ([]models.SpiderConfig, error) {
	if !t.IsValid() {
		return nil, models.NewUnknownSpiderError("spider type " + string(t))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SpiderConfig, len(r.byType[t]))
	copy(out, r.byType[t])
	return out, nil
}

// All returns every configuration in load order
func (r *Registry) All() []models.SpiderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SpiderConfig, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len reports the number of registered spiders
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Fallbacks returns the alternative configurations for a territory beyond
// the given spider, in load order. Cities that migrated platforms keep
// their old entry as a fallback when the new one breaks.
func (r *Registry) Fallbacks(territoryID, excludeID string) []models.SpiderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var fallbacks []models.SpiderConfig
	for _, cfg := range r.territory[territoryID] {
		if cfg.ID != excludeID {
			fallbacks = append(fallbacks, cfg)
		}
	}
	return fallbacks
}

// TypeCounts reports how many spiders use each platform adapter
func (r *Registry) TypeCounts() map[models.SpiderType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[models.SpiderType]int, len(r.byType))
	for t, configs := range r.byType {
		counts[t] = len(configs)
	}
	return counts
}
