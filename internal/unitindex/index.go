// Package unitindex tracks the on-disk path each loaded unit file came
// from, so a later Reload/ReloadAll command can re-parse it without the
// caller needing to remember where it lives.
package unitindex

import (
	"fmt"
	"sync"

	"github.com/PenumbraOS/pinitd-sub000/internal/config"
)

// Index is a name -> unit file path map, populated as units are loaded.
type Index struct {
	mu    sync.Mutex
	paths map[string]string
}

// New builds an empty Index.
func New() *Index {
	return &Index{paths: make(map[string]string)}
}

// Track records path as the source for cfg.Name.
func (idx *Index) Track(cfg *config.ServiceConfig) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.paths[cfg.Name] = cfg.UnitFilePath
}

// ReloadUnit re-parses the unit file previously tracked for name.
func (idx *Index) ReloadUnit(name string) (config.ServiceConfig, error) {
	idx.mu.Lock()
	path, ok := idx.paths[name]
	idx.mu.Unlock()
	if !ok {
		return config.ServiceConfig{}, fmt.Errorf("%w: no unit file tracked for %s", config.ErrConfig, name)
	}
	cfg, err := config.LoadUnit(path)
	if err != nil {
		return config.ServiceConfig{}, err
	}
	return *cfg, nil
}

// AllUnitNames returns every name currently tracked.
func (idx *Index) AllUnitNames() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	names := make([]string, 0, len(idx.paths))
	for name := range idx.paths {
		names = append(names, name)
	}
	return names
}
