package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// UnitFileExt is the extension unit files are recognised by when scanning a
// directory.
const UnitFileExt = ".unit"

// LoadDir parses every *.unit file directly inside dir. A missing directory
// yields an empty slice, not an error, matching the tolerant-on-first-run
// posture the rest of the config layer takes.
func LoadDir(dir string) ([]*ServiceConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading units directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != UnitFileExt {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	cfgs := make([]*ServiceConfig, 0, len(names))
	for _, name := range names {
		cfg, err := LoadUnit(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}
