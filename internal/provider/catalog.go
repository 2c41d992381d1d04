package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk provider list read at start-up.
//
//	providers:
//	  - id: planner
//	    name: Planner
//	    category: agent
//	    tier: 4
//	    capabilities: [analysis, planning]
//	    flags: {policy-sealed: true}
type Catalog struct {
	Providers []Provider `yaml:"providers"`
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}
	return &c, nil
}

// LoadCatalog reads the catalog at path and registers every entry. It stops at
// the first registration error and returns how many providers were registered.
func (r *Registry) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read provider catalog: %w", err)
	}

	c, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}

	for i, p := range c.Providers {
		if _, err := r.Register(p); err != nil {
			return i, fmt.Errorf("catalog entry %d (%s): %w", i, p.Name, err)
		}
	}
	return len(c.Providers), nil
}

// Marshal encodes the catalog as YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
