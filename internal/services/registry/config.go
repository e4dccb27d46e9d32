// Package registry loads the model catalog and constructs scoring models.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModelEntry is one catalog row from <CONFIG_DIR>/ml/models.yaml.
type ModelEntry struct {
	ID        string `yaml:"id"`
	ClassName string `yaml:"className"`
	Version   string `yaml:"version"`
	Enabled   bool   `yaml:"enabled"`
	Default   bool   `yaml:"default"`
}

type catalogFile struct {
	Models []ModelEntry `yaml:"models"`
}

// LoadCatalog reads the model catalog. A missing or empty file yields an
// empty catalog, not an error: the registry then serves only load errors.
func LoadCatalog(configDir string) ([]ModelEntry, error) {
	path := filepath.Join(configDir, "ml", "models.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	if err := validateCatalog(file.Models); err != nil {
		return nil, err
	}
	return file.Models, nil
}

func validateCatalog(entries []ModelEntry) error {
	seen := make(map[string]bool, len(entries))
	defaultCount := 0
	for _, entry := range entries {
		if entry.ID == "" {
			return fmt.Errorf("model catalog entry missing id")
		}
		if seen[entry.ID] {
			return fmt.Errorf("duplicate model id %q in catalog", entry.ID)
		}
		seen[entry.ID] = true
		if entry.Default {
			defaultCount++
			if !entry.Enabled {
				return fmt.Errorf("default model %q must be enabled", entry.ID)
			}
		}
	}
	if defaultCount > 1 {
		return fmt.Errorf("model catalog declares %d default models, at most one allowed", defaultCount)
	}
	return nil
}
