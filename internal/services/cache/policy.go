// Package cache reuses prior run results and throttles revisits to
// recently seen pages.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy holds the operator cache settings from <CONFIG_DIR>/cache.yaml.
type Policy struct {
	TTLHours            int `yaml:"ttlHours"`
	RevisitThrottleDays int `yaml:"revisitThrottleDays"`
}

type policyFile struct {
	Cache Policy `yaml:"cache"`
}

// DefaultPolicy is used when cache.yaml is absent.
func DefaultPolicy() Policy {
	return Policy{TTLHours: 24, RevisitThrottleDays: 7}
}

// LoadPolicy reads cache.yaml from the config directory. A missing file
// yields the default policy; invalid values are an error.
func LoadPolicy(configDir string) (Policy, error) {
	path := filepath.Join(configDir, "cache.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read cache policy: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Policy{}, fmt.Errorf("failed to parse cache policy: %w", err)
	}

	policy := file.Cache
	if policy.TTLHours <= 0 {
		return Policy{}, fmt.Errorf("cache ttlHours must be positive, got %d", policy.TTLHours)
	}
	if policy.RevisitThrottleDays <= 0 {
		return Policy{}, fmt.Errorf("cache revisitThrottleDays must be positive, got %d", policy.RevisitThrottleDays)
	}
	return policy, nil
}
