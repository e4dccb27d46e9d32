// Package evaluation runs model evaluations over labeled run data.
package evaluation

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultWorkers = 3
	maxWorkers     = 10
)

type mlConfigFile struct {
	EvalWorkers int `yaml:"evalWorkers"`
}

// LoadWorkerCount reads the evaluation worker count from
// <CONFIG_DIR>/ml/ml-config.yaml, clamped to [1, 10]. A missing or
// unreadable file yields the default of 3.
func LoadWorkerCount(configDir string) int {
	path := filepath.Join(configDir, "ml", "ml-config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultWorkers
	}

	var file mlConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return defaultWorkers
	}
	if file.EvalWorkers == 0 {
		return defaultWorkers
	}
	return clampWorkers(file.EvalWorkers)
}

func clampWorkers(workers int) int {
	if workers < 1 {
		return 1
	}
	if workers > maxWorkers {
		return maxWorkers
	}
	return workers
}
