package evaluation

import (
	"fmt"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
	"github.com/pjsousa/jobato-platform/internal/worker"
)

// SyntheticDatasetID marks datasets fabricated when no scored data exists.
const SyntheticDatasetID = "synthetic-default"

// Dataset is a labeled evaluation set. Labels are 1 for positively scored
// rows and 0 otherwise.
type Dataset struct {
	ID       string
	Features []models.Features
	Labels   []int
}

// BuildDataset assembles the evaluation dataset from the active run
// database's scored rows. When no database is active or it holds no scored
// rows, a two-row synthetic dataset keeps evaluations meaningful enough to
// exercise the pipeline.
func BuildDataset(dataDir string, logger arbor.ILogger) (*Dataset, error) {
	activePath, err := worker.ResolveActiveDBPath(dataDir)
	if err != nil {
		return nil, err
	}
	if activePath == "" {
		return syntheticDataset(logger), nil
	}

	storage, err := sqlite.NewResultStorage(activePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open active run database: %w", err)
	}
	defer storage.Close()

	items, err := storage.ListScoredSince("")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return syntheticDataset(logger), nil
	}

	dataset := &Dataset{
		ID:       fmt.Sprintf("%s:%d", filepath.Base(activePath), len(items)),
		Features: make([]models.Features, len(items)),
		Labels:   make([]int, len(items)),
	}
	for i, item := range items {
		dataset.Features[i] = models.FeaturesOf(item)
		if item.Score > 0 {
			dataset.Labels[i] = 1
		}
	}
	return dataset, nil
}

func syntheticDataset(logger arbor.ILogger) *Dataset {
	if logger != nil {
		logger.Warn().Msg("No scored run data available, using synthetic evaluation dataset")
	}
	return &Dataset{
		ID: SyntheticDatasetID,
		Features: []models.Features{
			{Title: "Senior Software Engineer job opening", Snippet: "Apply for this engineering position today", Domain: "jobs.example"},
			{Title: "Company summer newsletter", Snippet: "Photos from the annual picnic", Domain: "jobs.example"},
		},
		Labels: []int{1, 0},
	}
}
