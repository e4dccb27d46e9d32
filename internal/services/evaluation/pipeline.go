package evaluation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/metrics"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// Run statuses.
const (
	StatusRunning       = "running"
	StatusCompleted     = "completed"
	StatusPartialFailed = "partial_failed"

	// predictionThreshold converts a model score into a binary label.
	predictionThreshold = 0.5
)

// Service triggers and executes model evaluations.
type Service struct {
	registry *registry.Registry
	store    *sqlite.EvaluationStorage
	dataDir  string
	workers  int
	logger   arbor.ILogger
}

// NewService creates the evaluation service.
func NewService(reg *registry.Registry, store *sqlite.EvaluationStorage, dataDir string, workers int, logger arbor.ILogger) *Service {
	return &Service{
		registry: reg,
		store:    store,
		dataDir:  dataDir,
		workers:  clampWorkers(workers),
		logger:   logger,
	}
}

// TriggerResponse is returned immediately when an evaluation is accepted.
type TriggerResponse struct {
	EvaluationID string `json:"evaluationId"`
	Status       string `json:"status"`
	TotalModels  int    `json:"totalModels"`
	DatasetID    string `json:"datasetId"`
	EvalWorkers  int    `json:"evalWorkers"`
}

// Trigger registers a new evaluation run over all registered models and
// starts it asynchronously. The response carries the id to poll.
func (s *Service) Trigger() (*TriggerResponse, error) {
	available := s.registry.GetAvailableModels()
	if len(available) == 0 {
		return nil, fmt.Errorf("no models registered for evaluation")
	}

	dataset, err := BuildDataset(s.dataDir, s.logger)
	if err != nil {
		return nil, err
	}

	evaluationID := uuid.New().String()
	run := &sqlite.EvaluationRun{
		EvaluationID: evaluationID,
		Status:       StatusRunning,
		DatasetID:    dataset.ID,
		EvalWorkers:  s.workers,
		TotalModels:  len(available),
		StartedAt:    common.TimestampNow(),
	}
	if err := s.store.CreateRun(run); err != nil {
		return nil, err
	}

	common.SafeGo(s.logger, "evaluation-"+evaluationID, func() {
		s.execute(evaluationID, available, dataset)
	})

	return &TriggerResponse{
		EvaluationID: evaluationID,
		Status:       StatusRunning,
		TotalModels:  len(available),
		DatasetID:    dataset.ID,
		EvalWorkers:  s.workers,
	}, nil
}

// GetRun returns an evaluation run with its per-model results.
func (s *Service) GetRun(evaluationID string) (*sqlite.EvaluationRun, []*sqlite.EvaluationResult, error) {
	run, err := s.store.GetRun(evaluationID)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, nil
	}
	results, err := s.store.ListResults(evaluationID)
	if err != nil {
		return nil, nil, err
	}
	return run, results, nil
}

type modelResult struct {
	result *sqlite.EvaluationResult
	failed bool
}

// runProgress tracks a run's completed and failed counters across workers.
type runProgress struct {
	mu        sync.Mutex
	completed int
	failed    int
}

// execute runs the evaluation across the worker pool and finalizes the run
// row. Each model is fit and scored independently; one model's failure
// leaves the others' results intact.
func (s *Service) execute(evaluationID string, loaded []*registry.LoadedModel, dataset *Dataset) {
	var progress runProgress
	runPool(s.workers, loaded,
		func(model *registry.LoadedModel) modelResult {
			result := s.evaluateModel(evaluationID, model, dataset)
			s.recordResult(evaluationID, &progress, result)
			return result
		},
		func(model *registry.LoadedModel, recovered interface{}) modelResult {
			result := modelResult{
				failed: true,
				result: &sqlite.EvaluationResult{
					EvaluationID: evaluationID,
					ModelID:      model.Entry.ID,
					ModelVersion: model.Entry.Version,
					Status:       "failed",
					ErrorMessage: models.TruncateErrorMessage(fmt.Sprintf("panic: %v", recovered), 100),
					EvaluatedAt:  common.TimestampNow(),
				},
			}
			s.recordResult(evaluationID, &progress, result)
			return result
		})

	status := StatusCompleted
	if progress.failed > 0 {
		status = StatusPartialFailed
	}
	if err := s.store.CompleteRun(evaluationID, status, common.TimestampNow()); err != nil && s.logger != nil {
		s.logger.Error().Str("evaluation_id", evaluationID).Err(err).Msg("Failed to complete evaluation run")
	}

	if s.logger != nil {
		s.logger.Info().
			Str("evaluation_id", evaluationID).
			Str("status", status).
			Int("completed", progress.completed).
			Int("failed", progress.failed).
			Msg("Evaluation finished")
	}
}

// recordResult persists one model's result and the run counters as soon as
// the model finishes. A crash mid-run keeps the rows of every model that
// already completed.
func (s *Service) recordResult(evaluationID string, progress *runProgress, r modelResult) {
	progress.mu.Lock()
	defer progress.mu.Unlock()

	if err := s.store.StoreResult(r.result); err != nil && s.logger != nil {
		s.logger.Error().Str("evaluation_id", evaluationID).Err(err).Msg("Failed to store evaluation result")
	}
	if r.failed {
		progress.failed++
	} else {
		progress.completed++
	}
	if err := s.store.UpdateRunProgress(evaluationID, progress.completed, progress.failed); err != nil && s.logger != nil {
		s.logger.Error().Str("evaluation_id", evaluationID).Err(err).Msg("Failed to update evaluation progress")
	}
}

func (s *Service) evaluateModel(evaluationID string, loaded *registry.LoadedModel, dataset *Dataset) modelResult {
	base := &sqlite.EvaluationResult{
		EvaluationID: evaluationID,
		ModelID:      loaded.Entry.ID,
		ModelVersion: loaded.Entry.Version,
		EvaluatedAt:  common.FormatTimestamp(time.Now()),
	}

	if err := loaded.Model.Fit(dataset.Features, dataset.Labels); err != nil {
		base.Status = "failed"
		base.ErrorMessage = models.TruncateErrorMessage(err.Error(), 100)
		return modelResult{result: base, failed: true}
	}

	scores, err := loaded.Model.Predict(dataset.Features)
	if err != nil || len(scores) != len(dataset.Labels) {
		message := "prediction length mismatch"
		if err != nil {
			message = err.Error()
		}
		base.Status = "failed"
		base.ErrorMessage = models.TruncateErrorMessage(message, 100)
		return modelResult{result: base, failed: true}
	}

	predicted := make([]int, len(scores))
	for i, score := range scores {
		if score >= predictionThreshold {
			predicted[i] = 1
		}
	}

	computed := metrics.Calculate(metrics.Tally(predicted, dataset.Labels))
	base.Status = "completed"
	base.Precision = computed["precision"]
	base.Recall = computed["recall"]
	base.F1 = computed["f1"]
	base.Accuracy = computed["accuracy"]
	base.EvaluatedAt = common.FormatTimestamp(time.Now())
	return modelResult{result: base}
}
