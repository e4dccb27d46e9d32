package retrain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/interfaces"
	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/activation"
	"github.com/pjsousa/jobato-platform/internal/services/metrics"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
	"github.com/pjsousa/jobato-platform/internal/worker"
)

// Retrain failure modes.
var (
	ErrRetrainInProgress  = errors.New("a retrain is already in progress")
	ErrNoActiveModel      = errors.New("no active model is available for retraining")
	ErrModelNotRegistered = errors.New("model is not registered")
	ErrModelNotStateful   = errors.New("model does not support retraining")
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"

	retrainActor = "retrain"
)

// Service retrains models from labels accumulated since the last retrain.
// At most one retrain runs at a time.
type Service struct {
	registry    *registry.Registry
	store       *sqlite.EvaluationStorage
	activator   *activation.Service
	dataDir     string
	artifactDir string
	logger      arbor.ILogger

	mu sync.Mutex
}

// NewService creates the retrain service.
func NewService(
	reg *registry.Registry,
	store *sqlite.EvaluationStorage,
	activator *activation.Service,
	dataDir, artifactDir string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		registry:    reg,
		store:       store,
		activator:   activator,
		dataDir:     dataDir,
		artifactDir: artifactDir,
		logger:      logger,
	}
}

// Run retrains the active model synchronously. A second concurrent call
// fails with ErrRetrainInProgress. Zero new labels since the last retrain
// skips the job rather than training on stale data. triggeredBy records who
// started the job: "manual" or "scheduled".
func (s *Service) Run(triggeredBy string) (*sqlite.RetrainJob, error) {
	if !s.mu.TryLock() {
		return nil, ErrRetrainInProgress
	}
	defer s.mu.Unlock()

	active, err := s.store.GetActiveModel()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveModel
	}

	loaded, ok := s.registry.GetModel(active.ModelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, active.ModelID)
	}
	stateful, ok := loaded.Model.(interfaces.StatefulModel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotStateful, active.ModelID)
	}

	job := &sqlite.RetrainJob{
		JobID:           uuid.New().String(),
		ModelID:         active.ModelID,
		Status:          StatusRunning,
		PreviousVersion: active.ModelVersion,
		TriggeredBy:     triggeredBy,
		StartedAt:       common.TimestampNow(),
	}
	if err := s.store.CreateRetrainJob(job); err != nil {
		return nil, err
	}

	if err := s.execute(job, stateful, job.PreviousVersion); err != nil {
		job.Status = StatusFailed
		job.Reason = models.TruncateErrorMessage(err.Error(), 100)
		job.CompletedAt = common.TimestampNow()
		if updateErr := s.store.UpdateRetrainJob(job); updateErr != nil && s.logger != nil {
			s.logger.Error().Str("job_id", job.JobID).Err(updateErr).Msg("Failed to record retrain failure")
		}
		return job, err
	}
	return job, nil
}

// Job returns a retrain job by id, or nil when it does not exist.
func (s *Service) Job(jobID string) (*sqlite.RetrainJob, error) {
	return s.store.GetRetrainJob(jobID)
}

// Status reports the most recent retrain job and whether one is running.
type Status struct {
	Latest  *sqlite.RetrainJob `json:"latest"`
	Running bool               `json:"running"`
}

// CurrentStatus returns the latest job and the running flag.
func (s *Service) CurrentStatus() (*Status, error) {
	latest, err := s.store.LatestRetrainJob()
	if err != nil {
		return nil, err
	}
	running, err := s.store.HasRunningRetrainJob()
	if err != nil {
		return nil, err
	}
	return &Status{Latest: latest, Running: running}, nil
}

// History lists retrain jobs newest first, up to limit.
func (s *Service) History(limit int) ([]*sqlite.RetrainJob, error) {
	return s.store.ListRetrainJobs(limit)
}

func (s *Service) execute(job *sqlite.RetrainJob, model interfaces.StatefulModel, previousVersion string) error {
	since, err := s.store.LastCompletedRetrainAt(job.ModelID)
	if err != nil {
		return err
	}

	features, labels, err := s.collectLabels(since)
	if err != nil {
		return err
	}

	if len(labels) == 0 {
		job.Status = StatusSkipped
		job.Reason = "no new labels since last retrain"
		job.CompletedAt = common.TimestampNow()
		if s.logger != nil {
			s.logger.Info().Str("model_id", job.ModelID).Msg("Retrain skipped, no new labels")
		}
		return s.store.UpdateRetrainJob(job)
	}

	trainedAt := time.Now()
	newVersion := NextVersion(previousVersion, trainedAt)

	if err := model.Fit(features, labels); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	trainMetrics, err := s.trainingMetrics(model, features, labels)
	if err != nil {
		return err
	}

	state, err := model.MarshalState()
	if err != nil {
		return fmt.Errorf("failed to serialize model state: %w", err)
	}

	artifactPath, err := WriteArtifact(s.artifactDir, &Artifact{
		ModelID:      job.ModelID,
		ModelVersion: newVersion,
		TrainedAt:    common.FormatTimestamp(trainedAt),
		Metrics:      trainMetrics,
	}, state)
	if err != nil {
		return err
	}

	// Promote only after the artifact on disk verifies.
	if err := ValidateArtifact(artifactPath, job.ModelID, newVersion); err != nil {
		return err
	}

	if err := s.store.StoreResult(&sqlite.EvaluationResult{
		EvaluationID: "retrain-" + job.JobID,
		ModelID:      job.ModelID,
		ModelVersion: newVersion,
		Status:       "completed",
		Precision:    trainMetrics["precision"],
		Recall:       trainMetrics["recall"],
		F1:           trainMetrics["f1"],
		Accuracy:     trainMetrics["accuracy"],
		EvaluatedAt:  common.FormatTimestamp(trainedAt),
	}); err != nil {
		return err
	}

	if _, err := s.activator.Activate(job.ModelID, retrainActor); err != nil {
		return fmt.Errorf("failed to promote retrained model: %w", err)
	}

	job.Status = StatusCompleted
	job.NewVersion = newVersion
	job.LabelCount = len(labels)
	job.ArtifactPath = artifactPath
	job.CompletedAt = common.TimestampNow()

	if s.logger != nil {
		s.logger.Info().
			Str("model_id", job.ModelID).
			Str("version", newVersion).
			Int("labels", len(labels)).
			Msg("Retrain completed and promoted")
	}
	return s.store.UpdateRetrainJob(job)
}

// collectLabels gathers labeled rows from the active run database scored
// strictly after since.
func (s *Service) collectLabels(since string) ([]models.Features, []int, error) {
	activePath, err := worker.ResolveActiveDBPath(s.dataDir)
	if err != nil {
		return nil, nil, err
	}
	if activePath == "" {
		return nil, nil, nil
	}

	storage, err := sqlite.NewResultStorage(activePath, nil)
	if err != nil {
		return nil, nil, err
	}
	defer storage.Close()

	items, err := storage.ListScoredSince(since)
	if err != nil {
		return nil, nil, err
	}

	features := make([]models.Features, len(items))
	labels := make([]int, len(items))
	for i, item := range items {
		features[i] = models.FeaturesOf(item)
		if item.Score > 0 {
			labels[i] = 1
		}
	}
	return features, labels, nil
}

func (s *Service) trainingMetrics(model interfaces.StatefulModel, features []models.Features, labels []int) (map[string]float64, error) {
	scores, err := model.Predict(features)
	if err != nil {
		return nil, fmt.Errorf("post-training prediction failed: %w", err)
	}
	predicted := make([]int, len(scores))
	for i, score := range scores {
		if score >= 0.5 {
			predicted[i] = 1
		}
	}
	return metrics.Calculate(metrics.Tally(predicted, labels)), nil
}
