// Package activation manages which model scores incoming runs.
package activation

import (
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// Activation failure modes, distinguished so the HTTP layer can map them
// to precise status codes.
var (
	ErrModelNotRegistered  = errors.New("model is not registered")
	ErrNoEvaluation        = errors.New("model has no completed evaluation")
	ErrNoActivationHistory = errors.New("model has no activation history to roll back to")
	ErrNoActiveModel       = errors.New("no model is active")
)

// History actions recorded per activation state change.
const (
	ActionActivated = "activated"
	ActionRollback  = "rollback"
)

// Service guards model activation behind registry membership and a
// completed evaluation.
type Service struct {
	registry *registry.Registry
	store    *sqlite.EvaluationStorage
	logger   arbor.ILogger
}

// NewService creates the activation service.
func NewService(reg *registry.Registry, store *sqlite.EvaluationStorage, logger arbor.ILogger) *Service {
	return &Service{registry: reg, store: store, logger: logger}
}

// Activate makes modelID the active scorer. The model must be registered
// and must have at least one completed evaluation result; its version comes
// from that latest result.
func (s *Service) Activate(modelID, actor string) (*sqlite.ActiveModel, error) {
	if !s.registry.HasModel(modelID) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, modelID)
	}

	latest, err := s.store.LatestCompletedResult(modelID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEvaluation, modelID)
	}

	occurredAt := common.TimestampNow()
	if err := s.store.ActivateModel(modelID, latest.ModelVersion, actor, ActionActivated, occurredAt); err != nil {
		return nil, err
	}

	return &sqlite.ActiveModel{
		ModelID:      modelID,
		ModelVersion: latest.ModelVersion,
		IsActive:     true,
		ActivatedAt:  occurredAt,
		ActivatedBy:  actor,
	}, nil
}

// rollbackHistoryScan bounds how far back rollback searches for the model's
// last recorded activation.
const rollbackHistoryScan = 200

// Rollback reactivates the given model at the version its most recent
// history entry recorded, marking the transition as a rollback. The model
// must be registered and must appear in the activation history.
func (s *Service) Rollback(modelID, actor string) (*sqlite.ActiveModel, error) {
	if !s.registry.HasModel(modelID) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, modelID)
	}

	entries, err := s.store.ListActivationHistory(rollbackHistoryScan)
	if err != nil {
		return nil, err
	}
	var target *sqlite.ActivationHistoryEntry
	for _, entry := range entries {
		if entry.ModelID == modelID {
			target = entry
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoActivationHistory, modelID)
	}

	occurredAt := common.TimestampNow()
	if err := s.store.ActivateModel(modelID, target.ModelVersion, actor, ActionRollback, occurredAt); err != nil {
		return nil, err
	}

	return &sqlite.ActiveModel{
		ModelID:      modelID,
		ModelVersion: target.ModelVersion,
		IsActive:     true,
		ActivatedAt:  occurredAt,
		ActivatedBy:  actor,
	}, nil
}

// Active returns the currently active model.
func (s *Service) Active() (*sqlite.ActiveModel, error) {
	active, err := s.store.GetActiveModel()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveModel
	}
	return active, nil
}

// History returns recent activation transitions, newest first.
func (s *Service) History(limit int) ([]*sqlite.ActivationHistoryEntry, error) {
	return s.store.ListActivationHistory(limit)
}

// ModelComparison is one model's latest evaluation, annotated with whether
// that exact model version is currently active.
type ModelComparison struct {
	ModelID      string             `json:"modelId"`
	ModelVersion string             `json:"modelVersion"`
	EvaluationID string             `json:"evaluationId"`
	DatasetID    string             `json:"datasetId"`
	Status       string             `json:"status"`
	Metrics      map[string]float64 `json:"metrics"`
	Error        string             `json:"error,omitempty"`
	EvaluatedAt  string             `json:"evaluatedAt"`
	IsActive     bool               `json:"isActive"`
}

// Comparisons reports each model's latest evaluation result side by side.
func (s *Service) Comparisons() ([]ModelComparison, error) {
	rows, err := s.store.LatestResultsPerModel()
	if err != nil {
		return nil, err
	}
	active, err := s.store.GetActiveModel()
	if err != nil {
		return nil, err
	}

	comparisons := make([]ModelComparison, 0, len(rows))
	for _, row := range rows {
		comparison := ModelComparison{
			ModelID:      row.ModelID,
			ModelVersion: row.ModelVersion,
			EvaluationID: row.EvaluationID,
			DatasetID:    row.DatasetID,
			Status:       row.Status,
			Metrics: map[string]float64{
				"precision": row.Precision,
				"recall":    row.Recall,
				"f1":        row.F1,
				"accuracy":  row.Accuracy,
			},
			Error:       row.ErrorMessage,
			EvaluatedAt: row.EvaluatedAt,
		}
		if active != nil && active.ModelID == row.ModelID && active.ModelVersion == row.ModelVersion {
			comparison.IsActive = true
		}
		comparisons = append(comparisons, comparison)
	}
	return comparisons, nil
}
