// Package scoring assigns relevance scores to non-duplicate run items.
package scoring

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// BaselineModelID identifies the fallback scorer in score_model columns.
const BaselineModelID = "baseline"

// Outcome summarizes one scoring pass.
type Outcome struct {
	ScoredCount int    `json:"scoredCount"`
	ModelID     string `json:"modelId"`
	Fallback    bool   `json:"fallback"`
}

// Service scores run items with the selected model.
type Service struct {
	registry *registry.Registry
	store    *sqlite.EvaluationStorage
	logger   arbor.ILogger
}

// NewService creates the scoring service.
func NewService(reg *registry.Registry, store *sqlite.EvaluationStorage, logger arbor.ILogger) *Service {
	return &Service{registry: reg, store: store, logger: logger}
}

// Run scores all unscored non-duplicate items. Model selection precedence:
// an explicitly requested model, then the active model, then the baseline.
// A selected model that is missing from the registry or fails to predict
// falls back to zero scores recorded under the baseline identifier.
func (s *Service) Run(storage *sqlite.ResultStorage, runID, requestedModelID string) (Outcome, error) {
	items, err := storage.ListUnscored(runID)
	if err != nil {
		return Outcome{}, err
	}
	if len(items) == 0 {
		return Outcome{ModelID: requestedModelID}, nil
	}

	modelID := s.selectModel(requestedModelID)

	features := make([]models.Features, len(items))
	for i, item := range items {
		features[i] = models.FeaturesOf(item)
	}

	scores, scoreModel, fallback := s.predict(modelID, features)

	scoredAt := common.FormatTimestamp(time.Now())
	marks := make([]sqlite.ScoreMark, len(items))
	for i, item := range items {
		marks[i] = sqlite.ScoreMark{
			ID:         item.ID,
			Score:      clamp(scores[i]),
			ScoreModel: scoreModel,
			ScoredAt:   scoredAt,
		}
	}

	if err := storage.ApplyScores(marks); err != nil {
		return Outcome{}, err
	}

	if s.logger != nil {
		s.logger.Info().
			Str("run_id", runID).
			Str("model", scoreModel).
			Int("scored", len(marks)).
			Bool("fallback", fallback).
			Msg("Scoring completed")
	}
	return Outcome{ScoredCount: len(marks), ModelID: scoreModel, Fallback: fallback}, nil
}

// selectModel resolves which model id to score with.
func (s *Service) selectModel(requestedModelID string) string {
	if requestedModelID != "" {
		return requestedModelID
	}
	if s.store != nil {
		if active, err := s.store.GetActiveModel(); err == nil && active != nil {
			return active.ModelID
		}
	}
	return BaselineModelID
}

// predict runs the model, falling back to zero scores on a missing model or
// prediction failure. The returned score_model value names what actually
// produced the scores: the loaded model's id and registry version, or the
// baseline identifier on fallback.
func (s *Service) predict(modelID string, features []models.Features) ([]float64, string, bool) {
	zero := make([]float64, len(features))

	loaded, ok := s.registry.GetModel(modelID)
	if !ok {
		if s.logger != nil {
			s.logger.Warn().Str("model_id", modelID).Msg("Selected model not in registry, recording zero scores")
		}
		return zero, BaselineModelID, true
	}

	scores, err := loaded.Model.Predict(features)
	if err != nil || len(scores) != len(features) {
		if s.logger != nil {
			s.logger.Warn().Str("model_id", modelID).Err(err).Msg("Model prediction failed, recording zero scores")
		}
		return zero, BaselineModelID, true
	}

	return scores, modelID + ":" + loaded.Entry.Version, false
}

func clamp(score float64) float64 {
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
