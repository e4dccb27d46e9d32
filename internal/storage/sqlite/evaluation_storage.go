package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

// ErrModelNotFound indicates the evaluation store has no record for a model.
var ErrModelNotFound = errors.New("model not found")

// EvaluationRun is the lifecycle row for one evaluation request.
type EvaluationRun struct {
	EvaluationID    string `json:"evaluationId"`
	Status          string `json:"status"`
	DatasetID       string `json:"datasetId"`
	EvalWorkers     int    `json:"evalWorkers"`
	TotalModels     int    `json:"totalModels"`
	CompletedModels int    `json:"completedModels"`
	FailedModels    int    `json:"failedModels"`
	StartedAt       string `json:"startedAt"`
	CompletedAt     string `json:"completedAt"`
}

// EvaluationResult is one model's metrics within an evaluation run.
type EvaluationResult struct {
	EvaluationID string  `json:"evaluationId"`
	ModelID      string  `json:"modelId"`
	ModelVersion string  `json:"modelVersion"`
	Status       string  `json:"status"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	Accuracy     float64 `json:"accuracy"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	EvaluatedAt  string  `json:"evaluatedAt"`
}

// ActiveModel is the registry's activation record for one model.
type ActiveModel struct {
	ModelID      string `json:"modelId"`
	ModelVersion string `json:"modelVersion"`
	IsActive     bool   `json:"isActive"`
	ActivatedAt  string `json:"activatedAt"`
	ActivatedBy  string `json:"activatedBy"`
}

// ActivationHistoryEntry records one activation or rollback action.
type ActivationHistoryEntry struct {
	ModelID      string `json:"modelId"`
	ModelVersion string `json:"modelVersion"`
	Action       string `json:"action"`
	Actor        string `json:"actor"`
	OccurredAt   string `json:"occurredAt"`
}

// RetrainJob is the lifecycle row for one retrain attempt.
type RetrainJob struct {
	JobID           string `json:"jobId"`
	ModelID         string `json:"modelId"`
	Status          string `json:"status"`
	PreviousVersion string `json:"previousVersion"`
	NewVersion      string `json:"newVersion"`
	LabelCount      int    `json:"labelCount"`
	ArtifactPath    string `json:"artifactPath"`
	Reason          string `json:"reason"`
	TriggeredBy     string `json:"triggeredBy"`
	StartedAt       string `json:"startedAt"`
	CompletedAt     string `json:"completedAt"`
}

// EvaluationStorage persists evaluation runs, results, model activation
// state and retrain job history.
type EvaluationStorage struct {
	db     *sql.DB
	logger arbor.ILogger

	// activationMu serializes activation state changes so that at most one
	// model is active at any observable point.
	activationMu sync.Mutex
}

// NewEvaluationStorage opens the evaluation store at path and ensures its schema.
func NewEvaluationStorage(path string, logger arbor.ILogger) (*EvaluationStorage, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, evaluationMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate evaluation store: %w", err)
	}
	return &EvaluationStorage{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *EvaluationStorage) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new evaluation run row.
func (s *EvaluationStorage) CreateRun(run *EvaluationRun) error {
	_, err := s.db.Exec(`INSERT INTO evaluation_runs
		(evaluation_id, status, dataset_id, eval_workers, total_models, completed_models, failed_models, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.EvaluationID, run.Status, run.DatasetID, run.EvalWorkers, run.TotalModels,
		run.CompletedModels, run.FailedModels, run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create evaluation run: %w", err)
	}
	return nil
}

// UpdateRunProgress bumps the completed and failed counters.
func (s *EvaluationStorage) UpdateRunProgress(evaluationID string, completed, failed int) error {
	_, err := s.db.Exec(`UPDATE evaluation_runs
		SET completed_models = ?, failed_models = ?
		WHERE evaluation_id = ?`, completed, failed, evaluationID)
	if err != nil {
		return fmt.Errorf("failed to update evaluation progress: %w", err)
	}
	return nil
}

// CompleteRun finalizes an evaluation run with its terminal status.
func (s *EvaluationStorage) CompleteRun(evaluationID, status, completedAt string) error {
	_, err := s.db.Exec(`UPDATE evaluation_runs
		SET status = ?, completed_at = ?
		WHERE evaluation_id = ?`, status, completedAt, evaluationID)
	if err != nil {
		return fmt.Errorf("failed to complete evaluation run: %w", err)
	}
	return nil
}

// GetRun returns one evaluation run, or nil when it does not exist.
func (s *EvaluationStorage) GetRun(evaluationID string) (*EvaluationRun, error) {
	var run EvaluationRun
	err := s.db.QueryRow(`SELECT evaluation_id, status, dataset_id, eval_workers, total_models,
		completed_models, failed_models, started_at, completed_at
		FROM evaluation_runs WHERE evaluation_id = ?`, evaluationID).Scan(
		&run.EvaluationID, &run.Status, &run.DatasetID, &run.EvalWorkers, &run.TotalModels,
		&run.CompletedModels, &run.FailedModels, &run.StartedAt, &run.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation run: %w", err)
	}
	return &run, nil
}

// StoreResult upserts a model's result for an evaluation, keyed by
// (evaluation_id, model_id, model_version). Re-running an evaluation for the
// same model version overwrites the earlier row.
func (s *EvaluationStorage) StoreResult(result *EvaluationResult) error {
	_, err := s.db.Exec(`INSERT INTO evaluation_results
		(evaluation_id, model_id, model_version, status, precision_score, recall_score, f1_score, accuracy_score, error_message, evaluated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(evaluation_id, model_id, model_version) DO UPDATE SET
			status = excluded.status,
			precision_score = excluded.precision_score,
			recall_score = excluded.recall_score,
			f1_score = excluded.f1_score,
			accuracy_score = excluded.accuracy_score,
			error_message = excluded.error_message,
			evaluated_at = excluded.evaluated_at`,
		result.EvaluationID, result.ModelID, result.ModelVersion, result.Status,
		result.Precision, result.Recall, result.F1, result.Accuracy,
		result.ErrorMessage, result.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("failed to store evaluation result: %w", err)
	}
	return nil
}

// ListResults returns all results for an evaluation ordered by model id.
func (s *EvaluationStorage) ListResults(evaluationID string) ([]*EvaluationResult, error) {
	rows, err := s.db.Query(`SELECT evaluation_id, model_id, model_version, status,
		precision_score, recall_score, f1_score, accuracy_score, error_message, evaluated_at
		FROM evaluation_results WHERE evaluation_id = ? ORDER BY model_id`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// LatestCompletedResult returns a model's most recent completed evaluation
// result across all runs, or nil when none exists.
func (s *EvaluationStorage) LatestCompletedResult(modelID string) (*EvaluationResult, error) {
	rows, err := s.db.Query(`SELECT evaluation_id, model_id, model_version, status,
		precision_score, recall_score, f1_score, accuracy_score, error_message, evaluated_at
		FROM evaluation_results
		WHERE model_id = ? AND status = 'completed'
		ORDER BY evaluated_at DESC, id DESC LIMIT 1`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest result: %w", err)
	}
	defer rows.Close()
	results, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// ActivateModel makes the given model version the single active model. The
// previous active model (if different) is deactivated in the same
// transaction and both transitions are recorded in the history.
func (s *EvaluationStorage) ActivateModel(modelID, modelVersion, actor, action, occurredAt string) error {
	s.activationMu.Lock()
	defer s.activationMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}

	if _, err := tx.Exec(`UPDATE active_models SET is_active = 0 WHERE is_active = 1 AND model_id != ?`, modelID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to deactivate previous model: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO active_models (model_id, model_version, is_active, activated_at, activated_by)
		VALUES (?,?,1,?,?)
		ON CONFLICT(model_id) DO UPDATE SET
			model_version = excluded.model_version,
			is_active = 1,
			activated_at = excluded.activated_at,
			activated_by = excluded.activated_by`,
		modelID, modelVersion, occurredAt, actor)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to activate model: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO model_activation_history (model_id, model_version, action, actor, occurred_at)
		VALUES (?,?,?,?,?)`, modelID, modelVersion, action, actor, occurredAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record activation history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	if s.logger != nil {
		s.logger.Info().
			Str("model_id", modelID).
			Str("model_version", modelVersion).
			Str("action", action).
			Msg("Model activation state changed")
	}
	return nil
}

// GetActiveModel returns the currently active model, or nil when none is active.
func (s *EvaluationStorage) GetActiveModel() (*ActiveModel, error) {
	var model ActiveModel
	var isActive int
	err := s.db.QueryRow(`SELECT model_id, model_version, is_active, activated_at, activated_by
		FROM active_models WHERE is_active = 1 LIMIT 1`).Scan(
		&model.ModelID, &model.ModelVersion, &isActive, &model.ActivatedAt, &model.ActivatedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active model: %w", err)
	}
	model.IsActive = isActive != 0
	return &model, nil
}

// ListActivationHistory returns history entries newest first.
func (s *EvaluationStorage) ListActivationHistory(limit int) ([]*ActivationHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT model_id, model_version, action, actor, occurred_at
		FROM model_activation_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activation history: %w", err)
	}
	defer rows.Close()

	var entries []*ActivationHistoryEntry
	for rows.Next() {
		var entry ActivationHistoryEntry
		if err := rows.Scan(&entry.ModelID, &entry.ModelVersion, &entry.Action, &entry.Actor, &entry.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// LatestResultsPerModel returns each model's most recent evaluation result
// joined with the dataset it was evaluated against, ordered by model id.
func (s *EvaluationStorage) LatestResultsPerModel() ([]*ComparisonRow, error) {
	rows, err := s.db.Query(`SELECT r.evaluation_id, r.model_id, r.model_version, r.status,
		r.precision_score, r.recall_score, r.f1_score, r.accuracy_score, r.error_message, r.evaluated_at,
		COALESCE(e.dataset_id, '')
		FROM evaluation_results r
		LEFT JOIN evaluation_runs e ON e.evaluation_id = r.evaluation_id
		WHERE r.id IN (SELECT MAX(id) FROM evaluation_results GROUP BY model_id)
		ORDER BY r.model_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest results per model: %w", err)
	}
	defer rows.Close()

	var results []*ComparisonRow
	for rows.Next() {
		var row ComparisonRow
		err := rows.Scan(&row.EvaluationID, &row.ModelID, &row.ModelVersion, &row.Status,
			&row.Precision, &row.Recall, &row.F1, &row.Accuracy,
			&row.ErrorMessage, &row.EvaluatedAt, &row.DatasetID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comparison row: %w", err)
		}
		results = append(results, &row)
	}
	return results, rows.Err()
}

// ComparisonRow is a model's latest evaluation result with its dataset.
type ComparisonRow struct {
	EvaluationResult
	DatasetID string `json:"datasetId"`
}

// CreateRetrainJob inserts a new retrain job row.
func (s *EvaluationStorage) CreateRetrainJob(job *RetrainJob) error {
	_, err := s.db.Exec(`INSERT INTO retrain_jobs
		(job_id, model_id, status, previous_version, new_version, label_count, artifact_path, reason, triggered_by, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		job.JobID, job.ModelID, job.Status, job.PreviousVersion, job.NewVersion,
		job.LabelCount, job.ArtifactPath, job.Reason, job.TriggeredBy, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create retrain job: %w", err)
	}
	return nil
}

// UpdateRetrainJob finalizes a retrain job row.
func (s *EvaluationStorage) UpdateRetrainJob(job *RetrainJob) error {
	_, err := s.db.Exec(`UPDATE retrain_jobs
		SET status = ?, new_version = ?, label_count = ?, artifact_path = ?, reason = ?, completed_at = ?
		WHERE job_id = ?`,
		job.Status, job.NewVersion, job.LabelCount, job.ArtifactPath, job.Reason, job.CompletedAt, job.JobID)
	if err != nil {
		return fmt.Errorf("failed to update retrain job: %w", err)
	}
	return nil
}

const retrainJobColumns = `job_id, model_id, status, previous_version, new_version,
	label_count, artifact_path, reason, triggered_by, started_at, completed_at`

func scanRetrainJob(row interface{ Scan(...any) error }) (*RetrainJob, error) {
	var job RetrainJob
	err := row.Scan(&job.JobID, &job.ModelID, &job.Status, &job.PreviousVersion, &job.NewVersion,
		&job.LabelCount, &job.ArtifactPath, &job.Reason, &job.TriggeredBy, &job.StartedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetRetrainJob returns one retrain job, or nil when it does not exist.
func (s *EvaluationStorage) GetRetrainJob(jobID string) (*RetrainJob, error) {
	job, err := scanRetrainJob(s.db.QueryRow(`SELECT `+retrainJobColumns+`
		FROM retrain_jobs WHERE job_id = ?`, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retrain job: %w", err)
	}
	return job, nil
}

// LatestRetrainJob returns the most recently started retrain job, or nil
// when none has run.
func (s *EvaluationStorage) LatestRetrainJob() (*RetrainJob, error) {
	job, err := scanRetrainJob(s.db.QueryRow(`SELECT ` + retrainJobColumns + `
		FROM retrain_jobs ORDER BY started_at DESC, job_id DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest retrain job: %w", err)
	}
	return job, nil
}

// HasRunningRetrainJob reports whether any retrain job is still running.
func (s *EvaluationStorage) HasRunningRetrainJob() (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM retrain_jobs WHERE status = 'running'`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count running retrain jobs: %w", err)
	}
	return count > 0, nil
}

// ListRetrainJobs returns retrain jobs newest first, up to limit.
func (s *EvaluationStorage) ListRetrainJobs(limit int) ([]*RetrainJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+retrainJobColumns+`
		FROM retrain_jobs ORDER BY started_at DESC, job_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retrain jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*RetrainJob
	for rows.Next() {
		job, err := scanRetrainJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retrain job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LastCompletedRetrainAt returns the completed_at of a model's most recent
// completed retrain, or empty when there is none.
func (s *EvaluationStorage) LastCompletedRetrainAt(modelID string) (string, error) {
	var completedAt string
	err := s.db.QueryRow(`SELECT completed_at FROM retrain_jobs
		WHERE model_id = ? AND status = 'completed'
		ORDER BY completed_at DESC LIMIT 1`, modelID).Scan(&completedAt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last retrain: %w", err)
	}
	return completedAt, nil
}

func scanResults(rows *sql.Rows) ([]*EvaluationResult, error) {
	var results []*EvaluationResult
	for rows.Next() {
		var result EvaluationResult
		err := rows.Scan(&result.EvaluationID, &result.ModelID, &result.ModelVersion, &result.Status,
			&result.Precision, &result.Recall, &result.F1, &result.Accuracy,
			&result.ErrorMessage, &result.EvaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation result: %w", err)
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}
