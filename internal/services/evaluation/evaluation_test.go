package evaluation

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
	"github.com/pjsousa/jobato-platform/internal/worker"
)

func TestLoadWorkerCount(t *testing.T) {
	t.Run("missing file yields default", func(t *testing.T) {
		assert.Equal(t, 3, LoadWorkerCount(t.TempDir()))
	})

	write := func(t *testing.T, content string) string {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "ml"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ml", "ml-config.yaml"), []byte(content), 0644))
		return dir
	}

	t.Run("configured value", func(t *testing.T) {
		assert.Equal(t, 5, LoadWorkerCount(write(t, "evalWorkers: 5\n")))
	})

	t.Run("clamped above ten", func(t *testing.T) {
		assert.Equal(t, 10, LoadWorkerCount(write(t, "evalWorkers: 64\n")))
	})

	t.Run("clamped below one", func(t *testing.T) {
		assert.Equal(t, 1, LoadWorkerCount(write(t, "evalWorkers: -2\n")))
	})

	t.Run("garbage yields default", func(t *testing.T) {
		assert.Equal(t, 3, LoadWorkerCount(write(t, "{not yaml")))
	})
}

func TestRunPool(t *testing.T) {
	var calls int64
	results := runPool(4, []int{1, 2, 3, 4, 5, 6, 7, 8},
		func(job int) int {
			atomic.AddInt64(&calls, 1)
			return job * 2
		},
		func(job int, recovered interface{}) int { return -1 })

	assert.Equal(t, int64(8), calls)
	assert.Len(t, results, 8)

	sum := 0
	for _, r := range results {
		sum += r
	}
	assert.Equal(t, 72, sum)
}

func TestRunPool_PanicRecovered(t *testing.T) {
	results := runPool(2, []int{1, 2, 3},
		func(job int) int {
			if job == 2 {
				panic("boom")
			}
			return job
		},
		func(job int, recovered interface{}) int { return -job })

	assert.Len(t, results, 3)
	negatives := 0
	for _, r := range results {
		if r < 0 {
			negatives++
		}
	}
	assert.Equal(t, 1, negatives)
}

func TestBuildDataset_SyntheticWhenNoActiveDB(t *testing.T) {
	dataset, err := BuildDataset(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, SyntheticDatasetID, dataset.ID)
	require.Len(t, dataset.Features, 2)
	assert.Equal(t, []int{1, 0}, dataset.Labels)
}

func TestBuildDataset_FromScoredRows(t *testing.T) {
	dataDir := t.TempDir()

	path, err := worker.PrepareRunDatabase(dataDir, "run-1")
	require.NoError(t, err)
	storage, err := sqlite.NewResultStorage(path, nil)
	require.NoError(t, err)
	require.NoError(t, storage.WriteAll([]*models.RunItem{
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s",
			Title: "engineer job", Scored: true, Score: 0.7, ScoredAt: "2026-08-24T10:00:00Z"},
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s",
			Title: "blog post", Scored: true, Score: -0.4, ScoredAt: "2026-08-24T10:00:00Z"},
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s",
			Title: "unscored row"},
	}))
	require.NoError(t, storage.Close())
	require.NoError(t, worker.UpdateDBPointer(dataDir, "run-1"))

	dataset, err := BuildDataset(dataDir, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-1.db:2", dataset.ID)
	assert.Equal(t, []int{1, 0}, dataset.Labels)
	assert.Equal(t, "engineer job", dataset.Features[0].Title)
}

func newEvaluationService(t *testing.T) (*Service, *sqlite.EvaluationStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.NewEvaluationStorage(filepath.Join(dir, "evaluation_store.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.NewRegistry([]registry.ModelEntry{
		{ID: "baseline", ClassName: "BaselineModel", Version: "1.0", Enabled: true, Default: true},
		{ID: "keyword", ClassName: "KeywordModel", Version: "1.0", Enabled: true},
	}, nil)

	return NewService(reg, store, dir, 2, nil), store
}

func waitForRun(t *testing.T, service *Service, evaluationID string) *sqlite.EvaluationRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, _, err := service.GetRun(evaluationID)
		require.NoError(t, err)
		require.NotNil(t, run)
		if run.Status != StatusRunning {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("evaluation did not finish in time")
	return nil
}

func TestTrigger_EvaluatesAllModels(t *testing.T) {
	service, _ := newEvaluationService(t)

	response, err := service.Trigger()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, response.Status)
	assert.Equal(t, 2, response.TotalModels)
	assert.Equal(t, SyntheticDatasetID, response.DatasetID)

	run := waitForRun(t, service, response.EvaluationID)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 2, run.CompletedModels)
	assert.Equal(t, 0, run.FailedModels)
	assert.NotEmpty(t, run.CompletedAt)

	_, results, err := service.GetRun(response.EvaluationID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, "completed", result.Status)
		assert.GreaterOrEqual(t, result.Accuracy, 0.0)
		assert.LessOrEqual(t, result.Accuracy, 1.0)
	}
}

func TestTrigger_NoModels(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.NewEvaluationStorage(filepath.Join(dir, "evaluation_store.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	service := NewService(registry.NewRegistry(nil, nil), store, dir, 2, nil)
	_, err = service.Trigger()
	assert.Error(t, err)
}

func TestRecordResult_PersistsIncrementally(t *testing.T) {
	service, store := newEvaluationService(t)
	require.NoError(t, store.CreateRun(&sqlite.EvaluationRun{
		EvaluationID: "eval-1", Status: StatusRunning, DatasetID: "synthetic",
		EvalWorkers: 2, TotalModels: 2, StartedAt: "2026-08-24T10:00:00Z",
	}))

	var progress runProgress
	service.recordResult("eval-1", &progress, modelResult{
		result: &sqlite.EvaluationResult{
			EvaluationID: "eval-1", ModelID: "baseline", ModelVersion: "1.0",
			Status: "completed", EvaluatedAt: "2026-08-24T10:01:00Z",
		},
	})

	// Each result row and the run counters land as soon as a model finishes,
	// before the other models are done.
	run, results, err := service.GetRun("eval-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.CompletedModels)
	assert.Equal(t, 0, run.FailedModels)
	require.Len(t, results, 1)

	service.recordResult("eval-1", &progress, modelResult{
		failed: true,
		result: &sqlite.EvaluationResult{
			EvaluationID: "eval-1", ModelID: "keyword", ModelVersion: "1.0",
			Status: "failed", ErrorMessage: "training failed", EvaluatedAt: "2026-08-24T10:02:00Z",
		},
	})

	run, results, err = service.GetRun("eval-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.CompletedModels)
	assert.Equal(t, 1, run.FailedModels)
	assert.Len(t, results, 2)
}

func TestGetRun_Missing(t *testing.T) {
	service, _ := newEvaluationService(t)
	run, results, err := service.GetRun("missing")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.Nil(t, results)
}
