package retrain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/activation"
	"github.com/pjsousa/jobato-platform/internal/services/registry"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
	"github.com/pjsousa/jobato-platform/internal/worker"
)

func TestNextVersion(t *testing.T) {
	trainedAt := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)

	assert.Equal(t, "1.0-20260824060000", NextVersion("1.0", trainedAt))
	// Retraining a retrained version appends another suffix.
	assert.Equal(t, "1.0-20260101120000-20260824060000", NextVersion("1.0-20260101120000", trainedAt))
	assert.Equal(t, "2.0-rc1-20260824060000", NextVersion("2.0-rc1", trainedAt))
	// Empty previous starts from v0.
	assert.Equal(t, "v0-20260824060000", NextVersion("", trainedAt))
	assert.Equal(t, "v0-20260824060000", NextVersion("   ", trainedAt))
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteArtifact(dir, &Artifact{
		ModelID:      "keyword",
		ModelVersion: "1.0-20260824060000",
		TrainedAt:    "2026-08-24T06:00:00Z",
		Metrics:      map[string]float64{"f1": 0.8},
	}, []byte(`{"weights":{"golang":0.9}}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "keyword_1.0-20260824060000.pkl"), path)

	artifact, state, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "keyword", artifact.ModelID)
	assert.Equal(t, 0.8, artifact.Metrics["f1"])
	assert.JSONEq(t, `{"weights":{"golang":0.9}}`, string(state))

	assert.NoError(t, ValidateArtifact(path, "keyword", "1.0-20260824060000"))
	assert.Error(t, ValidateArtifact(path, "baseline", "1.0-20260824060000"))
	assert.Error(t, ValidateArtifact(path, "keyword", "9.9"))
}

func newRetrainFixture(t *testing.T) (*Service, *sqlite.EvaluationStorage, string) {
	t.Helper()
	dataDir := t.TempDir()

	store, err := sqlite.NewEvaluationStorage(filepath.Join(dataDir, "db", "evaluation_store.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.NewRegistry([]registry.ModelEntry{
		{ID: "baseline", ClassName: "BaselineModel", Version: "1.0", Enabled: true},
		{ID: "keyword", ClassName: "KeywordModel", Version: "1.0", Enabled: true, Default: true},
	}, nil)

	activator := activation.NewService(reg, store, nil)
	service := NewService(reg, store, activator, dataDir, filepath.Join(dataDir, "models", "trained"), nil)
	return service, store, dataDir
}

func activateFixtureModel(t *testing.T, store *sqlite.EvaluationStorage, modelID, version string) {
	t.Helper()
	require.NoError(t, store.ActivateModel(modelID, version, "test", "activated", "2026-08-19T00:00:00Z"))
}

func seedScoredRun(t *testing.T, dataDir, runID string, scoredAt string) {
	t.Helper()
	path, err := worker.PrepareRunDatabase(dataDir, runID)
	require.NoError(t, err)
	storage, err := sqlite.NewResultStorage(path, nil)
	require.NoError(t, err)
	require.NoError(t, storage.WriteAll([]*models.RunItem{
		{RunID: runID, QueryText: "q", Domain: "d.com", SearchQuery: "s",
			Title: "golang engineer job opening", Scored: true, Score: 0.8, ScoredAt: scoredAt},
		{RunID: runID, QueryText: "q", Domain: "d.com", SearchQuery: "s",
			Title: "random travel blog entry", Scored: true, Score: -0.5, ScoredAt: scoredAt},
	}))
	require.NoError(t, storage.Close())
	require.NoError(t, worker.UpdateDBPointer(dataDir, runID))
}

func TestRun_CompletesAndPromotes(t *testing.T) {
	service, store, dataDir := newRetrainFixture(t)
	seedScoredRun(t, dataDir, "run-1", "2026-08-20T10:00:00Z")
	activateFixtureModel(t, store, "keyword", "1.0")

	job, err := service.Run("manual")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "keyword", job.ModelID)
	assert.Equal(t, "manual", job.TriggeredBy)
	assert.Equal(t, "1.0", job.PreviousVersion)
	assert.Contains(t, job.NewVersion, "1.0-")
	assert.Equal(t, 2, job.LabelCount)
	assert.FileExists(t, job.ArtifactPath)

	active, err := store.GetActiveModel()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "keyword", active.ModelID)
	assert.Equal(t, job.NewVersion, active.ModelVersion)
	assert.Equal(t, "retrain", active.ActivatedBy)

	stored, err := store.GetRetrainJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, "manual", stored.TriggeredBy)

	status, err := service.CurrentStatus()
	require.NoError(t, err)
	require.NotNil(t, status.Latest)
	assert.Equal(t, job.JobID, status.Latest.JobID)
	assert.False(t, status.Running)

	history, err := service.History(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, job.JobID, history[0].JobID)
}

func TestRun_SkippedWithoutNewLabels(t *testing.T) {
	service, store, _ := newRetrainFixture(t)
	activateFixtureModel(t, store, "keyword", "1.0")

	job, err := service.Run("manual")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, job.Status)
	assert.Contains(t, job.Reason, "no new labels")
}

func TestRun_SkippedWhenLabelsPredateLastRetrain(t *testing.T) {
	service, store, dataDir := newRetrainFixture(t)
	seedScoredRun(t, dataDir, "run-1", "2026-08-20T10:00:00Z")
	activateFixtureModel(t, store, "keyword", "1.0")

	first, err := service.Run("manual")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, first.Status)

	// Same data, no rows scored after the first retrain completed.
	second, err := service.Run("scheduled")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)

	last, err := store.LastCompletedRetrainAt("keyword")
	require.NoError(t, err)
	assert.Equal(t, first.CompletedAt, last)
}

func TestRun_NoActiveModel(t *testing.T) {
	service, _, _ := newRetrainFixture(t)
	_, err := service.Run("manual")
	assert.ErrorIs(t, err, ErrNoActiveModel)
}

func TestRun_ActiveModelNotRegistered(t *testing.T) {
	service, store, _ := newRetrainFixture(t)
	activateFixtureModel(t, store, "ghost", "1.0")

	_, err := service.Run("manual")
	assert.ErrorIs(t, err, ErrModelNotRegistered)
}

func TestRun_StatelessModelRejected(t *testing.T) {
	service, store, _ := newRetrainFixture(t)
	activateFixtureModel(t, store, "baseline", "1.0")

	_, err := service.Run("manual")
	assert.ErrorIs(t, err, ErrModelNotStateful)
}

func TestParseDailySchedule(t *testing.T) {
	_, err := ParseDailySchedule("0 6 * * *")
	assert.NoError(t, err)

	_, err = ParseDailySchedule("30 23 * * *")
	assert.NoError(t, err)

	_, err = ParseDailySchedule("0 6 1 * *")
	assert.Error(t, err)

	_, err = ParseDailySchedule("0 6 * * 1")
	assert.Error(t, err)

	_, err = ParseDailySchedule("0 6 * *")
	assert.Error(t, err)

	_, err = ParseDailySchedule("61 6 * * *")
	assert.Error(t, err)

	// Only a plain numeric minute and hour qualify as daily.
	_, err = ParseDailySchedule("* 6 * * *")
	assert.Error(t, err)

	_, err = ParseDailySchedule("0 * * * *")
	assert.Error(t, err)

	_, err = ParseDailySchedule("*/5 6 * * *")
	assert.Error(t, err)

	_, err = ParseDailySchedule("0-30 6 * * *")
	assert.Error(t, err)

	_, err = ParseDailySchedule("0 25 * * *")
	assert.Error(t, err)
}

func TestScheduler_TriggerIfDue(t *testing.T) {
	service, _, _ := newRetrainFixture(t)
	scheduler, err := NewScheduler(service, "0 6 * * *", nil)
	require.NoError(t, err)

	next := scheduler.NextRunAt()

	// Before the firing time nothing happens.
	assert.False(t, scheduler.TriggerIfDue(next.Add(-time.Minute)))
	assert.Equal(t, next, scheduler.NextRunAt())

	// At the firing time it fires and advances strictly past now.
	assert.True(t, scheduler.TriggerIfDue(next))
	advanced := scheduler.NextRunAt()
	assert.True(t, advanced.After(next))
	assert.Equal(t, 6, advanced.Hour())
}
