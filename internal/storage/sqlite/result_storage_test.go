package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-platform/internal/models"
)

func newTestResultStorage(t *testing.T) *ResultStorage {
	t.Helper()
	storage, err := NewResultStorage(filepath.Join(t.TempDir(), "run.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestResultStorage_WriteAndList(t *testing.T) {
	storage := newTestResultStorage(t)

	items := []*models.RunItem{
		{RunID: "run-1", QueryText: "golang jobs", Domain: "example.com", SearchQuery: "site:example.com golang jobs",
			NormalizedURL: "https://example.com/a", CreatedAt: "2026-08-24T10:00:00Z"},
		{RunID: "run-1", QueryText: "golang jobs", Domain: "example.com", SearchQuery: "site:example.com golang jobs",
			NormalizedURL: "https://example.com/b", CreatedAt: "2026-08-24T10:00:00Z"},
	}
	require.NoError(t, storage.WriteAll(items))

	listed, err := storage.ListForDedupe("run-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "https://example.com/a", listed[0].NormalizedURL)
	assert.Greater(t, listed[0].ID, int64(0))
}

func TestResultStorage_ListForDedupeFiltersDuplicatesOnly(t *testing.T) {
	storage := newTestResultStorage(t)

	require.NoError(t, storage.WriteAll([]*models.RunItem{
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", NormalizedURL: "https://d.com/x"},
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", SkipReason: "revisit_throttle"},
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", NormalizedURL: "https://d.com/y",
			IsDuplicate: true, IsHidden: true},
	}))

	// Rows without a normalized URL are listed; already-marked duplicates are not.
	listed, err := storage.ListForDedupe("run-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "https://d.com/x", listed[0].NormalizedURL)
	assert.Empty(t, listed[1].NormalizedURL)
}

func TestResultStorage_ApplyDedupeAndScores(t *testing.T) {
	storage := newTestResultStorage(t)

	require.NoError(t, storage.WriteAll([]*models.RunItem{
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", NormalizedURL: "https://d.com/x"},
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", NormalizedURL: "https://d.com/x"},
	}))

	items, err := storage.ListForDedupe("run-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, storage.ApplyDedupe([]DuplicateMark{
		{ID: items[0].ID, DuplicateCount: 1},
		{ID: items[1].ID, IsDuplicate: true, IsHidden: true, CanonicalID: items[0].ID},
	}))

	all, err := storage.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].DuplicateCount)
	assert.False(t, all[0].IsHidden)
	assert.True(t, all[1].IsDuplicate)
	assert.True(t, all[1].IsHidden)

	unscored, err := storage.ListUnscored("run-1")
	require.NoError(t, err)
	require.Len(t, unscored, 1)
	assert.Equal(t, items[0].ID, unscored[0].ID)

	require.NoError(t, storage.ApplyScores([]ScoreMark{
		{ID: items[0].ID, Score: 0.8, ScoreModel: "baseline", ScoredAt: "2026-08-24T10:05:00Z"},
	}))

	relevant, err := storage.CountRelevant("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, relevant)

	remaining, err := storage.ListUnscored("run-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestResultStorage_ListScoredSince(t *testing.T) {
	storage := newTestResultStorage(t)

	require.NoError(t, storage.WriteAll([]*models.RunItem{
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", NormalizedURL: "https://d.com/1",
			Scored: true, Score: 0.5, ScoredAt: "2026-08-23T10:00:00Z"},
		{RunID: "run-1", QueryText: "q", Domain: "d.com", SearchQuery: "s", NormalizedURL: "https://d.com/2",
			Scored: true, Score: -0.2, ScoredAt: "2026-08-24T10:00:00Z"},
	}))

	// Strictly-after boundary: items scored exactly at the cutoff are excluded.
	since, err := storage.ListScoredSince("2026-08-23T10:00:00Z")
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "https://d.com/2", since[0].NormalizedURL)
}
