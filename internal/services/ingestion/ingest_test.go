package ingestion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/cache"
	"github.com/pjsousa/jobato-platform/internal/services/fetch"
	"github.com/pjsousa/jobato-platform/internal/services/quota"
	"github.com/pjsousa/jobato-platform/internal/services/search"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

func newTestIngestor(t *testing.T, dailyLimit int) (*Ingestor, *sqlite.ResultStorage, string) {
	t.Helper()
	dataDir := t.TempDir()

	quotaStore, err := sqlite.NewQuotaStorage(filepath.Join(dataDir, "db", "quota.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { quotaStore.Close() })

	quotaConfig := quota.DefaultConfig()
	quotaConfig.DailyLimit = dailyLimit
	dispatcher := quota.NewDispatcher(quotaConfig, quotaStore, nil)

	cacheService := cache.NewService(dataDir, cache.DefaultPolicy(), nil)
	fetcher := fetch.NewHTMLFetcher(dataDir, nil)

	ingestor := NewIngestor(search.NewMockClient(nil), fetch.NewMockResolver(), fetcher, cacheService, dispatcher, nil)

	runStore, err := sqlite.NewResultStorage(filepath.Join(dataDir, "db", "runs", "run-1.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { runStore.Close() })

	return ingestor, runStore, dataDir
}

func TestIngestor_Run(t *testing.T) {
	ingestor, runStore, _ := newTestIngestor(t, 10)

	inputs := []models.RunInput{
		{QueryID: "query-1", QueryText: "golang engineer", Domain: "example.com", SearchQuery: "site:example.com golang engineer"},
	}
	outcome, err := ingestor.Run(context.Background(), runStore, "run-1", inputs)
	require.NoError(t, err)

	assert.Equal(t, "completed", outcome.Status)
	assert.Equal(t, 1, outcome.IssuedCalls)
	assert.Equal(t, 3, outcome.PersistedResults)
	assert.Equal(t, 3, outcome.NewJobsCount)
	assert.Equal(t, 0, outcome.CacheHits)

	items, err := runStore.ListForDedupe("run-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, "query-1", item.QueryID)
		assert.NotEmpty(t, item.CacheKey)
		assert.NotEmpty(t, item.CachedAt)
		assert.NotEmpty(t, item.CacheExpiresAt)
		assert.NotEmpty(t, item.HTMLPath)
		assert.NotEmpty(t, item.VisibleText)
		assert.Empty(t, item.FetchError)
		assert.Empty(t, item.NormalizationError)
		assert.Empty(t, item.ExtractError)
	}
}

func TestIngestor_ZeroResults(t *testing.T) {
	ingestor, runStore, _ := newTestIngestor(t, 10)

	inputs := []models.RunInput{
		{QueryText: "golang and rust", Domain: "example.com", SearchQuery: "site:example.com golang and rust"},
	}
	outcome, err := ingestor.Run(context.Background(), runStore, "run-1", inputs)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.IssuedCalls)
	require.Len(t, outcome.ZeroResults, 1)
	assert.Equal(t, "golang and rust", outcome.ZeroResults[0].QueryText)
	assert.Equal(t, "example.com", outcome.ZeroResults[0].Domain)
	assert.NotEmpty(t, outcome.ZeroResults[0].OccurredAt)
	assert.Equal(t, 0, outcome.PersistedResults)
}

func TestIngestor_QuotaPartial(t *testing.T) {
	ingestor, runStore, _ := newTestIngestor(t, 1)

	inputs := []models.RunInput{
		{QueryText: "golang engineer", Domain: "example.com", SearchQuery: "site:example.com golang engineer"},
		{QueryText: "rust developer", Domain: "example.com", SearchQuery: "site:example.com rust developer"},
	}
	outcome, err := ingestor.Run(context.Background(), runStore, "run-1", inputs)
	require.NoError(t, err)

	assert.Equal(t, "partial", outcome.Status)
	assert.Equal(t, "quota-reached", outcome.Reason)
	assert.Equal(t, 1, outcome.IssuedCalls)
	assert.Equal(t, 3, outcome.PersistedResults)
}

func TestIngestor_CacheHitBypassesQuota(t *testing.T) {
	// First pass populates the cache under a zero-limit follow-up.
	ingestor, runStore, dataDir := newTestIngestor(t, 10)
	inputs := []models.RunInput{
		{QueryText: "golang engineer", Domain: "example.com", SearchQuery: "site:example.com golang engineer"},
	}
	_, err := ingestor.Run(context.Background(), runStore, "run-1", inputs)
	require.NoError(t, err)
	require.NoError(t, runStore.Close())

	// Second run with an exhausted budget still serves from cache.
	quotaStore, err := sqlite.NewQuotaStorage(filepath.Join(dataDir, "db", "quota2.db"), nil)
	require.NoError(t, err)
	defer quotaStore.Close()

	quotaConfig := quota.DefaultConfig()
	quotaConfig.DailyLimit = 0
	dispatcher := quota.NewDispatcher(quotaConfig, quotaStore, nil)
	cacheService := cache.NewService(dataDir, cache.DefaultPolicy(), nil)
	fetcher := fetch.NewHTMLFetcher(dataDir, nil)
	second := NewIngestor(search.NewMockClient(nil), fetch.NewMockResolver(), fetcher, cacheService, dispatcher, nil)

	secondStore, err := sqlite.NewResultStorage(filepath.Join(dataDir, "db", "runs", "run-2.db"), nil)
	require.NoError(t, err)
	defer secondStore.Close()

	outcome, err := second.Run(context.Background(), secondStore, "run-2", inputs)
	require.NoError(t, err)

	assert.Equal(t, "completed", outcome.Status)
	assert.Equal(t, 1, outcome.CacheHits)
	assert.Equal(t, 0, outcome.IssuedCalls)
	assert.Equal(t, 3, outcome.PersistedResults)

	items, err := secondStore.ListForDedupe("run-2")
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, "run-2", item.RunID)
		assert.False(t, item.Scored)
		assert.False(t, item.IsDuplicate)
	}
}

func TestIngestor_CacheReplayRefreshesTimestamps(t *testing.T) {
	ingestor, runStore, dataDir := newTestIngestor(t, 10)

	// Seed an earlier run whose cache entry is still fresh but was written
	// hours ago with a near-term expiry.
	key := cache.GenerateCacheKey("golang engineer", "example.com")
	seeded, err := sqlite.NewResultStorage(filepath.Join(dataDir, "db", "runs", "run-0.db"), nil)
	require.NoError(t, err)
	staleCachedAt := time.Now().UTC().Add(-20 * time.Hour).Format("2006-01-02T15:04:05Z")
	nearExpiry := time.Now().UTC().Add(2 * time.Hour).Format("2006-01-02T15:04:05Z")
	require.NoError(t, seeded.WriteAll([]*models.RunItem{
		{RunID: "run-0", QueryText: "golang engineer", Domain: "example.com", SearchQuery: "s",
			CacheKey: key, CachedAt: staleCachedAt, CacheExpiresAt: nearExpiry,
			NormalizedURL: "https://example.com/cached"},
	}))
	require.NoError(t, seeded.Close())

	inputs := []models.RunInput{
		{QueryText: "golang engineer", Domain: "example.com", SearchQuery: "site:example.com golang engineer"},
	}
	outcome, err := ingestor.Run(context.Background(), runStore, "run-1", inputs)
	require.NoError(t, err)
	require.Equal(t, 1, outcome.CacheHits)

	items, err := runStore.ListAll()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Greater(t, items[0].CachedAt, staleCachedAt)
	assert.Greater(t, items[0].CacheExpiresAt, nearExpiry)
	assert.False(t, items[0].IsHidden)
}

func TestIngestor_Skips404(t *testing.T) {
	ingestor, runStore, _ := newTestIngestor(t, 10)

	// The mock provider embeds the query digest into URLs; force a 404 by
	// searching a query whose digest is irrelevant and stubbing via domain.
	inputs := []models.RunInput{
		{QueryText: "golang engineer", Domain: "404-domain.example", SearchQuery: "site:404-domain.example golang engineer"},
	}
	outcome, err := ingestor.Run(context.Background(), runStore, "run-1", inputs)
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Skipped404)
	assert.Equal(t, 0, outcome.PersistedResults)
}
