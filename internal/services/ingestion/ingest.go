package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/interfaces"
	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/services/cache"
	"github.com/pjsousa/jobato-platform/internal/services/fetch"
	"github.com/pjsousa/jobato-platform/internal/services/quota"
	"github.com/pjsousa/jobato-platform/internal/services/urlnorm"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// SkipReasonRevisitThrottle marks rows whose page was seen too recently to refetch.
const SkipReasonRevisitThrottle = "revisit_throttle"

// ZeroResult records a query/domain pair whose search returned nothing.
type ZeroResult struct {
	QueryText  string `json:"queryText"`
	Domain     string `json:"domain"`
	OccurredAt string `json:"occurredAt"`
}

// Outcome summarizes one ingestion pass.
type Outcome struct {
	IssuedCalls      int          `json:"issuedCalls"`
	PersistedResults int          `json:"persistedResults"`
	NewJobsCount     int          `json:"newJobsCount"`
	Skipped404       int          `json:"skipped404"`
	ZeroResults      []ZeroResult `json:"zeroResults"`
	CacheHits        int          `json:"cacheHits"`
	Status           string       `json:"status"`
	Reason           string       `json:"reason,omitempty"`
}

// Ingestor executes the run ingestion pipeline: cache probe, quota-gated
// search, URL resolution, throttled fetch, text extraction, one transactional write.
type Ingestor struct {
	search     interfaces.SearchClient
	resolver   interfaces.URLResolver
	fetcher    *fetch.HTMLFetcher
	cache      *cache.Service
	dispatcher *quota.Dispatcher
	logger     arbor.ILogger
}

// NewIngestor wires the ingestion pipeline.
func NewIngestor(
	search interfaces.SearchClient,
	resolver interfaces.URLResolver,
	fetcher *fetch.HTMLFetcher,
	cacheService *cache.Service,
	dispatcher *quota.Dispatcher,
	logger arbor.ILogger,
) *Ingestor {
	return &Ingestor{
		search:     search,
		resolver:   resolver,
		fetcher:    fetcher,
		cache:      cacheService,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run ingests all inputs into the run's database. Cache hits bypass the
// quota entirely; only cache misses consume provider calls. All produced
// rows land in a single transaction at the end.
func (ing *Ingestor) Run(ctx context.Context, storage *sqlite.ResultStorage, runID string, inputs []models.RunInput) (Outcome, error) {
	now := time.Now()
	outcome := Outcome{Status: quota.StatusCompleted}

	var mu sync.Mutex
	var rows []*models.RunItem

	// Cache probe first: hits never touch the quota.
	var misses []models.RunInput
	for _, input := range inputs {
		key := cache.GenerateCacheKey(input.QueryText, input.Domain)
		cached := ing.cache.GetFreshResults(key, now)
		if cached == nil {
			misses = append(misses, input)
			continue
		}
		outcome.CacheHits++
		for _, hit := range cached {
			row := *hit
			row.ID = 0
			row.RunID = runID
			row.QueryID = input.QueryID
			row.QueryText = input.QueryText
			row.Domain = input.Domain
			row.SearchQuery = input.SearchQuery
			row.IsDuplicate = false
			row.IsHidden = false
			row.CanonicalID = 0
			row.DuplicateCount = 0
			row.Scored = false
			row.Score = 0
			row.ScoreModel = ""
			row.ScoredAt = ""
			// The replayed copy is a fresh cache entry of this run.
			row.CachedAt = common.FormatTimestamp(now)
			row.CacheExpiresAt = ing.cache.ExpiryFor(now)
			row.CreatedAt = common.FormatTimestamp(now)
			rows = append(rows, &row)
		}
	}

	dispatchOutcome, err := quota.Dispatch(ctx, ing.dispatcher, runID, misses,
		func(ctx context.Context, input models.RunInput) error {
			produced, counters, err := ing.ingestOne(ctx, runID, input, now)
			if err != nil {
				return err
			}
			mu.Lock()
			rows = append(rows, produced...)
			outcome.Skipped404 += counters.skipped404
			outcome.ZeroResults = append(outcome.ZeroResults, counters.zeroResults...)
			mu.Unlock()
			return nil
		})
	if err != nil {
		return outcome, err
	}

	outcome.IssuedCalls = dispatchOutcome.IssuedCalls
	outcome.Status = dispatchOutcome.Status
	outcome.Reason = dispatchOutcome.Reason

	if err := storage.WriteAll(rows); err != nil {
		return outcome, err
	}
	outcome.PersistedResults = len(rows)

	for _, row := range rows {
		if row.SkipReason == "" && row.FetchError == "" && row.HTMLPath != "" {
			outcome.NewJobsCount++
		}
	}

	if ing.logger != nil {
		ing.logger.Info().
			Str("run_id", runID).
			Int("inputs", len(inputs)).
			Int("cache_hits", outcome.CacheHits).
			Int("issued_calls", outcome.IssuedCalls).
			Int("persisted", outcome.PersistedResults).
			Str("status", outcome.Status).
			Msg("Ingestion completed")
	}
	return outcome, nil
}

type ingestCounters struct {
	skipped404  int
	zeroResults []ZeroResult
}

// ingestOne performs one provider call and processes each of its results.
// Per-result fetch problems become row columns; search and resolver
// failures propagate and fail the run.
func (ing *Ingestor) ingestOne(ctx context.Context, runID string, input models.RunInput, now time.Time) ([]*models.RunItem, ingestCounters, error) {
	var counters ingestCounters

	results, err := ing.search.Search(ctx, runID, input.SearchQuery)
	if err != nil {
		return nil, counters, err
	}
	if len(results) == 0 {
		counters.zeroResults = append(counters.zeroResults, ZeroResult{
			QueryText:  input.QueryText,
			Domain:     input.Domain,
			OccurredAt: common.TimestampNow(),
		})
		return nil, counters, nil
	}

	cacheKey := cache.GenerateCacheKey(input.QueryText, input.Domain)
	expiresAt := ing.cache.ExpiryFor(now)
	createdAt := common.FormatTimestamp(now)

	var rows []*models.RunItem
	for _, result := range results {
		resolved, err := ing.resolver.Resolve(ctx, result.URL)
		if err != nil {
			return nil, counters, err
		}
		if resolved.StatusCode == 404 {
			counters.skipped404++
			continue
		}

		row := &models.RunItem{
			RunID:          runID,
			QueryID:        input.QueryID,
			QueryText:      input.QueryText,
			Domain:         input.Domain,
			SearchQuery:    input.SearchQuery,
			Title:          result.Title,
			Snippet:        result.Snippet,
			RawURL:         result.URL,
			FinalURL:       resolved.FinalURL,
			FetchStatus:    resolved.StatusCode,
			CacheKey:       cacheKey,
			CachedAt:       createdAt,
			CacheExpiresAt: expiresAt,
			LastSeenAt:     createdAt,
			CreatedAt:      createdAt,
		}

		normalized := urlnorm.Normalize(resolved.FinalURL)
		if normalized.Err != nil {
			row.NormalizationError = normalized.Err.Error()
		} else {
			row.NormalizedURL = normalized.Normalized
		}

		lastSeen := ing.cache.FindLatestLastSeen(resolved.FinalURL)
		if lastSeen == "" {
			lastSeen = ing.cache.FindLatestLastSeen(result.URL)
		}
		if lastSeen != "" && !ing.cache.RevisitAllowed(lastSeen, now) {
			row.SkipReason = SkipReasonRevisitThrottle
			rows = append(rows, row)
			continue
		}

		path, fetchErr := ing.fetcher.Fetch(ctx, runID, resolved.FinalURL)
		row.HTMLPath = path
		row.FetchError = fetchErr
		if fetchErr == "" && path != "" {
			if html, readErr := readFile(path); readErr != nil {
				row.ExtractError = readErr.Error()
			} else if text, extractErr := fetch.ExtractVisibleText(html); extractErr != nil {
				row.ExtractError = extractErr.Error()
			} else {
				row.VisibleText = text
			}
		}
		rows = append(rows, row)
	}
	return rows, counters, nil
}
