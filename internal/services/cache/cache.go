package cache

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// Service answers cache-hit and revisit-throttle questions by scanning
// prior run databases, newest first.
type Service struct {
	runsDir string
	policy  Policy
	logger  arbor.ILogger
}

// NewService creates the cache service over <dataDir>/db/runs.
func NewService(dataDir string, policy Policy, logger arbor.ILogger) *Service {
	return &Service{
		runsDir: filepath.Join(dataDir, "db", "runs"),
		policy:  policy,
		logger:  logger,
	}
}

// GenerateCacheKey derives the cache key for a (query, domain) pair:
// md5 of the whitespace-collapsed lowercased query text, a pipe, and the
// lowercased domain.
func GenerateCacheKey(queryText, domain string) string {
	collapsed := strings.Join(strings.Fields(strings.ToLower(queryText)), " ")
	material := collapsed + "|" + strings.ToLower(domain)
	sum := md5.Sum([]byte(material))
	return hex.EncodeToString(sum[:])
}

// ExpiryFor computes the cache expiry for results ingested at now.
func (s *Service) ExpiryFor(now time.Time) string {
	return common.FormatTimestamp(now.Add(time.Duration(s.policy.TTLHours) * time.Hour))
}

// IsFresh reports whether a cached row is still usable: now must be
// strictly before the expiry. Rows expiring exactly now are stale.
func IsFresh(expiresAt string, now time.Time) bool {
	expiry, ok := common.ParseTimestamp(expiresAt)
	if !ok {
		return false
	}
	return now.UTC().Before(expiry)
}

// RevisitAllowed reports whether a page last seen at lastSeenAt may be
// fetched again. The boundary is inclusive: a page seen exactly
// throttleDays ago is allowed.
func (s *Service) RevisitAllowed(lastSeenAt string, now time.Time) bool {
	seen, ok := common.ParseTimestamp(lastSeenAt)
	if !ok {
		return true
	}
	threshold := now.UTC().Add(-time.Duration(s.policy.RevisitThrottleDays) * 24 * time.Hour)
	return !seen.After(threshold)
}

// GetFreshResults returns cached rows for the cache key from the most
// recent run database that holds fresh ones, or nil on a miss. A database
// can hold several generations of the same key; only the newest cached_at
// group is returned.
func (s *Service) GetFreshResults(cacheKey string, now time.Time) []*models.RunItem {
	for _, path := range s.runDatabases() {
		storage, err := sqlite.NewResultStorage(path, nil)
		if err != nil {
			continue
		}
		items, err := storage.ListAll()
		storage.Close()
		if err != nil {
			continue
		}

		newest := ""
		for _, item := range items {
			if item.CacheKey == cacheKey && IsFresh(item.CacheExpiresAt, now) && item.CachedAt > newest {
				newest = item.CachedAt
			}
		}
		var fresh []*models.RunItem
		for _, item := range items {
			if item.CacheKey == cacheKey && IsFresh(item.CacheExpiresAt, now) && item.CachedAt == newest {
				fresh = append(fresh, item)
			}
		}
		if len(fresh) > 0 {
			if s.logger != nil {
				s.logger.Warn().
					Str("cache_key", cacheKey).
					Str("source_db", filepath.Base(path)).
					Int("results", len(fresh)).
					Msg("Cache hit, skipping provider call")
			}
			return fresh
		}
	}
	return nil
}

// FindLatestLastSeen returns the newest last_seen_at recorded for a URL,
// matching on either final or raw URL, or empty when never seen.
func (s *Service) FindLatestLastSeen(pageURL string) string {
	latest := ""
	for _, path := range s.runDatabases() {
		storage, err := sqlite.NewResultStorage(path, nil)
		if err != nil {
			continue
		}
		items, err := storage.ListAll()
		storage.Close()
		if err != nil {
			continue
		}
		for _, item := range items {
			if item.LastSeenAt == "" {
				continue
			}
			if item.FinalURL == pageURL || item.RawURL == pageURL {
				if item.LastSeenAt > latest {
					latest = item.LastSeenAt
				}
			}
		}
		if latest != "" {
			return latest
		}
	}
	return latest
}

// runDatabases lists run database paths newest first by modification time.
func (s *Service) runDatabases() []string {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		return nil
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(s.runsDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		paths = append(paths, c.path)
	}
	return paths
}
