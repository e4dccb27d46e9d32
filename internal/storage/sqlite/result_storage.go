package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// ResultStorage persists run items for a single run database.
type ResultStorage struct {
	db     *sql.DB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewResultStorage opens the run database at path and ensures its schema.
func NewResultStorage(path string, logger arbor.ILogger) (*ResultStorage, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, runMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run database: %w", err)
	}
	return &ResultStorage{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *ResultStorage) Close() error {
	return s.db.Close()
}

const runItemColumns = `run_id, query_id, query_text, domain, search_query, title, snippet,
	raw_url, final_url, normalized_url, normalization_error, html_path, visible_text,
	fetch_status, fetch_error, extract_error, skip_reason,
	cache_key, cached_at, cache_expires_at, last_seen_at,
	is_duplicate, is_hidden, canonical_id, duplicate_count,
	score, scored, score_model, scored_at, created_at`

// WriteAll inserts all items in a single transaction. Either every row lands
// or none do.
func (s *ResultStorage) WriteAll(items []*models.RunItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_items (` + runItemColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.Exec(
			item.RunID, item.QueryID, item.QueryText, item.Domain, item.SearchQuery, item.Title, item.Snippet,
			item.RawURL, item.FinalURL, item.NormalizedURL, item.NormalizationError, item.HTMLPath, item.VisibleText,
			item.FetchStatus, item.FetchError, item.ExtractError, item.SkipReason,
			item.CacheKey, item.CachedAt, item.CacheExpiresAt, item.LastSeenAt,
			boolToInt(item.IsDuplicate), boolToInt(item.IsHidden), item.CanonicalID, item.DuplicateCount,
			item.Score, boolToInt(item.Scored), item.ScoreModel, item.ScoredAt, item.CreatedAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert run item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run items: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug().Int("count", len(items)).Msg("Persisted run items")
	}
	return nil
}

// ListForDedupe returns the run's non-duplicate items ordered by id. Rows
// without a normalized URL are included; they still take part in the
// text-similarity phase.
func (s *ResultStorage) ListForDedupe(runID string) ([]*models.RunItem, error) {
	rows, err := s.db.Query(`SELECT id, `+runItemColumns+` FROM run_items
		WHERE run_id = ? AND is_duplicate = 0 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run items: %w", err)
	}
	defer rows.Close()
	return scanRunItems(rows)
}

// DuplicateMark records one item's dedupe verdict. Hidden tracks duplicate:
// rows marked duplicate disappear from result listings.
type DuplicateMark struct {
	ID             int64
	IsDuplicate    bool
	IsHidden       bool
	CanonicalID    int64
	DuplicateCount int
}

// ApplyDedupe writes the dedupe verdicts in one transaction.
func (s *ResultStorage) ApplyDedupe(marks []DuplicateMark) error {
	if len(marks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin dedupe transaction: %w", err)
	}

	stmt, err := tx.Prepare(`UPDATE run_items
		SET is_duplicate = ?, is_hidden = ?, canonical_id = ?, duplicate_count = ?
		WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare dedupe update: %w", err)
	}
	defer stmt.Close()

	for _, mark := range marks {
		if _, err := stmt.Exec(boolToInt(mark.IsDuplicate), boolToInt(mark.IsHidden), mark.CanonicalID, mark.DuplicateCount, mark.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply dedupe mark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dedupe marks: %w", err)
	}
	return nil
}

// ListUnscored returns non-duplicate items that have not been scored yet.
func (s *ResultStorage) ListUnscored(runID string) ([]*models.RunItem, error) {
	rows, err := s.db.Query(`SELECT id, `+runItemColumns+` FROM run_items
		WHERE run_id = ? AND is_duplicate = 0 AND scored = 0 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscored items: %w", err)
	}
	defer rows.Close()
	return scanRunItems(rows)
}

// ScoreMark records one item's relevance score.
type ScoreMark struct {
	ID         int64
	Score      float64
	ScoreModel string
	ScoredAt   string
}

// ApplyScores writes score marks in one transaction.
func (s *ResultStorage) ApplyScores(marks []ScoreMark) error {
	if len(marks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin score transaction: %w", err)
	}

	stmt, err := tx.Prepare(`UPDATE run_items
		SET score = ?, scored = 1, score_model = ?, scored_at = ?
		WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare score update: %w", err)
	}
	defer stmt.Close()

	for _, mark := range marks {
		if _, err := stmt.Exec(mark.Score, mark.ScoreModel, mark.ScoredAt, mark.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}
	return nil
}

// CountRelevant counts non-duplicate scored items with a positive score.
func (s *ResultStorage) CountRelevant(runID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM run_items
		WHERE run_id = ? AND is_duplicate = 0 AND scored = 1 AND score > 0`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count relevant items: %w", err)
	}
	return count, nil
}

// ListScoredSince returns scored, non-duplicate items with scored_at strictly
// after the given timestamp. An empty since returns all scored items.
func (s *ResultStorage) ListScoredSince(since string) ([]*models.RunItem, error) {
	rows, err := s.db.Query(`SELECT id, `+runItemColumns+` FROM run_items
		WHERE is_duplicate = 0 AND scored = 1 AND scored_at > ? ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query scored items: %w", err)
	}
	defer rows.Close()
	return scanRunItems(rows)
}

// ListAll returns every item in the database, ordered by id.
func (s *ResultStorage) ListAll() ([]*models.RunItem, error) {
	rows, err := s.db.Query(`SELECT id, ` + runItemColumns + ` FROM run_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query run items: %w", err)
	}
	defer rows.Close()
	return scanRunItems(rows)
}

func scanRunItems(rows *sql.Rows) ([]*models.RunItem, error) {
	var items []*models.RunItem
	for rows.Next() {
		var item models.RunItem
		var isDup, isHidden, scored int
		err := rows.Scan(
			&item.ID, &item.RunID, &item.QueryID, &item.QueryText, &item.Domain, &item.SearchQuery,
			&item.Title, &item.Snippet, &item.RawURL, &item.FinalURL, &item.NormalizedURL,
			&item.NormalizationError, &item.HTMLPath, &item.VisibleText,
			&item.FetchStatus, &item.FetchError, &item.ExtractError, &item.SkipReason,
			&item.CacheKey, &item.CachedAt, &item.CacheExpiresAt, &item.LastSeenAt,
			&isDup, &isHidden, &item.CanonicalID, &item.DuplicateCount,
			&item.Score, &scored, &item.ScoreModel, &item.ScoredAt, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		item.IsDuplicate = isDup != 0
		item.IsHidden = isHidden != 0
		item.Scored = scored != 0
		items = append(items, &item)
	}
	return items, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
