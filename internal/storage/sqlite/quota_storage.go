package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

// QuotaStorage is the durable daily quota ledger. Usage is keyed by
// (quota day, run id) so concurrent runs account separately while the daily
// sum stays authoritative.
type QuotaStorage struct {
	db     *sql.DB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewQuotaStorage opens the quota ledger at path and ensures its schema.
func NewQuotaStorage(path string, logger arbor.ILogger) (*QuotaStorage, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, quotaMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate quota ledger: %w", err)
	}
	return &QuotaStorage{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *QuotaStorage) Close() error {
	return s.db.Close()
}

// GetDailyUsage returns the total calls recorded for a quota day.
func (s *QuotaStorage) GetDailyUsage(day string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(calls) FROM quota_usage WHERE day = ?`, day).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to read quota usage: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// IncrementUsage adds one call to a run's ledger row for the given day.
func (s *QuotaStorage) IncrementUsage(day, runID, updatedAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO quota_usage (day, run_id, calls, updated_at)
		VALUES (?,?,1,?)
		ON CONFLICT(day, run_id) DO UPDATE SET
			calls = calls + 1,
			updated_at = excluded.updated_at`,
		day, runID, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to increment quota usage: %w", err)
	}
	return nil
}

// GetRunUsage returns the calls recorded for one run on one day.
func (s *QuotaStorage) GetRunUsage(day, runID string) (int, error) {
	var calls int
	err := s.db.QueryRow(`SELECT calls FROM quota_usage WHERE day = ? AND run_id = ?`, day, runID).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read run quota usage: %w", err)
	}
	return calls, nil
}
