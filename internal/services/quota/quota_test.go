package quota

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

func TestDayFor(t *testing.T) {
	config := Config{DailyLimit: 10, ConcurrencyLimit: 2, ResetPolicy: ResetPolicy{TimeZone: "UTC", ResetHour: 6}}
	require.NoError(t, config.validate())

	// Before the reset hour the instant accounts against the previous day.
	assert.Equal(t, "2026-08-23", config.DayFor(time.Date(2026, 8, 24, 5, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2026-08-24", config.DayFor(time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-08-24", config.DayFor(time.Date(2026, 8, 24, 23, 0, 0, 0, time.UTC)))
}

func TestDayFor_MidnightReset(t *testing.T) {
	config := Config{DailyLimit: 10, ConcurrencyLimit: 2, ResetPolicy: ResetPolicy{TimeZone: "UTC", ResetHour: 0}}
	require.NoError(t, config.validate())

	assert.Equal(t, "2026-08-24", config.DayFor(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-08-23", config.DayFor(time.Date(2026, 8, 23, 23, 59, 59, 0, time.UTC)))
}

func newDispatcher(t *testing.T, config Config) *Dispatcher {
	t.Helper()
	require.NoError(t, config.validate())
	storage, err := sqlite.NewQuotaStorage(filepath.Join(t.TempDir(), "quota.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return NewDispatcher(config, storage, nil)
}

func TestDispatch_WithinBudget(t *testing.T) {
	dispatcher := newDispatcher(t, Config{DailyLimit: 10, ConcurrencyLimit: 2, ResetPolicy: ResetPolicy{TimeZone: "UTC"}})

	var mu sync.Mutex
	var seen []int
	outcome, err := Dispatch(context.Background(), dispatcher, "run-1", []int{1, 2, 3},
		func(ctx context.Context, input int) error {
			mu.Lock()
			seen = append(seen, input)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, outcome.Status)
	assert.Empty(t, outcome.Reason)
	assert.Equal(t, 3, outcome.IssuedCalls)
	assert.Len(t, seen, 3)

	remaining, err := dispatcher.Remaining(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
}

func TestDispatch_QuotaReached(t *testing.T) {
	dispatcher := newDispatcher(t, Config{DailyLimit: 2, ConcurrencyLimit: 2, ResetPolicy: ResetPolicy{TimeZone: "UTC"}})

	var count int
	var mu sync.Mutex
	outcome, err := Dispatch(context.Background(), dispatcher, "run-1", []int{1, 2, 3, 4},
		func(ctx context.Context, input int) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, outcome.Status)
	assert.Equal(t, ReasonQuotaReached, outcome.Reason)
	assert.Equal(t, 2, outcome.IssuedCalls)
	assert.Equal(t, 2, outcome.Dropped)
	assert.Equal(t, 2, count)
}

func TestDispatch_ExhaustedBudget(t *testing.T) {
	dispatcher := newDispatcher(t, Config{DailyLimit: 1, ConcurrencyLimit: 2, ResetPolicy: ResetPolicy{TimeZone: "UTC"}})

	_, err := Dispatch(context.Background(), dispatcher, "run-1", []int{1},
		func(ctx context.Context, input int) error { return nil })
	require.NoError(t, err)

	outcome, err := Dispatch(context.Background(), dispatcher, "run-2", []int{1, 2},
		func(ctx context.Context, input int) error {
			t.Error("no call should be issued")
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, outcome.Status)
	assert.Equal(t, 0, outcome.IssuedCalls)
	assert.Equal(t, 2, outcome.Dropped)
}

func TestLoadConfig(t *testing.T) {
	writeConfig := func(t *testing.T, body string) string {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "quota.yaml"), []byte(body), 0644))
		return dir
	}

	t.Run("missing file yields defaults", func(t *testing.T) {
		config, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("valid file", func(t *testing.T) {
		dir := writeConfig(t, `quota:
  dailyLimit: 50
  concurrencyLimit: 3
  resetPolicy:
    timeZone: Europe/Lisbon
    resetHour: 6
`)
		config, err := LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, 50, config.DailyLimit)
		assert.Equal(t, 3, config.ConcurrencyLimit)
		assert.Equal(t, 6, config.ResetPolicy.ResetHour)
		assert.Equal(t, "Europe/Lisbon", config.ResetPolicy.TimeZone)
	})

	t.Run("zero dailyLimit rejected", func(t *testing.T) {
		dir := writeConfig(t, `quota:
  dailyLimit: 0
  concurrencyLimit: 3
  resetPolicy:
    timeZone: UTC
    resetHour: 0
`)
		_, err := LoadConfig(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dailyLimit")
	})

	t.Run("missing concurrencyLimit rejected", func(t *testing.T) {
		dir := writeConfig(t, `quota:
  dailyLimit: 50
  resetPolicy:
    timeZone: UTC
    resetHour: 0
`)
		_, err := LoadConfig(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "concurrencyLimit")
	})

	t.Run("invalid reset hour rejected", func(t *testing.T) {
		dir := writeConfig(t, `quota:
  dailyLimit: 50
  concurrencyLimit: 3
  resetPolicy:
    timeZone: UTC
    resetHour: 24
`)
		_, err := LoadConfig(dir)
		assert.Error(t, err)
	})

	t.Run("missing timeZone rejected", func(t *testing.T) {
		dir := writeConfig(t, `quota:
  dailyLimit: 50
  concurrencyLimit: 3
  resetPolicy:
    resetHour: 0
`)
		_, err := LoadConfig(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeZone")
	})

	t.Run("unknown timeZone rejected", func(t *testing.T) {
		dir := writeConfig(t, `quota:
  dailyLimit: 50
  concurrencyLimit: 3
  resetPolicy:
    timeZone: Mars/Olympus
    resetHour: 0
`)
		_, err := LoadConfig(dir)
		assert.Error(t, err)
	})
}
