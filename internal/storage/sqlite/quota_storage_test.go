package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStorage_UsageAccumulates(t *testing.T) {
	storage, err := NewQuotaStorage(filepath.Join(t.TempDir(), "quota.db"), nil)
	require.NoError(t, err)
	defer storage.Close()

	require.NoError(t, storage.IncrementUsage("2026-08-24", "run-1", "2026-08-24T10:00:00Z"))
	require.NoError(t, storage.IncrementUsage("2026-08-24", "run-1", "2026-08-24T10:00:01Z"))
	require.NoError(t, storage.IncrementUsage("2026-08-24", "run-2", "2026-08-24T10:00:02Z"))
	require.NoError(t, storage.IncrementUsage("2026-08-25", "run-3", "2026-08-25T10:00:00Z"))

	total, err := storage.GetDailyUsage("2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	runCalls, err := storage.GetRunUsage("2026-08-24", "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, runCalls)

	empty, err := storage.GetDailyUsage("2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, 0, empty)
}
