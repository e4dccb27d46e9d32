package fetch

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockResolver(t *testing.T) {
	resolver := NewMockResolver()
	ctx := context.Background()

	t.Run("plain url resolves to itself", func(t *testing.T) {
		resolved, err := resolver.Resolve(ctx, "mock://example.com/jobs/abc-1")
		require.NoError(t, err)
		assert.Equal(t, "mock://example.com/jobs/abc-1", resolved.FinalURL)
		assert.Equal(t, 200, resolved.StatusCode)
	})

	t.Run("404 marker", func(t *testing.T) {
		resolved, err := resolver.Resolve(ctx, "mock://example.com/jobs/not-found-listing")
		require.NoError(t, err)
		assert.Equal(t, 404, resolved.StatusCode)
	})

	t.Run("redirect segment removed", func(t *testing.T) {
		resolved, err := resolver.Resolve(ctx, "mock://example.com/redirect/jobs/abc-1")
		require.NoError(t, err)
		assert.Equal(t, "mock://example.com/jobs/abc-1", resolved.FinalURL)
		assert.Equal(t, 200, resolved.StatusCode)
	})
}

func TestHTMLFetcher_MockURLDeterministic(t *testing.T) {
	dataDir := t.TempDir()
	fetcher := NewHTMLFetcher(dataDir, nil)

	path1, errStr := fetcher.Fetch(context.Background(), "run-1", "mock://example.com/jobs/abc-1")
	require.Empty(t, errStr)
	require.FileExists(t, path1)
	assert.True(t, strings.HasSuffix(path1, ".html"))
	assert.Contains(t, path1, "html/raw/run-1")

	body1, err := os.ReadFile(path1)
	require.NoError(t, err)

	path2, errStr := fetcher.Fetch(context.Background(), "run-1", "mock://example.com/jobs/abc-1")
	require.Empty(t, errStr)
	assert.Equal(t, path1, path2)

	body2, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, body1, body2)
}

func TestExtractVisibleText(t *testing.T) {
	html := `<html><head><title>Ignored</title><script>var x = 1;</script>
	<style>body { color: red }</style></head>
	<body><h1>Senior   Engineer</h1>
	<p>Remote role.
	Apply now.</p><noscript>enable js</noscript></body></html>`

	text, err := ExtractVisibleText(html)
	require.NoError(t, err)
	assert.Equal(t, "Senior Engineer Remote role. Apply now.", text)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "Ignored")
	assert.NotContains(t, text, "enable js")
}
