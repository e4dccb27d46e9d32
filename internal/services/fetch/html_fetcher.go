package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// HTMLFetcher downloads result pages into the run's raw HTML tree. Fetch
// failures are recorded per row rather than failing the run, so Fetch
// returns an error string alongside the stored path.
type HTMLFetcher struct {
	dataDir string
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewHTMLFetcher creates a fetcher rooted at dataDir, rate-limited to two
// requests per second.
func NewHTMLFetcher(dataDir string, logger arbor.ILogger) *HTMLFetcher {
	return &HTMLFetcher{
		dataDir: dataDir,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		logger:  logger,
	}
}

// Fetch downloads the page and stores it under
// <dataDir>/html/raw/<runID>/<sha256(url)>.html. mock:// URLs produce a
// deterministic synthetic page without touching the network. The returned
// error string is empty on success.
func (f *HTMLFetcher) Fetch(ctx context.Context, runID, pageURL string) (string, string) {
	var body []byte

	if strings.HasPrefix(pageURL, "mock://") {
		body = []byte(syntheticPage(pageURL))
	} else {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Sprintf("fetch cancelled: %v", err)
		}
		fetched, err := f.download(ctx, pageURL)
		if err != nil {
			if f.logger != nil {
				f.logger.Warn().Str("url", pageURL).Err(err).Msg("Page fetch failed")
			}
			return "", err.Error()
		}
		body = fetched
	}

	path, err := f.store(runID, pageURL, body)
	if err != nil {
		return "", err.Error()
	}
	return path, ""
}

func (f *HTMLFetcher) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", "jobato-ml/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// 4 MB cap keeps pathological pages from bloating the raw tree.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return body, nil
}

func (f *HTMLFetcher) store(runID, pageURL string, body []byte) (string, error) {
	dir := filepath.Join(f.dataDir, "html", "raw", runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create html directory: %w", err)
	}

	sum := sha256.Sum256([]byte(pageURL))
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+".html")
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write html file: %w", err)
	}
	return path, nil
}

// syntheticPage fabricates stable HTML for a mock:// URL.
func syntheticPage(pageURL string) string {
	slug := pageURL
	if idx := strings.LastIndex(pageURL, "/"); idx >= 0 {
		slug = pageURL[idx+1:]
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Job %s</title><script>track();</script></head>
<body>
<h1>Job listing %s</h1>
<p>Deterministic description for %s. Requirements include relevant experience and collaboration.</p>
</body>
</html>`, slug, slug, pageURL)
}
