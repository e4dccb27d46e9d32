package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// MockClient is a deterministic offline provider. The same search query
// always yields the same results, which keeps cache and dedupe behavior
// reproducible in development and tests.
type MockClient struct {
	logger arbor.ILogger
}

// NewMockClient creates the mock search provider.
func NewMockClient(logger arbor.ILogger) *MockClient {
	return &MockClient{logger: logger}
}

func (c *MockClient) Name() string {
	return "mock"
}

// Search fabricates three deterministic results for the query. Queries
// containing " and " return zero results, which exercises the zero-result
// path end to end.
func (c *MockClient) Search(ctx context.Context, runID, searchQuery string) ([]models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.NetworkError{Op: "mock search", Err: err}
	}

	if strings.Contains(strings.ToLower(searchQuery), " and ") {
		if c.logger != nil {
			c.logger.Debug().Str("run_id", runID).Str("query", searchQuery).Msg("Mock provider returning zero results")
		}
		return nil, nil
	}

	domain := extractSiteDomain(searchQuery)
	digest := queryDigest(searchQuery)

	results := make([]models.SearchResult, 0, 3)
	for i := 1; i <= 3; i++ {
		results = append(results, models.SearchResult{
			Title:   fmt.Sprintf("Job posting %d for %s", i, strings.TrimSpace(stripSiteOperator(searchQuery))),
			Snippet: fmt.Sprintf("Opening %d matching %s at %s", i, stripSiteOperator(searchQuery), domain),
			URL:     fmt.Sprintf("mock://%s/jobs/%s-%d", domain, digest, i),
		})
	}
	return results, nil
}

// queryDigest returns the first 12 hex chars of the query's sha256.
func queryDigest(searchQuery string) string {
	sum := sha256.Sum256([]byte(searchQuery))
	return hex.EncodeToString(sum[:])[:12]
}

// extractSiteDomain pulls the domain out of a "site:<domain> ..." query,
// falling back to a fixed host when the operator is absent.
func extractSiteDomain(searchQuery string) string {
	for _, token := range strings.Fields(searchQuery) {
		if strings.HasPrefix(strings.ToLower(token), "site:") {
			domain := strings.TrimPrefix(strings.ToLower(token), "site:")
			if domain != "" {
				return domain
			}
		}
	}
	return "jobs.example"
}

func stripSiteOperator(searchQuery string) string {
	fields := strings.Fields(searchQuery)
	kept := make([]string, 0, len(fields))
	for _, token := range fields {
		if strings.HasPrefix(strings.ToLower(token), "site:") {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
