package fetch

import (
	"context"
	"net/http"
	"strings"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// MockResolver resolves mock:// URLs deterministically, mirroring the mock
// search provider so the whole pipeline runs offline:
//   - URLs containing "404" or "not-found" resolve with status 404
//   - URLs containing "/redirect/" resolve to the same URL with the redirect
//     segment removed, status 200
//   - everything else resolves to itself with status 200
type MockResolver struct{}

// NewMockResolver creates the offline resolver.
func NewMockResolver() *MockResolver {
	return &MockResolver{}
}

func (r *MockResolver) Resolve(ctx context.Context, rawURL string) (models.ResolvedURL, error) {
	if err := ctx.Err(); err != nil {
		return models.ResolvedURL{}, &models.NetworkError{Op: "mock resolve", Err: err}
	}

	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "404") || strings.Contains(lower, "not-found") {
		return models.ResolvedURL{FinalURL: rawURL, StatusCode: http.StatusNotFound}, nil
	}

	if strings.Contains(lower, "/redirect/") {
		final := strings.Replace(rawURL, "/redirect/", "/", 1)
		return models.ResolvedURL{FinalURL: final, StatusCode: http.StatusOK}, nil
	}

	return models.ResolvedURL{FinalURL: rawURL, StatusCode: http.StatusOK}, nil
}
