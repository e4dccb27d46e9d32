package interfaces

import (
	"context"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// SearchClient issues one search provider call per run input.
type SearchClient interface {
	// Search executes the provider query and returns result items in provider order.
	Search(ctx context.Context, runID, searchQuery string) ([]models.SearchResult, error)

	// Name identifies the provider for logging and run metadata.
	Name() string
}

// URLResolver resolves a raw search result URL to its final destination,
// following at most one redirect hop.
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) (models.ResolvedURL, error)
}
