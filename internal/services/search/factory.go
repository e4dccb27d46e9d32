// Package search provides the external search provider clients.
package search

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/interfaces"
	"github.com/pjsousa/jobato-platform/internal/services/fetch"
)

// NewFromConfig builds the configured search client and its matching URL
// resolver. The mock provider pairs with the mock resolver so development
// stays fully offline.
func NewFromConfig(config *common.Config, logger arbor.ILogger) (interfaces.SearchClient, interfaces.URLResolver, error) {
	switch config.Search.Provider {
	case "mock":
		return NewMockClient(logger), fetch.NewMockResolver(), nil
	case "brave":
		if config.Search.BraveAPIKey == "" {
			return nil, nil, fmt.Errorf("brave provider requires BRAVE_SEARCH_API_KEY")
		}
		return NewBraveClient(config.Search.BraveAPIKey, config.Search.BraveFreshness, logger), fetch.NewResolver(logger), nil
	case "google":
		if config.Search.GoogleAPIKey == "" || config.Search.GoogleSearchEngineID == "" {
			return nil, nil, fmt.Errorf("google provider requires GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID")
		}
		return NewGoogleClient(config.Search.GoogleAPIKey, config.Search.GoogleSearchEngineID, logger), fetch.NewResolver(logger), nil
	default:
		return nil, nil, fmt.Errorf("unknown search provider %q", config.Search.Provider)
	}
}
