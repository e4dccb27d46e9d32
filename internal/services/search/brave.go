package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/models"
)

const braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveClient queries the Brave Web Search API.
type BraveClient struct {
	apiKey    string
	freshness string
	client    *http.Client
	logger    arbor.ILogger
}

// NewBraveClient creates a Brave search provider.
func NewBraveClient(apiKey, freshness string, logger arbor.ILogger) *BraveClient {
	return &BraveClient{
		apiKey:    apiKey,
		freshness: freshness,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

func (c *BraveClient) Name() string {
	return "brave"
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (c *BraveClient) Search(ctx context.Context, runID, searchQuery string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("count", "20")
	if c.freshness != "" {
		params.Set("freshness", c.freshness)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveSearchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: "brave search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.NetworkError{Op: "brave search", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(payload.Web.Results))
	for _, item := range payload.Web.Results {
		results = append(results, models.SearchResult{
			Title:   item.Title,
			Snippet: item.Description,
			URL:     item.URL,
		})
	}

	if c.logger != nil {
		c.logger.Debug().Str("run_id", runID).Int("results", len(results)).Msg("Brave search completed")
	}
	return results, nil
}
