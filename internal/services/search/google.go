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

const googleSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleClient queries the Google Custom Search JSON API.
type GoogleClient struct {
	apiKey         string
	searchEngineID string
	client         *http.Client
	logger         arbor.ILogger
}

// NewGoogleClient creates a Google Custom Search provider.
func NewGoogleClient(apiKey, searchEngineID string, logger arbor.ILogger) *GoogleClient {
	return &GoogleClient{
		apiKey:         apiKey,
		searchEngineID: searchEngineID,
		client:         &http.Client{Timeout: 15 * time.Second},
		logger:         logger,
	}
}

func (c *GoogleClient) Name() string {
	return "google"
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (c *GoogleClient) Search(ctx context.Context, runID, searchQuery string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.searchEngineID)
	params.Set("q", searchQuery)
	params.Set("num", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleSearchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build google request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: "google search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.NetworkError{Op: "google search", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode google response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, models.SearchResult{
			Title:   item.Title,
			Snippet: item.Snippet,
			URL:     item.Link,
		})
	}

	if c.logger != nil {
		c.logger.Debug().Str("run_id", runID).Int("results", len(results)).Msg("Google search completed")
	}
	return results, nil
}
