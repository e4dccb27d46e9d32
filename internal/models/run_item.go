package models

// RunItem is a single ingested search result row as persisted in a run database.
// One row per (run, query, domain, result) tuple; dedupe and scoring update rows
// in place after ingestion.
type RunItem struct {
	ID                 int64   `json:"id"`
	RunID              string  `json:"runId"`
	QueryID            string  `json:"queryId"`
	QueryText          string  `json:"queryText"`
	Domain             string  `json:"domain"`
	SearchQuery        string  `json:"searchQuery"`
	Title              string  `json:"title"`
	Snippet            string  `json:"snippet"`
	RawURL             string  `json:"rawUrl"`
	FinalURL           string  `json:"finalUrl"`
	NormalizedURL      string  `json:"normalizedUrl"`
	NormalizationError string  `json:"normalizationError,omitempty"`
	HTMLPath           string  `json:"htmlPath"`
	VisibleText        string  `json:"visibleText"`
	FetchStatus        int     `json:"fetchStatus"`
	FetchError         string  `json:"fetchError"`
	ExtractError       string  `json:"extractError,omitempty"`
	SkipReason         string  `json:"skipReason"`
	CacheKey           string  `json:"cacheKey"`
	CachedAt           string  `json:"cachedAt"`
	CacheExpiresAt     string  `json:"cacheExpiresAt"`
	LastSeenAt         string  `json:"lastSeenAt"`
	IsDuplicate        bool    `json:"isDuplicate"`
	IsHidden           bool    `json:"isHidden"`
	CanonicalID        int64   `json:"canonicalId"`
	DuplicateCount     int     `json:"duplicateCount"`
	Score              float64 `json:"score"`
	Scored             bool    `json:"scored"`
	ScoreModel         string  `json:"scoreModel"`
	ScoredAt           string  `json:"scoredAt"`
	CreatedAt          string  `json:"createdAt"`
}

// Features carries the text fields a relevance model consumes.
type Features struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

// FeaturesOf extracts model features from a run item.
func FeaturesOf(item *RunItem) Features {
	return Features{
		Title:   item.Title,
		Snippet: item.Snippet,
		Domain:  item.Domain,
	}
}

// RunInput is one (query, domain) pair the ingestion pipeline expands into a search call.
type RunInput struct {
	QueryID     string `json:"queryId,omitempty"`
	QueryText   string `json:"queryText"`
	Domain      string `json:"domain"`
	SearchQuery string `json:"searchQuery"`
}

// SearchResult is a single item returned by a search provider.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// ResolvedURL describes the outcome of resolving a raw result URL.
type ResolvedURL struct {
	FinalURL   string `json:"finalUrl"`
	StatusCode int    `json:"statusCode"`
}
