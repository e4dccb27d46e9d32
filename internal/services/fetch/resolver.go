// Package fetch resolves result URLs, downloads pages and extracts visible text.
package fetch

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// Resolver resolves a raw URL to its final destination, following at most
// one redirect hop. Anything past the first redirect is reported as-is.
type Resolver struct {
	client *http.Client
	logger arbor.ILogger
}

// NewResolver creates an HTTP URL resolver.
func NewResolver(logger arbor.ILogger) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) (models.ResolvedURL, error) {
	resp, err := r.head(ctx, rawURL)
	if err != nil {
		return models.ResolvedURL{}, &models.NetworkError{Op: "resolve url", Err: err}
	}

	finalURL := rawURL
	status := resp.StatusCode

	if isRedirect(status) {
		location := resp.Header.Get("Location")
		if location != "" {
			if resolved, err := resolveLocation(rawURL, location); err == nil {
				finalURL = resolved
				followed, err := r.head(ctx, finalURL)
				if err != nil {
					return models.ResolvedURL{}, &models.NetworkError{Op: "resolve redirect", Err: err}
				}
				status = followed.StatusCode
			}
		}
	}

	return models.ResolvedURL{FinalURL: finalURL, StatusCode: status}, nil
}

func (r *Resolver) head(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
