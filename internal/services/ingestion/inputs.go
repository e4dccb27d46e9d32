// Package ingestion expands operator config into run inputs and executes
// the search-resolve-fetch-extract pipeline for a run.
package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pjsousa/jobato-platform/internal/models"
)

type queriesFile struct {
	Queries []string `yaml:"queries"`
}

type allowlistsFile struct {
	Domains []string `yaml:"domains"`
}

// rfc1035Label matches one hostname label.
var rfc1035Label = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// BuildRunInputs crosses queries.yaml with allowlists.yaml into one input
// per (query, domain) pair. Invalid domains fail the build; a run should
// not silently skip part of its allowlist.
func BuildRunInputs(configDir string) ([]models.RunInput, error) {
	queries, err := loadQueries(filepath.Join(configDir, "queries.yaml"))
	if err != nil {
		return nil, err
	}
	domains, err := loadAllowlists(filepath.Join(configDir, "allowlists.yaml"))
	if err != nil {
		return nil, err
	}

	inputs := make([]models.RunInput, 0, len(queries)*len(domains))
	for _, query := range queries {
		for _, domain := range domains {
			inputs = append(inputs, models.RunInput{
				QueryText:   query,
				Domain:      domain,
				SearchQuery: fmt.Sprintf("site:%s %s", domain, query),
			})
		}
	}
	return inputs, nil
}

// ExtractRunInputs decodes the runInputs list from a run.requested payload.
// queryText, domain and searchQuery are required per input; queryId is
// optional.
func ExtractRunInputs(payload map[string]interface{}) ([]models.RunInput, error) {
	raw, ok := payload["runInputs"]
	if !ok {
		return nil, fmt.Errorf("payload missing runInputs")
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("payload.runInputs must be a list")
	}

	inputs := make([]models.RunInput, 0, len(list))
	for _, entry := range list {
		item, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("payload.runInputs must contain objects")
		}

		input := models.RunInput{
			QueryID:     payloadString(item, "queryId"),
			QueryText:   payloadString(item, "queryText"),
			Domain:      payloadString(item, "domain"),
			SearchQuery: payloadString(item, "searchQuery"),
		}
		if input.QueryText == "" || input.Domain == "" || input.SearchQuery == "" {
			return nil, fmt.Errorf("each runInput requires queryText, domain and searchQuery")
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func payloadString(item map[string]interface{}, key string) string {
	value, ok := item[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func loadQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries config: %w", err)
	}
	var file queriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse queries config: %w", err)
	}

	var queries []string
	seen := make(map[string]bool)
	for _, raw := range file.Queries {
		query := strings.Join(strings.Fields(raw), " ")
		if query == "" || seen[query] {
			continue
		}
		seen[query] = true
		queries = append(queries, query)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("queries config contains no usable queries")
	}
	return queries, nil
}

func loadAllowlists(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowlists config: %w", err)
	}
	var file allowlistsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse allowlists config: %w", err)
	}

	var domains []string
	seen := make(map[string]bool)
	for _, raw := range file.Domains {
		domain, err := NormalizeDomain(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist domain %q: %w", raw, err)
		}
		if seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("allowlists config contains no usable domains")
	}
	return domains, nil
}

// NormalizeDomain lowercases and validates a bare hostname: no scheme,
// path, port or wildcard, at most 253 chars, RFC-1035 labels.
func NormalizeDomain(raw string) (string, error) {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimSuffix(domain, ".")

	if domain == "" {
		return "", fmt.Errorf("empty domain")
	}
	if strings.Contains(domain, "://") {
		return "", fmt.Errorf("domain must not include a scheme")
	}
	for _, forbidden := range []string{"/", "\\", ":", "*"} {
		if strings.Contains(domain, forbidden) {
			return "", fmt.Errorf("domain must not contain %q", forbidden)
		}
	}
	if len(domain) > 253 {
		return "", fmt.Errorf("domain exceeds 253 characters")
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("domain must have at least two labels")
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return "", fmt.Errorf("domain label length out of range")
		}
		if !rfc1035Label.MatchString(label) {
			return "", fmt.Errorf("domain label %q is not a valid hostname label", label)
		}
	}
	return domain, nil
}
