package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"lowercases", "Example.COM", "example.com", false},
		{"strips trailing dot", "example.com.", "example.com", false},
		{"trims whitespace", "  example.com  ", "example.com", false},
		{"subdomain ok", "jobs.acme.example.com", "jobs.acme.example.com", false},
		{"digits and hyphens ok", "my-site2.example.com", "my-site2.example.com", false},
		{"empty", "", "", true},
		{"scheme rejected", "https://example.com", "", true},
		{"path rejected", "example.com/jobs", "", true},
		{"port rejected", "example.com:8080", "", true},
		{"wildcard rejected", "*.example.com", "", true},
		{"backslash rejected", "example\\com", "", true},
		{"single label rejected", "localhost", "", true},
		{"leading hyphen rejected", "-bad.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, err := NormalizeDomain(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, domain)
		})
	}
}

func TestNormalizeDomain_LengthLimit(t *testing.T) {
	long := ""
	for len(long) < 260 {
		long += "abcdefghij."
	}
	long += "com"
	_, err := NormalizeDomain(long)
	assert.Error(t, err)
}

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestBuildRunInputs(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "queries.yaml", "queries:\n  - golang  engineer\n  - rust developer\n  - golang engineer\n")
	writeConfig(t, dir, "allowlists.yaml", "domains:\n  - Example.COM\n  - jobs.other.io.\n")

	inputs, err := BuildRunInputs(dir)
	require.NoError(t, err)
	require.Len(t, inputs, 4)

	assert.Equal(t, "golang engineer", inputs[0].QueryText)
	assert.Equal(t, "example.com", inputs[0].Domain)
	assert.Equal(t, "site:example.com golang engineer", inputs[0].SearchQuery)
	assert.Equal(t, "jobs.other.io", inputs[1].Domain)
	assert.Equal(t, "rust developer", inputs[2].QueryText)
}

func TestBuildRunInputs_InvalidDomainFails(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "queries.yaml", "queries:\n  - golang engineer\n")
	writeConfig(t, dir, "allowlists.yaml", "domains:\n  - https://example.com\n")

	_, err := BuildRunInputs(dir)
	assert.Error(t, err)
}

func TestBuildRunInputs_EmptyConfigsFail(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "queries.yaml", "queries: []\n")
	writeConfig(t, dir, "allowlists.yaml", "domains:\n  - example.com\n")
	_, err := BuildRunInputs(dir)
	assert.Error(t, err)

	writeConfig(t, dir, "queries.yaml", "queries:\n  - golang\n")
	writeConfig(t, dir, "allowlists.yaml", "domains: []\n")
	_, err = BuildRunInputs(dir)
	assert.Error(t, err)
}

func TestBuildRunInputs_MissingFilesFail(t *testing.T) {
	_, err := BuildRunInputs(t.TempDir())
	assert.Error(t, err)
}

func TestExtractRunInputs(t *testing.T) {
	payload := map[string]interface{}{
		"runInputs": []interface{}{
			map[string]interface{}{
				"queryId":     "q-1",
				"queryText":   "golang engineer",
				"domain":      "example.com",
				"searchQuery": "site:example.com golang engineer",
			},
			map[string]interface{}{
				"queryText":   "rust developer",
				"domain":      "jobs.other.io",
				"searchQuery": "site:jobs.other.io rust developer",
			},
		},
	}

	inputs, err := ExtractRunInputs(payload)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "q-1", inputs[0].QueryID)
	assert.Equal(t, "golang engineer", inputs[0].QueryText)
	assert.Equal(t, "example.com", inputs[0].Domain)
	assert.Empty(t, inputs[1].QueryID)
	assert.Equal(t, "site:jobs.other.io rust developer", inputs[1].SearchQuery)
}

func TestExtractRunInputs_Malformed(t *testing.T) {
	_, err := ExtractRunInputs(map[string]interface{}{})
	assert.Error(t, err)

	_, err = ExtractRunInputs(map[string]interface{}{"runInputs": "not-a-list"})
	assert.Error(t, err)

	_, err = ExtractRunInputs(map[string]interface{}{"runInputs": []interface{}{"not-an-object"}})
	assert.Error(t, err)

	_, err = ExtractRunInputs(map[string]interface{}{
		"runInputs": []interface{}{
			map[string]interface{}{"queryText": "golang", "domain": "example.com"},
		},
	})
	assert.Error(t, err)
}
