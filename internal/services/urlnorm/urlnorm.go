// Package urlnorm canonicalizes result URLs so that equivalent links
// compare equal during deduplication.
package urlnorm

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Result carries a normalization outcome. When Err is set, Normalized holds
// the original input unchanged so callers can persist something stable.
type Result struct {
	Normalized string
	Original   string
	Err        error
}

var supportedSchemes = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// trackingParams are dropped from query strings, along with any key whose
// lowercased form starts with one of trackingPrefixes.
var trackingParams = map[string]bool{
	"gclid":      true,
	"gclsrc":     true,
	"dclid":      true,
	"fbclid":     true,
	"msclkid":    true,
	"twclid":     true,
	"ttclid":     true,
	"yclid":      true,
	"mc_cid":     true,
	"mc_eid":     true,
	"igshid":     true,
	"ref":        true,
	"ref_src":    true,
	"source":     true,
	"src":        true,
	"campaign":   true,
	"tracking":   true,
	"track":      true,
	"trk":        true,
	"click_id":   true,
	"clickid":    true,
	"sessionid":  true,
	"session_id": true,
	"spm":        true,
	"_ga":        true,
	"_gl":        true,
	"_hsenc":     true,
	"_hsmi":      true,
	"s_cid":      true,
	"s_kwcid":    true,
	"zanpid":     true,
}

var trackingPrefixes = []string{"utm_", "affiliate", "partner", "li_fat_id"}

func isTrackingParam(key string) bool {
	if trackingParams[key] {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Normalize canonicalizes a URL:
// scheme and host lowercased, default port stripped, tracking query
// parameters removed, remaining pairs sorted, duplicate slashes in the path
// collapsed, trailing slash stripped, fragment dropped. Userinfo and path
// case are preserved.
func Normalize(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Normalized: raw, Original: raw, Err: fmt.Errorf("empty url")}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Result{Normalized: raw, Original: raw, Err: fmt.Errorf("unparseable url: %w", err)}
	}

	scheme := strings.ToLower(parsed.Scheme)
	defaultPort, ok := supportedSchemes[scheme]
	if !ok {
		return Result{Normalized: raw, Original: raw, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return Result{Normalized: raw, Original: raw, Err: fmt.Errorf("missing host")}
	}
	port := parsed.Port()
	if port == defaultPort {
		port = ""
	}

	path := collapseSlashes(parsed.EscapedPath())
	path = strings.TrimSuffix(path, "/")

	query := normalizeQuery(parsed.Query())

	var sb strings.Builder
	sb.WriteString(scheme)
	sb.WriteString("://")
	if parsed.User != nil {
		sb.WriteString(parsed.User.String())
		sb.WriteString("@")
	}
	sb.WriteString(host)
	if port != "" {
		sb.WriteString(":")
		sb.WriteString(port)
	}
	sb.WriteString(path)
	if query != "" {
		sb.WriteString("?")
		sb.WriteString(query)
	}

	return Result{Normalized: sb.String(), Original: raw}
}

// Equivalent reports whether two URLs normalize to the same canonical form.
// URLs that fail to normalize are never equivalent.
func Equivalent(a, b string) bool {
	ra := Normalize(a)
	rb := Normalize(b)
	if ra.Err != nil || rb.Err != nil {
		return false
	}
	return ra.Normalized == rb.Normalized
}

func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var sb strings.Builder
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type queryPair struct {
	key   string
	value string
}

func normalizeQuery(values url.Values) string {
	var pairs []queryPair
	for key, list := range values {
		if isTrackingParam(strings.ToLower(key)) {
			continue
		}
		for _, value := range list {
			pairs = append(pairs, queryPair{key: key, value: value})
		}
	}
	if len(pairs) == 0 {
		return ""
	}

	// Sort by lowercased key first, then raw value, for a stable ordering
	// regardless of how the provider emitted the pairs.
	sort.Slice(pairs, func(i, j int) bool {
		ki := strings.ToLower(pairs[i].key)
		kj := strings.ToLower(pairs[j].key)
		if ki != kj {
			return ki < kj
		}
		return pairs[i].value < pairs[j].value
	})

	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, url.QueryEscape(pair.key)+"="+url.QueryEscape(pair.value))
	}
	return strings.Join(parts, "&")
}
