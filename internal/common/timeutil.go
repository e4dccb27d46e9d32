// Package common provides shared utilities across the application.
package common

import (
	"strings"
	"time"
)

// Timestamp layout: all emitted timestamps are UTC, second precision, RFC3339 with Z suffix.
const timestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders a time as UTC second-precision RFC3339 with Z suffix.
func FormatTimestamp(value time.Time) string {
	return value.UTC().Truncate(time.Second).Format(timestampLayout)
}

// ParseTimestamp parses an RFC3339 timestamp. It accepts both the Z suffix and
// numeric offsets; the returned time is normalized to UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// TimestampNow returns the current instant formatted as an event timestamp.
func TimestampNow() string {
	return FormatTimestamp(time.Now())
}
