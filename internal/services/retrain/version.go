// Package retrain rebuilds models from accumulated labels and promotes the
// result, on demand or on a daily schedule.
package retrain

import (
	"strings"
	"time"
)

// NextVersion derives the retrained version: the previous version with a UTC
// timestamp suffix appended. An empty previous version starts from "v0".
func NextVersion(previous string, trainedAt time.Time) string {
	base := strings.TrimSpace(previous)
	if base == "" {
		base = "v0"
	}
	return base + "-" + trainedAt.UTC().Format("20060102150405")
}
