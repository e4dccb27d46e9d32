package models

import (
	"errors"
	"fmt"
)

// NetworkError marks a failure in an upstream dependency (search provider,
// URL resolver). Run failures caused by a NetworkError are reported with the
// NETWORK_ERROR class; everything else is INGESTION_ERROR.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("network error during %s", e.Op)
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether any error in the chain is a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// Run failure classes carried on run.completed failure events.
const (
	ErrorClassNetwork   = "NETWORK_ERROR"
	ErrorClassIngestion = "INGESTION_ERROR"
)

// ClassifyRunError maps an error to its failure class.
func ClassifyRunError(err error) string {
	if IsNetworkError(err) {
		return ErrorClassNetwork
	}
	return ErrorClassIngestion
}

// TruncateErrorMessage bounds an error message for event payloads.
func TruncateErrorMessage(msg string, limit int) string {
	if limit <= 0 {
		limit = 100
	}
	runes := []rune(msg)
	if len(runes) <= limit {
		return msg
	}
	return string(runes[:limit])
}
