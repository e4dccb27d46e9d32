// Package events defines the run event envelope and its Redis stream transport.
package events

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pjsousa/jobato-platform/internal/common"
)

// Event types the run worker consumes and emits.
const (
	TypeRunRequested = "run.requested"
	TypeRunCompleted = "run.completed"
	TypeRunFailed    = "run.failed"

	// EventVersion travels as an integer rendered as a string.
	EventVersion = "1"
)

// eventTypePattern enforces dot-separated lowercase segments.
var eventTypePattern = regexp.MustCompile(`^[a-z]+(\.[a-z]+)+$`)

// RunEvent is the envelope every stream entry carries.
type RunEvent struct {
	EventID      string                 `json:"eventId"`
	EventType    string                 `json:"eventType"`
	EventVersion string                 `json:"eventVersion"`
	OccurredAt   string                 `json:"occurredAt"`
	RunID        string                 `json:"runId"`
	Payload      map[string]interface{} `json:"payload"`
}

// BuildRunEvent assembles a new envelope with a fresh event id and the
// current timestamp. The event type must be dot-separated lowercase.
func BuildRunEvent(eventType, runID string, payload map[string]interface{}) (*RunEvent, error) {
	if !eventTypePattern.MatchString(eventType) {
		return nil, fmt.Errorf("invalid event type %q: must be dot-separated lowercase segments", eventType)
	}
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("event requires a run id")
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &RunEvent{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		EventVersion: EventVersion,
		OccurredAt:   common.TimestampNow(),
		RunID:        runID,
		Payload:      payload,
	}, nil
}

// Fields flattens the envelope for XAdd. The payload travels as JSON.
func (e *RunEvent) Fields() (map[string]interface{}, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}
	return map[string]interface{}{
		"eventId":      e.EventID,
		"eventType":    e.EventType,
		"eventVersion": e.EventVersion,
		"occurredAt":   e.OccurredAt,
		"runId":        e.RunID,
		"payload":      string(payload),
	}, nil
}

// ParseRunEvent validates and decodes a stream entry's field map. Every
// envelope field is required; a malformed payload or missing field is an
// error so the worker can skip the entry.
func ParseRunEvent(values map[string]interface{}) (*RunEvent, error) {
	event := &RunEvent{}

	var ok bool
	if event.EventID, ok = stringField(values, "eventId"); !ok {
		return nil, fmt.Errorf("event missing eventId")
	}
	if event.EventType, ok = stringField(values, "eventType"); !ok {
		return nil, fmt.Errorf("event missing eventType")
	}
	if !eventTypePattern.MatchString(event.EventType) {
		return nil, fmt.Errorf("invalid event type %q", event.EventType)
	}
	if event.EventVersion, ok = stringField(values, "eventVersion"); !ok {
		return nil, fmt.Errorf("event missing eventVersion")
	}
	if _, err := strconv.Atoi(event.EventVersion); err != nil {
		return nil, fmt.Errorf("invalid eventVersion %q: must be an integer", event.EventVersion)
	}
	if event.OccurredAt, ok = stringField(values, "occurredAt"); !ok {
		return nil, fmt.Errorf("event missing occurredAt")
	}
	if _, valid := common.ParseTimestamp(event.OccurredAt); !valid {
		return nil, fmt.Errorf("invalid occurredAt %q", event.OccurredAt)
	}
	if event.RunID, ok = stringField(values, "runId"); !ok {
		return nil, fmt.Errorf("event missing runId")
	}

	raw, ok := stringField(values, "payload")
	if !ok {
		return nil, fmt.Errorf("event missing payload")
	}
	if err := json.Unmarshal([]byte(raw), &event.Payload); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}

	return event, nil
}

func stringField(values map[string]interface{}, key string) (string, bool) {
	raw, ok := values[key]
	if !ok {
		return "", false
	}
	str, ok := raw.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", false
	}
	return str, true
}
