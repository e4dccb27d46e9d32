package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRunEvent(t *testing.T) {
	event, err := BuildRunEvent(TypeRunCompleted, "run-1", map[string]interface{}{"status": "completed"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, TypeRunCompleted, event.EventType)
	assert.Equal(t, EventVersion, event.EventVersion)
	assert.Equal(t, "run-1", event.RunID)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, event.OccurredAt)
}

func TestBuildRunEvent_Validation(t *testing.T) {
	_, err := BuildRunEvent("RunRequested", "run-1", nil)
	assert.Error(t, err)

	_, err = BuildRunEvent("run", "run-1", nil)
	assert.Error(t, err)

	_, err = BuildRunEvent("run.requested", "  ", nil)
	assert.Error(t, err)
}

func TestFieldsRoundTrip(t *testing.T) {
	event, err := BuildRunEvent(TypeRunRequested, "run-42", map[string]interface{}{"modelId": "keyword"})
	require.NoError(t, err)

	fields, err := event.Fields()
	require.NoError(t, err)

	parsed, err := ParseRunEvent(fields)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, parsed.EventID)
	assert.Equal(t, event.EventType, parsed.EventType)
	assert.Equal(t, event.RunID, parsed.RunID)
	assert.Equal(t, "keyword", parsed.Payload["modelId"])
}

func TestParseRunEvent_Malformed(t *testing.T) {
	valid := map[string]interface{}{
		"eventId":      "e-1",
		"eventType":    "run.requested",
		"eventVersion": "1",
		"occurredAt":   "2026-08-24T10:00:00Z",
		"runId":        "run-1",
		"payload":      "{}",
	}

	t.Run("valid parses", func(t *testing.T) {
		_, err := ParseRunEvent(valid)
		assert.NoError(t, err)
	})

	for _, missing := range []string{"eventId", "eventType", "eventVersion", "occurredAt", "runId", "payload"} {
		t.Run("missing "+missing, func(t *testing.T) {
			values := map[string]interface{}{}
			for k, v := range valid {
				if k != missing {
					values[k] = v
				}
			}
			_, err := ParseRunEvent(values)
			assert.Error(t, err)
		})
	}

	t.Run("bad timestamp", func(t *testing.T) {
		values := map[string]interface{}{}
		for k, v := range valid {
			values[k] = v
		}
		values["occurredAt"] = "yesterday"
		_, err := ParseRunEvent(values)
		assert.Error(t, err)
	})

	t.Run("bad payload json", func(t *testing.T) {
		values := map[string]interface{}{}
		for k, v := range valid {
			values[k] = v
		}
		values["payload"] = "{not json"
		_, err := ParseRunEvent(values)
		assert.Error(t, err)
	})

	t.Run("non-integer version", func(t *testing.T) {
		values := map[string]interface{}{}
		for k, v := range valid {
			values[k] = v
		}
		values["eventVersion"] = "1.0"
		_, err := ParseRunEvent(values)
		assert.Error(t, err)
	})

	t.Run("uppercase event type", func(t *testing.T) {
		values := map[string]interface{}{}
		for k, v := range valid {
			values[k] = v
		}
		values["eventType"] = "Run.Requested"
		_, err := ParseRunEvent(values)
		assert.Error(t, err)
	})
}
