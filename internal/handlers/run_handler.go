package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pjsousa/jobato-platform/internal/app"
	"github.com/pjsousa/jobato-platform/internal/services/events"
	"github.com/pjsousa/jobato-platform/internal/services/ingestion"
)

// RunHandler triggers ingestion runs from the operator query config.
type RunHandler struct {
	app *app.App
}

// NewRunHandler creates the run trigger handler.
func NewRunHandler(application *app.App) *RunHandler {
	return &RunHandler{app: application}
}

// TriggerRun handles POST /runs. It crosses queries.yaml with
// allowlists.yaml and publishes a run.requested event for the worker to
// pick up. The run executes asynchronously.
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	inputs, err := ingestion.BuildRunInputs(h.app.Config.ConfigDir())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.New().String()
	event, err := events.BuildRunEvent(events.TypeRunRequested, runID, map[string]interface{}{
		"runInputs": inputs,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fields, err := event.Fields()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.app.Stream.Publish(r.Context(), fields); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	h.app.Logger.Info().
		Str("run_id", runID).
		Int("inputs", len(inputs)).
		Msg("Run requested via API")

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"runId":  runID,
		"inputs": len(inputs),
		"status": "requested",
	})
}
