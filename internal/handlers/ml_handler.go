package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pjsousa/jobato-platform/internal/app"
	"github.com/pjsousa/jobato-platform/internal/services/activation"
	"github.com/pjsousa/jobato-platform/internal/services/retrain"
)

// MLHandler serves the model lifecycle endpoints: evaluation, activation,
// rollback and retraining.
type MLHandler struct {
	app *app.App
}

// NewMLHandler creates the model lifecycle handler.
func NewMLHandler(application *app.App) *MLHandler {
	return &MLHandler{app: application}
}

// ListModels handles GET /ml/models.
func (h *MLHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	type modelView struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		Default bool   `json:"default"`
	}

	available := h.app.Registry.GetAvailableModels()
	models := make([]modelView, 0, len(available))
	for _, loaded := range available {
		models = append(models, modelView{
			ID:      loaded.Entry.ID,
			Version: loaded.Entry.Version,
			Default: loaded.Entry.Default,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":     models,
		"loadErrors": h.app.Registry.LoadErrors(),
	})
}

// TriggerEvaluation handles POST /ml/evaluations. The evaluation runs
// asynchronously; the 202 response carries the id to poll.
func (h *MLHandler) TriggerEvaluation(w http.ResponseWriter, r *http.Request) {
	response, err := h.app.Evaluation.Trigger()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, response)
}

// GetEvaluation handles GET /ml/evaluations/{id}.
func (h *MLHandler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.PathValue("id")

	run, results, err := h.app.Evaluation.GetRun(evaluationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":     run,
		"results": results,
	})
}

// GetEvaluationResults handles GET /ml/evaluations/{id}/results.
func (h *MLHandler) GetEvaluationResults(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.PathValue("id")

	run, results, err := h.app.Evaluation.GetRun(evaluationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type actorRequest struct {
	Actor string `json:"actor"`
}

// decodeActor reads the optional actor body, defaulting to "api".
func decodeActor(r *http.Request) string {
	var request actorRequest
	json.NewDecoder(r.Body).Decode(&request)
	if request.Actor == "" {
		return "api"
	}
	return request.Actor
}

// ActivateModel handles POST /ml/models/{id}/activate.
func (h *MLHandler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("id")

	active, err := h.app.Activation.Activate(modelID, decodeActor(r))
	if err != nil {
		switch {
		case errors.Is(err, activation.ErrModelNotRegistered):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, activation.ErrNoEvaluation):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// RollbackModel handles POST /ml/models/{id}/rollback.
func (h *MLHandler) RollbackModel(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("id")

	active, err := h.app.Activation.Rollback(modelID, decodeActor(r))
	if err != nil {
		switch {
		case errors.Is(err, activation.ErrNoActivationHistory):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, activation.ErrModelNotRegistered):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// GetComparisons handles GET /ml/models/comparisons.
func (h *MLHandler) GetComparisons(w http.ResponseWriter, r *http.Request) {
	comparisons, err := h.app.Activation.Comparisons()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comparisons": comparisons})
}

// GetActiveModel handles GET /ml/models/active.
func (h *MLHandler) GetActiveModel(w http.ResponseWriter, r *http.Request) {
	active, err := h.app.Activation.Active()
	if err != nil {
		if errors.Is(err, activation.ErrNoActiveModel) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// GetActivationHistory handles GET /ml/models/history.
func (h *MLHandler) GetActivationHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.app.Activation.History(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// TriggerRetrain handles POST /ml/retrain/trigger. The active model is
// retrained synchronously; a concurrent retrain reports 409.
func (h *MLHandler) TriggerRetrain(w http.ResponseWriter, r *http.Request) {
	job, err := h.app.Retrain.Run("manual")
	if err != nil {
		switch {
		case errors.Is(err, retrain.ErrRetrainInProgress), errors.Is(err, retrain.ErrNoActiveModel):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, retrain.ErrModelNotRegistered):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, retrain.ErrModelNotStateful):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			if job != nil {
				writeJSON(w, http.StatusInternalServerError, job)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetRetrainStatus handles GET /ml/retrain/status.
func (h *MLHandler) GetRetrainStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Retrain.CurrentStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetRetrainHistory handles GET /ml/retrain/history.
func (h *MLHandler) GetRetrainHistory(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.app.Retrain.History(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// GetRetrainJob handles GET /ml/retrain/{id}.
func (h *MLHandler) GetRetrainJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.app.Retrain.Job(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "retrain job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
