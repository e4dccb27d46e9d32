package server

import (
	"net/http"

	"github.com/pjsousa/jobato-platform/internal/handlers"
)

// setupRoutes registers all HTTP endpoints
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(s.app)
	runHandler := handlers.NewRunHandler(s.app)
	mlHandler := handlers.NewMLHandler(s.app)

	mux.HandleFunc("GET /health", healthHandler.Health)

	mux.HandleFunc("POST /runs", runHandler.TriggerRun)

	mux.HandleFunc("GET /ml/models", mlHandler.ListModels)
	mux.HandleFunc("GET /ml/models/active", mlHandler.GetActiveModel)
	mux.HandleFunc("GET /ml/models/history", mlHandler.GetActivationHistory)
	mux.HandleFunc("GET /ml/models/comparisons", mlHandler.GetComparisons)
	mux.HandleFunc("POST /ml/models/{id}/activate", mlHandler.ActivateModel)
	mux.HandleFunc("POST /ml/models/{id}/rollback", mlHandler.RollbackModel)

	mux.HandleFunc("POST /ml/evaluations", mlHandler.TriggerEvaluation)
	mux.HandleFunc("GET /ml/evaluations/{id}", mlHandler.GetEvaluation)
	mux.HandleFunc("GET /ml/evaluations/{id}/results", mlHandler.GetEvaluationResults)

	mux.HandleFunc("POST /ml/retrain/trigger", mlHandler.TriggerRetrain)
	mux.HandleFunc("GET /ml/retrain/status", mlHandler.GetRetrainStatus)
	mux.HandleFunc("GET /ml/retrain/history", mlHandler.GetRetrainHistory)
	mux.HandleFunc("GET /ml/retrain/{id}", mlHandler.GetRetrainJob)

	return mux
}
