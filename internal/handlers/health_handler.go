package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pjsousa/jobato-platform/internal/app"
	"github.com/pjsousa/jobato-platform/internal/common"
)

// HealthHandler reports service liveness and dependency status.
type HealthHandler struct {
	app *app.App
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(application *app.App) *HealthHandler {
	return &HealthHandler{app: application}
}

// Health handles GET /health. Redis reachability decides between healthy
// and degraded; degraded reports 503 so load balancers can react.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	redisStatus := "connected"

	if err := h.app.Stream.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		redisStatus = "unreachable"
	}

	writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": common.GetVersion(),
		"redis":   redisStatus,
	})
}
