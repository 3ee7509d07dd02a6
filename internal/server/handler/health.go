package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/polyarb/internal/server/respond"
)

// Check probes one backing dependency.
type Check func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]Check
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Each named check is run on every
// request; any failure turns the response into a 503.
func NewHealthHandler(checks map[string]Check, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logHandler(logger, "health")}
}

// HealthCheck reports liveness and the result of each dependency check.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			results[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	respond.JSON(w, code, map[string]any{
		"status":    status,
		"checks":    results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
