package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness and dependency health
type HealthHandler struct {
	checks map[string]HealthCheck
	jobs   func() []string
}

// NewHealthHandler creates a new HealthHandler. jobs lists the scheduled
// jobs and may be nil.
func NewHealthHandler(checks map[string]HealthCheck, jobs func() []string) *HealthHandler {
	return &HealthHandler{checks: checks, jobs: jobs}
}

// Health answers 200 when every check passes, 503 otherwise
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{
		"status": "ok",
		"checks": results,
		"time":   time.Now().UTC(),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.jobs != nil {
		body["jobs"] = h.jobs()
	}
	c.JSON(status, body)
}
