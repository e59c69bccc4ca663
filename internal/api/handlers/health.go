package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MacJediWizard/aurospan/internal/health"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const readinessTimeout = 5 * time.Second

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// HealthResponse is the response for the readiness endpoint.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks,omitempty"`
	Error  string                        `json:"error,omitempty"`
}

// DatabaseHealthChecker defines the interface for database health checking.
type DatabaseHealthChecker interface {
	Ping(ctx context.Context) error
	Health() map[string]any
}

// VolumeCollector measures the disk volumes the server writes to.
type VolumeCollector interface {
	Collect(ctx context.Context) ([]health.VolumeUsage, error)
}

// ShutdownStatusProvider reports whether the server still accepts requests.
type ShutdownStatusProvider interface {
	IsAcceptingRequests() bool
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	db       DatabaseHealthChecker
	volumes  VolumeCollector
	checker  *health.Checker
	shutdown ShutdownStatusProvider
	logger   zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil volume collector skips
// the storage check.
func NewHealthHandler(db DatabaseHealthChecker, volumes VolumeCollector, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		volumes: volumes,
		checker: health.NewCheckerWithDefaults(),
		logger:  logger.With().Str("component", "health_handler").Logger(),
	}
}

// SetShutdownStatus makes readiness fail once shutdown begins.
func (h *HealthHandler) SetShutdownStatus(p ShutdownStatusProvider) {
	h.shutdown = p
}

// RegisterPublicRoutes registers health routes that don't require authentication.
func (h *HealthHandler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
}

// Live reports that the process is serving requests.
// GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks the database and storage volumes.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.shutdown != nil && !h.shutdown.IsAcceptingRequests() {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: HealthStatusUnhealthy,
			Error:  "server is shutting down",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	response := HealthResponse{
		Status: HealthStatusHealthy,
		Checks: map[string]*HealthCheckResult{
			"database": h.checkDatabase(ctx),
		},
	}
	if h.volumes != nil {
		response.Checks["storage"] = h.checkStorage(ctx)
	}

	for name, result := range response.Checks {
		if result.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
			response.Error = name + ": " + result.Error
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}

// checkDatabase performs a database health check.
func (h *HealthHandler) checkDatabase(ctx context.Context) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{
		Status: HealthStatusHealthy,
	}

	if h.db == nil {
		result.Status = HealthStatusUnhealthy
		result.Error = "database not configured"
		result.Duration = time.Since(start).String()
		return result
	}

	err := h.db.Ping(ctx)
	result.Duration = time.Since(start).String()

	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = "database ping failed"
		h.logger.Warn().Err(err).Msg("database health check failed")
		return result
	}

	result.Details = h.db.Health()

	return result
}

// checkStorage measures disk usage of the upload and database volumes.
// Only a critical volume fails readiness.
func (h *HealthHandler) checkStorage(ctx context.Context) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{
		Status: HealthStatusHealthy,
	}

	volumes, err := h.volumes.Collect(ctx)
	result.Duration = time.Since(start).String()
	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = "disk usage unavailable"
		h.logger.Warn().Err(err).Msg("storage health check failed")
		return result
	}

	eval := h.checker.Evaluate(volumes)
	result.Details = map[string]any{
		"status":  eval.Status,
		"volumes": eval.Volumes,
	}
	if len(eval.Issues) > 0 {
		result.Details["issues"] = eval.Issues
	}

	if eval.Status == health.StatusCritical {
		result.Status = HealthStatusUnhealthy
		result.Error = eval.Message
		h.logger.Warn().Interface("issues", eval.Issues).Msg("storage volume nearly full")
	}

	return result
}
