// Package api provides the HTTP surface of the permit office.
package api

import (
	"fmt"
	"time"

	"github.com/MacJediWizard/aurospan/internal/api/handlers"
	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/MacJediWizard/aurospan/internal/gameserver"
	"github.com/MacJediWizard/aurospan/internal/metrics"
	"github.com/MacJediWizard/aurospan/internal/uploads"
	"github.com/MacJediWizard/aurospan/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
)

// Config holds configuration for the API router.
type Config struct {
	// RateLimitRequests is the number of login and submission requests
	// allowed per client per period.
	RateLimitRequests int64
	// RateLimitPeriod is the rate limit window.
	RateLimitPeriod time.Duration
	// MaxFileBytes and MaxFiles size the submission body limit.
	MaxFileBytes int64
	MaxFiles     int
	// AdminRoles gates the dashboard and server control routes.
	AdminRoles auth.RoleAllowList
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		RateLimitRequests: 60,
		RateLimitPeriod:   time.Minute,
		MaxFileBytes:      10 << 20,
		MaxFiles:          10,
		AdminRoles:        auth.NewRoleAllowList(auth.DefaultAdminRoleIDs),
	}
}

// Store is the application store as seen by the router.
type Store interface {
	handlers.ApplicationReader
	handlers.DatabaseHealthChecker
}

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Store      Store
	Catalog    handlers.Catalog
	Intake     handlers.PermitIntake
	Uploads    uploads.Store
	Identity   handlers.AuthorizationURLProvider
	Login      handlers.LoginRunner
	Sessions   *auth.SessionStore
	Controller gameserver.Controller

	// Optional.
	Volumes      handlers.VolumeCollector
	Shutdown     handlers.ShutdownStatusProvider
	Metrics      *metrics.PrometheusMetrics
	Gatherer     prometheus.Gatherer
	LimiterStore limiter.Store
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	r.Engine.SetHTMLTemplate(tmpl)

	static, err := web.Static()
	if err != nil {
		return nil, err
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		r.Engine.Use(middleware.Metrics(deps.Metrics))
	}
	r.Engine.Use(middleware.SessionMiddleware(deps.Sessions))

	limiterStore := deps.LimiterStore
	if limiterStore == nil {
		if limiterStore, err = middleware.NewLimiterStore(nil); err != nil {
			return nil, err
		}
	}
	rateLimiter, err := middleware.NewRateLimiter(limiterStore, cfg.RateLimitRequests, cfg.RateLimitPeriod, logger)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	r.Engine.StaticFS("/static", static)
	r.Engine.NoRoute(handlers.NotFound)

	// Health check endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Volumes, logger)
	if deps.Shutdown != nil {
		healthHandler.SetShutdownStatus(deps.Shutdown)
	}
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	if deps.Gatherer != nil {
		r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Lore pages and the application form
	contentHandler := handlers.NewContentHandler(deps.Catalog, cfg.MaxFiles, logger)
	contentHandler.RegisterPublicRoutes(r.Engine)

	uploadsHandler := handlers.NewUploadsHandler(deps.Uploads, logger)
	uploadsHandler.RegisterPublicRoutes(r.Engine)

	// Login flow (rate limited)
	authGroup := r.Engine.Group("", rateLimiter)
	authHandler := handlers.NewAuthHandler(deps.Identity, deps.Login, deps.Sessions, logger)
	if deps.Metrics != nil {
		authHandler.SetRecorder(deps.Metrics)
	}
	authHandler.RegisterPublicRoutes(authGroup)

	// Permit submission (rate limited, size capped)
	submitGroup := r.Engine.Group("", rateLimiter,
		middleware.BodyLimitMiddleware(middleware.SubmissionBodyLimit(cfg.MaxFileBytes, cfg.MaxFiles)))
	permitHandler := handlers.NewPermitHandler(deps.Intake, logger)
	permitHandler.RegisterPublicRoutes(submitGroup)

	// Registry (login required) and council routes (admin role required)
	adminHandler := handlers.NewAdminHandler(deps.Store, deps.Controller, logger)
	adminHandler.RegisterLoginRoutes(r.Engine.Group("", middleware.LoginRequired(logger)))
	adminHandler.RegisterAdminRoutes(r.Engine.Group("", middleware.AdminRequired(cfg.AdminRoles, logger)))

	r.logger.Info().
		Int("admin_roles", cfg.AdminRoles.Len()).
		Int64("rate_limit", cfg.RateLimitRequests).
		Dur("rate_limit_period", cfg.RateLimitPeriod).
		Msg("router initialized")

	return r, nil
}
