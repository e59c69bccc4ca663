// Package main is the entrypoint for the Aurospan permit office server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MacJediWizard/aurospan/internal/api"
	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/MacJediWizard/aurospan/internal/config"
	"github.com/MacJediWizard/aurospan/internal/content"
	"github.com/MacJediWizard/aurospan/internal/db"
	"github.com/MacJediWizard/aurospan/internal/gameserver"
	"github.com/MacJediWizard/aurospan/internal/health"
	"github.com/MacJediWizard/aurospan/internal/httpclient"
	"github.com/MacJediWizard/aurospan/internal/metrics"
	"github.com/MacJediWizard/aurospan/internal/notifications"
	"github.com/MacJediWizard/aurospan/internal/permits"
	"github.com/MacJediWizard/aurospan/internal/shutdown"
	"github.com/MacJediWizard/aurospan/internal/uploads"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting Aurospan permit office")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	// Open database
	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabasePath), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open database")
		return 1
	}

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	httpClient, err := httpclient.New(httpclient.Options{Proxy: &cfg.Proxy})
	if err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to build HTTP client")
		return 1
	}
	if cfg.Proxy.HasProxy() {
		logger.Info().Str("proxy", httpclient.Describe(&cfg.Proxy)).Msg("Outbound proxy configured")
	}

	// Upload storage
	var files uploads.Store
	volumePaths := []string{filepath.Dir(cfg.DatabasePath)}
	switch cfg.UploadBackend {
	case config.UploadBackendS3:
		files, err = uploads.NewS3Store(ctx, uploads.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
		}, httpClient)
	default:
		var local *uploads.LocalStore
		local, err = uploads.NewLocalStore(cfg.UploadDir)
		if err == nil {
			files = local
			volumePaths = append(volumePaths, local.Dir())
		}
	}
	if err != nil {
		database.Close()
		logger.Error().Err(err).Str("backend", cfg.UploadBackend).Msg("Failed to initialize upload storage")
		return 1
	}
	logger.Info().Str("backend", files.Type()).Msg("Upload storage ready")

	catalog, err := content.Load()
	if err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to load lore catalog")
		return 1
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}

	// Discord identity and sessions
	discordCfg := auth.DefaultDiscordConfig(
		cfg.Discord.ClientID,
		cfg.Discord.ClientSecret,
		cfg.Discord.RedirectURI,
		cfg.Discord.BotToken,
		cfg.Discord.GuildID,
	)
	if cfg.Discord.APIBase != "" {
		discordCfg.APIBase = cfg.Discord.APIBase
	}
	discord := auth.NewDiscord(discordCfg, httpClient, logger)
	pipeline := auth.NewLoginPipeline(discord, cfg.LoginTimeout)

	sessionCfg := auth.DefaultSessionConfig([]byte(cfg.SessionSecret), cfg.IsProduction())
	if cfg.SessionMaxAge > 0 {
		sessionCfg.MaxAge = cfg.SessionMaxAge
	}
	sessions, err := auth.NewSessionStore(sessionCfg, logger)
	if err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to create session store")
		return 1
	}

	adminRoles := cfg.AdminRoleIDs
	if len(adminRoles) == 0 {
		adminRoles = auth.DefaultAdminRoleIDs
	}

	// Permit intake
	intake := permits.NewService(database, files, permits.Options{
		MaxFileBytes: cfg.MaxUploadBytes,
		MaxFiles:     cfg.MaxFilesPerSubmission,
	}, logger)
	intake.SetRecorder(promMetrics)
	if cfg.Discord.WebhookURL != "" {
		notifier, err := notifications.NewDiscordService(notifications.DiscordConfig{
			WebhookURL:    cfg.Discord.WebhookURL,
			PublicBaseURL: cfg.PublicBaseURL,
			RequireHTTPS:  cfg.IsProduction(),
		}, httpClient, logger)
		if err != nil {
			database.Close()
			logger.Error().Err(err).Msg("Invalid staff webhook")
			return 1
		}
		intake.SetNotifier(notifier.WithRecorder(promMetrics))
	} else {
		logger.Warn().Msg("DISCORD_WEBHOOK_URL not set, staff notifications disabled")
	}

	// Rate limiter store, shared across instances when Redis is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			database.Close()
			logger.Error().Err(err).Msg("Failed to connect to Redis")
			return 1
		}
		logger.Info().Msg("Rate limiter using Redis store")
	}
	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to initialize rate limiter store")
		return 1
	}

	lifecycle := shutdown.NewManager(shutdown.DefaultConfig(), logger)

	routerCfg := api.Config{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		MaxFileBytes:      cfg.MaxUploadBytes,
		MaxFiles:          cfg.MaxFilesPerSubmission,
		AdminRoles:        auth.NewRoleAllowList(adminRoles),
	}

	router, err := api.NewRouter(routerCfg, api.Dependencies{
		Store:        database,
		Catalog:      catalog,
		Intake:       intake,
		Uploads:      files,
		Identity:     discord,
		Login:        pipeline,
		Sessions:     sessions,
		Controller:   gameserver.NewLogController(logger),
		Volumes:      health.NewCollector(volumePaths...),
		Shutdown:     lifecycle,
		Metrics:      promMetrics,
		Gatherer:     registry,
		LimiterStore: limiterStore,
	}, logger)
	if err != nil {
		database.Close()
		logger.Error().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	lifecycle.Register("http server", srv.Shutdown)
	lifecycle.Register("staff notifications", shutdown.WaitStep(intake.Wait))
	if redisClient != nil {
		lifecycle.Register("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	lifecycle.Register("database", func(context.Context) error {
		database.Close()
		return nil
	})

	// Start server in background
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serveErr:
		logger.Error().Err(err).Msg("HTTP server error")
		exitCode = 1
	}

	if err := lifecycle.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Shutdown finished with errors")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return exitCode
}
