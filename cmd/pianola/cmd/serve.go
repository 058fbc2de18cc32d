package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/pianola/internal/catalog"
	"github.com/jmylchreest/pianola/internal/config"
	"github.com/jmylchreest/pianola/internal/database"
	internalhttp "github.com/jmylchreest/pianola/internal/http"
	"github.com/jmylchreest/pianola/internal/http/handlers"
	"github.com/jmylchreest/pianola/internal/metrics"
	"github.com/jmylchreest/pianola/internal/observability"
	"github.com/jmylchreest/pianola/internal/playability"
	"github.com/jmylchreest/pianola/internal/repository"
	"github.com/jmylchreest/pianola/internal/scheduler"
	"github.com/jmylchreest/pianola/internal/service"
	"github.com/jmylchreest/pianola/internal/session"
	"github.com/jmylchreest/pianola/internal/version"
	"github.com/jmylchreest/pianola/pkg/duration"
	"github.com/jmylchreest/pianola/pkg/format"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pianola server",
	Long: `Start the pianola HTTP server and API.

The server provides:
- Playability negotiation for the calling browser
- Playback sessions with a server-sent notification stream
- Course progress fed by lesson completion
- Health check and Prometheus metrics endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("catalog-url", "", "Base URL of the lesson catalog API")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("catalog.base_url", serveCmd.Flags().Lookup("catalog-url"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if applied > 0 {
		logger.Info("applied database migrations", slog.Int("count", applied))
	}

	lessons, catalogClient, err := newLessonSource(cfg.Catalog, logger)
	if err != nil {
		return fmt.Errorf("initializing catalog: %w", err)
	}

	hub := session.NewHub(observability.WithComponent(logger, "notifications")).
		WithBuffer(cfg.Playback.NotificationBuffer).
		WithDropHook(metrics.RecordNotificationDropped)
	manager := session.NewManager(observability.WithComponent(logger, "sessions"), hub)

	progressService := service.NewProgressService(
		repository.NewCourseProgressRepository(db.DB),
		lessons,
	).WithLogger(logger)

	playbackService := service.NewPlaybackService(
		lessons,
		playability.NewNegotiator(observability.WithComponent(logger, "playability")),
		manager,
		repository.NewPlaybackRecordRepository(db.DB),
		progressService,
	).
		WithLogger(logger).
		WithPlaybackDefaults(cfg.Playback.ErrorMessage, cfg.Playback.DefaultVolume)

	// A nil *catalog.Client must not reach the interface.
	var circuit scheduler.CircuitReporter
	if catalogClient != nil {
		circuit = catalogClient
	}
	housekeeping := scheduler.New(playbackService, circuit).
		WithLogger(observability.WithComponent(logger, "scheduler")).
		WithConfig(scheduler.Config{
			Schedule:           cfg.Playback.PruneSchedule,
			SessionIdleTimeout: cfg.Playback.SessionIdleTimeout.Duration(),
			RecordRetention:    cfg.Playback.RecordRetention.Duration(),
		})
	if err := housekeeping.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer housekeeping.Stop()

	logger.Info("housekeeping scheduled",
		slog.String("schedule", format.CronDescription(cfg.Playback.PruneSchedule)),
		slog.String("session_idle_timeout", duration.Format(cfg.Playback.SessionIdleTimeout.Duration())),
		slog.String("record_retention", duration.Format(cfg.Playback.RecordRetention.Duration())),
	)

	server := internalhttp.NewServer(serverConfig(cfg), logger, version.Version)
	server.OnShutdown(hub.Close)
	defer manager.CloseAll()

	healthHandler := handlers.NewHealthHandler(version.Version).
		WithDB(db.DB).
		WithSessions(playbackService).
		WithScheduler(housekeeping)
	if catalogClient != nil {
		healthHandler.WithCatalog(catalogClient)
	}
	healthHandler.Register(server.API())

	handlers.NewPlayabilityHandler(playbackService).Register(server.API())

	sessionHandler := handlers.NewSessionHandler(playbackService, hub)
	sessionHandler.Register(server.API())
	sessionHandler.RegisterSSE(server.Router())

	handlers.NewProgressHandler(progressService).Register(server.API())

	logger.Info("starting pianola server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
		slog.Bool("remote_catalog", catalogClient != nil),
	)

	return server.ListenAndServe(ctx)
}

// newLessonSource returns the remote catalog client when one is configured,
// otherwise an empty in-memory source.
func newLessonSource(cfg config.CatalogConfig, logger *slog.Logger) (catalog.LessonSource, *catalog.Client, error) {
	if !cfg.Enabled() {
		logger.Warn("no catalog base URL configured, serving an empty lesson catalog")
		return catalog.NewStaticSource(), nil, nil
	}

	client, err := catalog.NewClient(catalog.ClientConfig{
		BaseURL:                 cfg.BaseURL,
		AuthToken:               cfg.AuthToken,
		Timeout:                 cfg.Timeout,
		RetryAttempts:           cfg.RetryAttempts,
		RetryDelay:              cfg.RetryDelay,
		CircuitBreakerThreshold: cfg.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.CircuitBreakerTimeout,
		Logger:                  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func serverConfig(cfg *config.Config) internalhttp.ServerConfig {
	sc := internalhttp.DefaultServerConfig()
	sc.Host = cfg.Server.Host
	sc.Port = cfg.Server.Port
	if cfg.Server.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	sc.CORSOrigins = cfg.Server.CORSOrigins
	sc.NegotiateRateLimit = cfg.Server.NegotiateRateLimit
	sc.MetricsPath = ""
	if cfg.Metrics.Enabled {
		sc.MetricsPath = cfg.Metrics.Path
	}
	return sc
}
