package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/flaco-inc/flaco/internal/infrastructure/config"
	"github.com/flaco-inc/flaco/internal/infrastructure/database"
	"github.com/flaco-inc/flaco/internal/infrastructure/migration"
	"github.com/flaco-inc/flaco/internal/infrastructure/repository"
	"github.com/flaco-inc/flaco/internal/interfaces/cli/clienv"
	httpRouter "github.com/flaco-inc/flaco/internal/interfaces/http"
	"github.com/flaco-inc/flaco/internal/shared/goroutine"
	"github.com/flaco-inc/flaco/internal/shared/logger"
)

const counterPruneInterval = 10 * time.Minute

var (
	flags              clienv.Flags
	autoMigrate        bool
	skipMigrationCheck bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the flaco license server: billing webhooks, license verification and the admin API.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&flags.Env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "Apply pending database migrations on startup")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, log, err := clienv.Load(&flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Infow("starting server",
		"mode", cfg.Server.Mode,
		"database", cfg.Database.Driver,
		"auto_migrate", autoMigrate)

	flush := initSentry(cfg, log)
	defer flush()

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(cfg, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	container, err := httpRouter.NewContainer(database.Get(), cfg, log)
	if err != nil {
		return err
	}
	defer container.Shutdown()

	router := httpRouter.NewRouter(container)
	router.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RateLimit.Backend != "redis" {
		startCounterPruning(ctx, container.Store(), cfg.RateLimit.Window, log)
	}

	srv := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           router.GetEngine(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	goroutine.SafeGo(log, "http-server", func() {
		log.Infow("server listening",
			"address", cfg.Server.GetAddr(),
			"base_url", cfg.Server.BaseURL)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	})

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Infow("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func initSentry(cfg *config.Config, log logger.Interface) func() {
	if cfg.Sentry.DSN == "" {
		return func() {}
	}

	environment := cfg.Sentry.Environment
	if environment == "" {
		environment = flags.Env
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      environment,
		SampleRate:       cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	}); err != nil {
		log.Warnw("failed to initialize sentry, error reporting disabled", "error", err)
		return func() {}
	}

	log.Infow("sentry error reporting enabled", "environment", environment)
	return func() { sentry.Flush(2 * time.Second) }
}

// startCounterPruning deletes rate-limit counters from windows that can no
// longer be hit.
func startCounterPruning(ctx context.Context, store *repository.LicenseStore, window time.Duration, log logger.Interface) {
	goroutine.Every(ctx, log, "ratelimit-prune", counterPruneInterval, func(ctx context.Context) {
		cutoff := time.Now().Add(-2 * window)
		removed, err := store.PruneRateLimitCounters(ctx, cutoff)
		if err != nil {
			log.Warnw("failed to prune rate limit counters", "error", err)
			return
		}
		if removed > 0 {
			log.Debugw("pruned rate limit counters", "removed", removed)
		}
	})
}

func handleMigrations(cfg *config.Config, log logger.Interface) error {
	manager := migration.NewManager(cfg.Database.Driver, log)

	if autoMigrate {
		if cfg.Server.Mode == "release" && cfg.Database.Driver != "sqlite" {
			log.Warnw("auto-migration against a shared database in production, prefer `flaco migrate up`")
		}
		return manager.Migrate(database.Get())
	}

	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	gooseStrategy, ok := manager.GetStrategy().(*migration.GooseStrategy)
	if !ok {
		return nil
	}
	version, err := gooseStrategy.GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", version)
	return nil
}
