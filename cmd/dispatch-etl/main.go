package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dispatchstack/dispatch-etl/internal/cache"
	"github.com/dispatchstack/dispatch-etl/internal/classify"
	"github.com/dispatchstack/dispatch-etl/internal/config"
	"github.com/dispatchstack/dispatch-etl/internal/engine"
	"github.com/dispatchstack/dispatch-etl/internal/ingest"
	"github.com/dispatchstack/dispatch-etl/internal/metrics"
	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/reconcile"
	"github.com/dispatchstack/dispatch-etl/internal/repo"
	"github.com/dispatchstack/dispatch-etl/internal/report"
	"github.com/dispatchstack/dispatch-etl/internal/services"
	"github.com/dispatchstack/dispatch-etl/internal/utils"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dispatch-etl",
		Short:         "Batch ETL for fire and EMS dispatch records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
			return runMigrations(cfg, logger)
		},
	}
}

func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Database.URL == "" {
		return errors.New("database URL is not configured")
	}

	migrationURL := cfg.Database.URL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New("file://"+cfg.Database.MigrationsPath, migrationURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("database migrations applied")
	return nil
}

func newRunCmd(configPath *string) *cobra.Command {
	var sourceName string

	cmd := &cobra.Command{
		Use:   "run <file-or-directory>",
		Short: "Process one CSV export or every export in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseSource(sourceName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cfg, args[0], source)
		},
	}
	cmd.Flags().StringVar(&sourceName, "source", "", "dispatch feed: fire or ems")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func parseSource(name string) (models.Source, error) {
	switch strings.ToLower(name) {
	case "fire":
		return models.SourceFire, nil
	case "ems":
		return models.SourceEMS, nil
	default:
		return "", fmt.Errorf("unknown source %q, expected fire or ems", name)
	}
}

func runBatch(parent context.Context, cfg *config.Config, path string, source models.Source) error {
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting dispatch-etl", slog.String("version", version), slog.String("source", string(source)))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.Server.MetricsAddress, logger, stop)

	loc := time.UTC
	if cfg.Pipeline.Timezone != "" {
		parsed, err := time.LoadLocation(cfg.Pipeline.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Pipeline.Timezone, err)
		}
		loc = parsed
	}

	table, err := classify.LoadTable(cfg.Pipeline.ClassTablePath)
	if err != nil {
		return fmt.Errorf("load unit class table: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	store, err := repo.NewStore(connectCtx, cfg.Database.URL, cfg.Database.MaxConns, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var publisher report.Publisher = report.NewLogPublisher(logger)
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		redisProvider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis unavailable, running without lock and report queue", slog.Any("error", err))
		} else {
			defer redisProvider.Close()
			cacheProvider = redisProvider
			if cfg.Report.Enabled {
				publisher = report.NewQueuePublisher(redisProvider.Client(), cfg.Report.Queue, logger)
			}
		}
	}

	trackers := make([]*engine.UsageTracker, 0, len(cfg.Pipeline.Trackers))
	for _, tc := range cfg.Pipeline.Trackers {
		trackers = append(trackers, engine.NewUsageTracker(tc))
	}

	svc := services.NewBatchService(services.Options{
		Logger:     logger,
		Loader:     ingest.NewLoader(logger, loc),
		Pipeline:   engine.NewPipeline(logger, table, engine.NewCRFCalculator(table, cfg.Pipeline.ForceThreshold), trackers),
		Reconciler: reconcile.NewEngine(logger, store),
		Cache:      cacheProvider,
		Publisher:  publisher,
		Schemas: map[models.Source]ingest.Schema{
			models.SourceFire: cfg.SchemaFor(models.SourceFire),
			models.SourceEMS:  cfg.SchemaFor(models.SourceEMS),
		},
		LockTTL:    cfg.Cache.LockTTL,
		ArchiveDir: cfg.Files.ArchiveDir,
		FailureDir: cfg.Files.FailureDir,
	})

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat input path: %w", err)
	}
	if info.IsDir() {
		_, err = svc.ProcessDir(ctx, path, source)
	} else {
		_, err = svc.ProcessFile(ctx, path, source)
	}

	shutdownMetricsServer(metricsServer, logger)
	return err
}

func startMetricsServer(addr string, logger *slog.Logger, stop context.CancelFunc) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", slog.Any("error", err))
			stop()
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server, logger *slog.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
