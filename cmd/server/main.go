package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/batchflow/batchflow/internal/api"
	"github.com/batchflow/batchflow/internal/auth"
	"github.com/batchflow/batchflow/internal/batching"
	"github.com/batchflow/batchflow/internal/budget"
	"github.com/batchflow/batchflow/internal/config"
	"github.com/batchflow/batchflow/internal/database"
	"github.com/batchflow/batchflow/internal/forecaster"
	"github.com/batchflow/batchflow/internal/ledger"
	"github.com/batchflow/batchflow/internal/logging"
	"github.com/batchflow/batchflow/internal/metrics"
	"github.com/batchflow/batchflow/internal/models"
	"github.com/batchflow/batchflow/internal/provider"
	"github.com/batchflow/batchflow/internal/scheduler"
	"github.com/batchflow/batchflow/internal/server"
	"github.com/batchflow/batchflow/internal/strategist"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting batchflow")

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Usage store: Postgres when DATABASE_URL is set, in-memory otherwise.
	var store ledger.Store
	if cfg.Provider.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Provider.DatabaseURL
		db, err := database.Connect(context.Background(), dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := database.NewUsageRepository(db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to ensure usage schema", "error", err)
			os.Exit(1)
		}
		store = repo
		logger.Info("using postgres usage store")
	} else {
		store = ledger.NewMemoryStore()
		logger.Info("using in-memory usage store")
	}

	usage := ledger.New(store, nil, logger)

	monitor, err := budget.NewMonitor(usage, cfg.Budget.TotalUSD, cfg.Budget.PeriodDays, time.Now(), logger)
	if err != nil {
		logger.Error("failed to init budget monitor", "error", err)
		os.Exit(1)
	}

	engine := forecaster.NewEngine(usage, monitor, logger)

	// Execution collaborator: a real provider when an API key is
	// configured, the mock otherwise.
	var collaborator batching.Collaborator
	switch {
	case cfg.Provider.OpenAIAPIKey != "":
		collaborator = provider.NewOpenAIExecutor(cfg.Provider.OpenAIAPIKey, logger)
		logger.Info("using openai execution collaborator")
	case cfg.Provider.AnthropicAPIKey != "":
		collaborator = provider.NewAnthropicExecutor(cfg.Provider.AnthropicAPIKey, logger)
		logger.Info("using anthropic execution collaborator")
	default:
		collaborator = provider.NewMockExecutor()
		logger.Warn("no provider API key set, using mock execution collaborator")
	}

	executor := batching.NewBatchExecutor(
		collaborator,
		usage,
		provider.NewStaticCostTable(),
		cfg.Batching.BatchDiscount,
		logger,
		collector,
	)

	initialConfig := models.BatchConfig{
		MaxBatchSize:   cfg.Batching.MaxBatchSize,
		MinBatchSize:   cfg.Batching.MinBatchSize,
		MaxWaitTime:    cfg.Batching.MaxWaitTime,
		PriorityBypass: cfg.Batching.PriorityBypass,
	}
	pipeline, err := batching.NewPipeline(initialConfig, executor, logger, collector)
	if err != nil {
		logger.Error("failed to init pipeline", "error", err)
		os.Exit(1)
	}

	coordinator := strategist.NewCoordinator(monitor, engine, pipeline, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retuner := scheduler.NewStrategyScheduler(coordinator, cfg.Budget.RetuneInterval, logger)
	go retuner.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	api.SetupRoutes(mux, pipeline, usage, monitor, engine, coordinator, authConfig, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("batchflow started successfully", "port", cfg.Server.Port)

	waitForSignal(logger)

	logger.Info("shutting down")
	retuner.Stop()
	cancel()

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		logger.Error("pipeline shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
