package api

import (
	"net/http"

	"log/slog"

	"github.com/batchflow/batchflow/internal/auth"
	"github.com/batchflow/batchflow/internal/batching"
	"github.com/batchflow/batchflow/internal/budget"
	"github.com/batchflow/batchflow/internal/forecaster"
	"github.com/batchflow/batchflow/internal/ledger"
	"github.com/batchflow/batchflow/internal/strategist"
)

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, pipeline *batching.Pipeline, usage *ledger.Ledger, monitor *budget.Monitor, engine *forecaster.Engine, coordinator *strategist.Coordinator, authConfig auth.Config, logger *slog.Logger) {
	handler := NewHandler(pipeline, usage, monitor, engine, coordinator, logger)
	authHandler := NewAuthHandler(authConfig, logger)
	authMiddleware := auth.Middleware(authConfig)

	// Authentication (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)

	// Submission and observability (public)
	mux.HandleFunc("/api/items", handler.SubmitItem)
	mux.HandleFunc("/api/queue/stats", handler.GetQueueStats)
	mux.HandleFunc("/api/budget/status", handler.GetBudgetStatus)
	mux.HandleFunc("/api/forecast", handler.GetForecast)
	mux.HandleFunc("/api/forecast/exhaustion", handler.GetExhaustion)
	mux.HandleFunc("/api/usage", handler.GetUsage)
	mux.HandleFunc("/api/strategy/current", handler.GetStrategy)

	// Admin (auth required)
	mux.Handle("/api/config", authMiddleware(http.HandlerFunc(handler.UpdateConfig)))
	mux.Handle("/api/strategy/override", authMiddleware(http.HandlerFunc(handler.UpdateOverride)))

	mux.HandleFunc("/healthz", handler.Healthz)
}
