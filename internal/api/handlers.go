package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/batchflow/batchflow/internal/batching"
	"github.com/batchflow/batchflow/internal/budget"
	"github.com/batchflow/batchflow/internal/forecaster"
	"github.com/batchflow/batchflow/internal/ledger"
	"github.com/batchflow/batchflow/internal/models"
	"github.com/batchflow/batchflow/internal/strategist"
)

// Handler serves the pipeline's observability and admin surface.
type Handler struct {
	pipeline    *batching.Pipeline
	usage       *ledger.Ledger
	monitor     *budget.Monitor
	engine      *forecaster.Engine
	coordinator *strategist.Coordinator
	logger      *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(pipeline *batching.Pipeline, usage *ledger.Ledger, monitor *budget.Monitor, engine *forecaster.Engine, coordinator *strategist.Coordinator, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline:    pipeline,
		usage:       usage,
		monitor:     monitor,
		engine:      engine,
		coordinator: coordinator,
		logger:      logger,
	}
}

// SubmitRequest represents an item submission.
type SubmitRequest struct {
	Key      string `json:"key"`
	Payload  string `json:"payload"`
	TaskType string `json:"task_type"`
	Priority int    `json:"priority"`
}

// SubmitResponse carries the resolved outcome back to the caller.
type SubmitResponse struct {
	ItemID      string `json:"item_id"`
	Content     string `json:"content"`
	InputUnits  int    `json:"input_units"`
	OutputUnits int    `json:"output_units"`
}

// SubmitItem handles POST /api/items. The request blocks at the caller's
// await point until the item's batch resolves; per-item failures surface
// here, never as panics past this handler.
func (h *Handler) SubmitItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" || req.Payload == "" {
		http.Error(w, "key and payload are required", http.StatusBadRequest)
		return
	}

	item := models.NewWorkItem(req.Key, []byte(req.Payload), req.TaskType, req.Priority)
	result, err := h.pipeline.Enqueue(r.Context(), item)
	if err != nil {
		h.logger.Error("enqueue failed", "key", req.Key, "error", err)
		http.Error(w, "Failed to enqueue item", http.StatusServiceUnavailable)
		return
	}

	resp, err := result.Wait(r.Context())
	if err != nil {
		// Withdraw the item if the caller gave up before flush.
		if errors.Is(err, r.Context().Err()) {
			h.pipeline.Cancel(req.Key, item.ID)
			http.Error(w, "Request cancelled", http.StatusRequestTimeout)
			return
		}
		h.logger.Warn("item failed", "key", req.Key, "item_id", item.ID, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		ItemID:      item.ID,
		Content:     string(resp.Content),
		InputUnits:  resp.InputUnits,
		OutputUnits: resp.OutputUnits,
	})
}

// GetQueueStats handles GET /api/queue/stats
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queues": h.pipeline.QueueStats(),
		"config": h.pipeline.Config(),
	})
}

// GetBudgetStatus handles GET /api/budget/status
func (h *Handler) GetBudgetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.monitor.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to compute budget status", "error", err)
		http.Error(w, "Failed to compute budget status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetForecast handles GET /api/forecast?horizon=short|medium|long
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	horizon := models.Horizon(r.URL.Query().Get("horizon"))
	if horizon == "" {
		horizon = models.HorizonShort
	}
	switch horizon {
	case models.HorizonShort, models.HorizonMedium, models.HorizonLong:
	default:
		http.Error(w, "horizon must be one of short, medium, long", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Forecast(r.Context(), horizon)
	if err != nil {
		h.logger.Error("forecast failed", "horizon", horizon, "error", err)
		http.Error(w, "Failed to compute forecast", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetExhaustion handles GET /api/forecast/exhaustion
func (h *Handler) GetExhaustion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.monitor.Status(r.Context())
	if err != nil {
		http.Error(w, "Failed to compute budget status", http.StatusInternalServerError)
		return
	}

	exhaustion, err := h.engine.ForecastExhaustion(r.Context(), state.Remaining)
	if err != nil {
		h.logger.Error("exhaustion forecast failed", "error", err)
		http.Error(w, "Failed to compute exhaustion forecast", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{"projected": exhaustion != nil}
	if exhaustion != nil {
		resp["exhaustion_date"] = exhaustion.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUsage handles GET /api/usage?timeframe=day|week|month
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tf := models.Timeframe(r.URL.Query().Get("timeframe"))
	if tf == "" {
		tf = models.TimeframeDay
	}

	stats, err := h.usage.Query(r.Context(), tf)
	if err != nil {
		http.Error(w, "timeframe must be one of day, week, month", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetStrategy handles GET /api/strategy/current
func (h *Handler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.coordinator.CurrentStrategy())
}

// ConfigRequest mirrors models.BatchConfig with millisecond wait time.
type ConfigRequest struct {
	MaxBatchSize   int   `json:"max_batch_size"`
	MinBatchSize   int   `json:"min_batch_size"`
	MaxWaitTimeMs  int64 `json:"max_wait_time_ms"`
	PriorityBypass bool  `json:"priority_bypass"`
}

// UpdateConfig handles POST /api/config. An invalid config is rejected
// with 400 and the previously active config remains in effect.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg := models.BatchConfig{
		MaxBatchSize:   req.MaxBatchSize,
		MinBatchSize:   req.MinBatchSize,
		MaxWaitTime:    time.Duration(req.MaxWaitTimeMs) * time.Millisecond,
		PriorityBypass: req.PriorityBypass,
	}
	if err := h.pipeline.SetConfig(cfg); err != nil {
		var invalid *models.ConfigInvalidError
		if errors.As(err, &invalid) {
			http.Error(w, invalid.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to update config", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config":  h.pipeline.Config(),
	})
}

// OverrideRequest pins or clears a manual profile override.
type OverrideRequest struct {
	Profile string `json:"profile"`
	Clear   bool   `json:"clear"`
}

// UpdateOverride handles POST /api/strategy/override
func (h *Handler) UpdateOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Clear {
		h.coordinator.ClearOverride()
	} else if err := h.coordinator.SetOverride(models.Profile(req.Profile)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.coordinator.UpdateComponentParameters(r.Context()); err != nil {
		h.logger.Error("failed to apply override", "error", err)
		http.Error(w, "Failed to apply override", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, h.coordinator.CurrentStrategy())
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
