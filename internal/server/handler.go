package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
	"github.com/lkozlowski/tokensentry/internal/market"
)

// Handler serves the status and control endpoints. Settings mutations go
// through the runtime holder and take effect on the next evaluation; no
// restart is involved.
type Handler struct {
	universe   *market.UniverseManager
	store      *market.SnapshotStore
	runtime    *config.Runtime
	alertStore domain.AlertStore // nil when persistence is disabled
	startedAt  time.Time
	logger     *slog.Logger
}

// NewHandler creates a Handler over the engine components.
func NewHandler(
	universe *market.UniverseManager,
	store *market.SnapshotStore,
	runtime *config.Runtime,
	alertStore domain.AlertStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		universe:   universe,
		store:      store,
		runtime:    runtime,
		alertStore: alertStore,
		startedAt:  time.Now(),
		logger:     logger.With(slog.String("component", "handler")),
	}
}

// Health responds with a simple liveness payload.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports the engine's operational state.
// GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	s := h.runtime.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":      int64(time.Since(h.startedAt).Seconds()),
		"universe_count":      h.universe.Count(),
		"tracked_count":       h.store.Tracked(),
		"paused":              s.Paused,
		"tier25_enabled":      s.Tier25Enabled,
		"tier50_enabled":      s.Tier50Enabled,
		"min_token_age_hours": s.MinTokenAgeHours,
		"max_market_cap":      s.MaxMarketCap,
		"min_liquidity_usd":   s.MinLiquidityUSD,
		"cooldown_ms":         s.Cooldown.Milliseconds(),
	})
}

// RecentAlerts returns the most recent persisted alerts, or 404 when
// persistence is not configured.
// GET /alerts/recent
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alertStore == nil {
		writeError(w, http.StatusNotFound, "alert persistence is not configured")
		return
	}
	alerts, err := h.alertStore.ListRecent(r.Context(), 50)
	if err != nil {
		h.logger.Error("list recent alerts failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// Pause suspends monitor evaluation starting with the next cycle.
// POST /control/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.runtime.SetPaused(true)
	h.logger.Info("monitoring paused")
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// Resume re-enables monitor evaluation.
// POST /control/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.runtime.SetPaused(false)
	h.logger.Info("monitoring resumed")
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// settingsPatch is the partial-update payload for runtime settings. Pointer
// fields distinguish "absent" from zero values.
type settingsPatch struct {
	Tier25Enabled    *bool    `json:"tier25_enabled"`
	Tier50Enabled    *bool    `json:"tier50_enabled"`
	MinTokenAgeHours *float64 `json:"min_token_age_hours"`
	MaxMarketCap     *float64 `json:"max_market_cap"`
	MinLiquidityUSD  *float64 `json:"min_liquidity_usd"`
	CooldownMs       *int64   `json:"cooldown_ms"`
}

// UpdateSettings applies a partial update to the runtime settings.
// PATCH /control/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if patch.CooldownMs != nil && *patch.CooldownMs <= 0 {
		writeError(w, http.StatusBadRequest, "cooldown_ms must be positive")
		return
	}

	updated := h.runtime.Update(func(s *config.Settings) {
		if patch.Tier25Enabled != nil {
			s.Tier25Enabled = *patch.Tier25Enabled
		}
		if patch.Tier50Enabled != nil {
			s.Tier50Enabled = *patch.Tier50Enabled
		}
		if patch.MinTokenAgeHours != nil {
			s.MinTokenAgeHours = *patch.MinTokenAgeHours
		}
		if patch.MaxMarketCap != nil {
			s.MaxMarketCap = *patch.MaxMarketCap
		}
		if patch.MinLiquidityUSD != nil {
			s.MinLiquidityUSD = *patch.MinLiquidityUSD
		}
		if patch.CooldownMs != nil {
			s.Cooldown = time.Duration(*patch.CooldownMs) * time.Millisecond
		}
	})

	h.logger.Info("runtime settings updated")
	writeJSON(w, http.StatusOK, map[string]any{
		"tier25_enabled":      updated.Tier25Enabled,
		"tier50_enabled":      updated.Tier50Enabled,
		"min_token_age_hours": updated.MinTokenAgeHours,
		"max_market_cap":      updated.MaxMarketCap,
		"min_liquidity_usd":   updated.MinLiquidityUSD,
		"cooldown_ms":         updated.Cooldown.Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
