package market

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
)

// SpikeDetector evaluates incoming token records against the dormancy
// baseline and the tiered spike thresholds. Evaluate must be called with the
// pre-record window, i.e. before the record's snapshot is appended to the
// store, so dormancy reflects the state as of just before the spike.
type SpikeDetector struct {
	store           *SnapshotStore
	classifier      DormancyClassifier
	runtime         *config.Runtime
	baselineMinutes int
	logger          *slog.Logger
	now             func() time.Time
}

// NewSpikeDetector creates a detector reading cooldown and tier enablement
// from the runtime settings on every evaluation.
func NewSpikeDetector(
	store *SnapshotStore,
	classifier DormancyClassifier,
	runtime *config.Runtime,
	baselineMinutes int,
	logger *slog.Logger,
) *SpikeDetector {
	return &SpikeDetector{
		store:           store,
		classifier:      classifier,
		runtime:         runtime,
		baselineMinutes: baselineMinutes,
		logger:          logger.With(slog.String("component", "spike_detector")),
		now:             time.Now,
	}
}

// Evaluate runs the full detection pipeline for one record: hard gates,
// dormancy over the baseline window, tier selection from the provider's own
// 5-minute change figure, and the per-(token, tier) cooldown. The cooldown
// is stamped synchronously before the alert is returned; delivery happens
// later and cannot double-fire a tier inside its window.
func (d *SpikeDetector) Evaluate(rec domain.TokenRecord) (domain.Alert, bool) {
	settings := d.runtime.Current()
	now := d.now()

	// Hard gates, independent of dormancy.
	if !rec.Source.Verified() {
		return domain.Alert{}, false
	}
	if rec.MarketCap == 0 || rec.MarketCap >= settings.MaxMarketCap {
		return domain.Alert{}, false
	}
	if rec.Price <= 0 {
		return domain.Alert{}, false
	}
	if rec.LiquidityUSD < settings.MinLiquidityUSD {
		return domain.Alert{}, false
	}

	window := d.store.Window(rec.Address, d.baselineMinutes)
	if !d.classifier.Dormant(window) {
		return domain.Alert{}, false
	}

	// The provider's 5-minute change is authoritative: its window may differ
	// in phase from the local polling cadence, so the magnitude is not
	// re-derived from stored snapshots.
	tier, ok := selectTier(rec.PriceChange5m, settings)
	if !ok {
		return domain.Alert{}, false
	}

	if !d.store.TryMarkAlert(rec.Address, tier, now, settings.Cooldown) {
		d.logger.Debug("spike suppressed by cooldown",
			slog.String("address", rec.Address),
			slog.String("tier", string(tier)),
		)
		return domain.Alert{}, false
	}

	alert := domain.Alert{
		ID:            uuid.NewString(),
		Address:       rec.Address,
		Symbol:        rec.Symbol,
		Name:          rec.Name,
		Source:        rec.Source,
		Tier:          tier,
		AgeHours:      rec.AgeHours(now),
		PriceChange5m: rec.PriceChange5m,
		Price:         rec.Price,
		MarketCap:     rec.MarketCap,
		Volume5m:      rec.Volume5m,
		LiquidityUSD:  rec.LiquidityUSD,
		Timestamp:     now,
	}

	d.logger.Info("spike alert raised",
		slog.String("address", rec.Address),
		slog.String("symbol", rec.Symbol),
		slog.String("tier", string(tier)),
		slog.Float64("price_change_5m", rec.PriceChange5m),
	)

	return alert, true
}

// selectTier picks the highest enabled tier the 5-minute change qualifies
// for. Tier 50 is evaluated first so a 50% move never downgrades to tier 25.
func selectTier(change5m float64, s config.Settings) (domain.Tier, bool) {
	if s.Tier50Enabled && change5m >= domain.Tier50.Threshold() {
		return domain.Tier50, true
	}
	if s.Tier25Enabled && change5m >= domain.Tier25.Threshold() && change5m < domain.Tier50.Threshold() {
		return domain.Tier25, true
	}
	return "", false
}
