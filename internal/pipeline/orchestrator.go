// Package pipeline composes the engine components into three independently
// scheduled cycles: monitor, discovery, and cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
	"github.com/lkozlowski/tokensentry/internal/market"
	"github.com/lkozlowski/tokensentry/internal/ratelimit"
	"github.com/lkozlowski/tokensentry/internal/retry"
)

// AlertSink receives alerts for delivery to an external messaging channel.
type AlertSink interface {
	Deliver(ctx context.Context, alert domain.Alert) error
}

// Archiver receives evicted asset state before it is discarded.
type Archiver interface {
	ArchiveEvicted(ctx context.Context, assets []domain.EvictedAsset) error
}

// Broadcaster pushes alerts to live in-process consumers (the websocket
// feed).
type Broadcaster interface {
	Broadcast(alert domain.Alert)
}

// Options wires an Orchestrator. AlertStore, Bus, Archiver, and Broadcaster
// are optional; nil disables the corresponding fan-out.
type Options struct {
	Universe *market.UniverseManager
	Store    *market.SnapshotStore
	Detector *market.SpikeDetector
	Provider domain.MarketDataProvider
	Limiter  *ratelimit.Limiter
	Sink     AlertSink
	Runtime  *config.Runtime

	AlertStore  domain.AlertStore
	Bus         domain.SignalBus
	Archiver    Archiver
	Broadcaster Broadcaster

	PollingInterval   time.Duration
	DiscoveryInterval time.Duration
	CleanupInterval   time.Duration
	BatchSize         int
	InterAlertDelay   time.Duration
	MaxIdle           time.Duration
	Retry             retry.Options

	Logger *slog.Logger
}

// Orchestrator drives data from the provider through the engine and fans
// resulting alerts out to the configured sinks. Each cycle body runs
// sequentially inside its own loop, so a slow cycle runs long instead of
// overlapping itself; the three loops are independent and may be in flight
// simultaneously.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Orchestrator from the given options.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts the three cycle loops under one errgroup and blocks until the
// context is cancelled. In-flight work drains; pending timers are dropped.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Duration("polling_interval", o.opts.PollingInterval),
		slog.Duration("discovery_interval", o.opts.DiscoveryInterval),
		slog.Duration("cleanup_interval", o.opts.CleanupInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.runLoop(ctx, "discovery", o.opts.DiscoveryInterval, o.discoveryCycle)
	})
	g.Go(func() error {
		return o.runLoop(ctx, "monitor", o.opts.PollingInterval, o.monitorCycle)
	})
	g.Go(func() error {
		return o.runLoop(ctx, "cleanup", o.opts.CleanupInterval, o.cleanupCycle)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		o.logger.Info("orchestrator stopped cleanly")
		return nil
	}
	return err
}

// runLoop executes cycle immediately, then on every tick until cancellation.
// Cycle errors are logged here and never abort the loop, so a failure in one
// cycle cannot halt the others.
func (o *Orchestrator) runLoop(ctx context.Context, name string, interval time.Duration, cycle func(ctx context.Context) error) error {
	run := func() {
		started := time.Now()
		if err := cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("cycle failed",
				slog.String("cycle", name),
				slog.String("error", err.Error()),
			)
		} else {
			o.logger.Debug("cycle finished",
				slog.String("cycle", name),
				slog.Duration("elapsed", time.Since(started)),
			)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

// monitorCycle polls the tracked universe in provider-bounded batches, feeds
// every record through the store and the detector, and delivers the
// collected alerts once all batches have completed.
func (o *Orchestrator) monitorCycle(ctx context.Context) error {
	if o.opts.Runtime.Current().Paused {
		o.logger.Debug("monitoring paused, skipping cycle")
		return nil
	}

	members := o.opts.Universe.Members()
	if len(members) == 0 {
		return nil
	}

	var alerts []domain.Alert
	batches := lo.Chunk(members, o.opts.BatchSize)

	for _, batch := range batches {
		if err := o.opts.Limiter.Wait(ctx); err != nil {
			return err
		}

		records, err := o.fetchBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// A batch failure after retries skips this batch only.
			o.logger.Warn("batch fetch failed, skipping",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, rec := range records {
			// Evaluate first: dormancy must reflect the window as of just
			// before this snapshot.
			alert, fired := o.opts.Detector.Evaluate(rec)

			if err := o.opts.Store.Record(rec); err != nil && !errors.Is(err, domain.ErrUnverifiedSource) {
				o.logger.Warn("record snapshot failed",
					slog.String("address", rec.Address),
					slog.String("error", err.Error()),
				)
			}

			if fired {
				alerts = append(alerts, alert)
			}
		}
	}

	return o.deliverAlerts(ctx, alerts)
}

// fetchBatch performs one rate-limited, retried bulk lookup. Every attempt
// counts against the sliding window. The failure hook classifies errors for
// logging only; the backoff schedule is fixed either way.
func (o *Orchestrator) fetchBatch(ctx context.Context, batch []string) ([]domain.TokenRecord, error) {
	opts := o.opts.Retry
	opts.OnFailure = func(attempt int, err error) {
		kind := "transient"
		if errors.Is(err, domain.ErrRateLimited) {
			kind = "rate_limited"
		}
		o.logger.Warn("batch fetch attempt failed",
			slog.Int("attempt", attempt),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}

	return retry.DoValue(ctx, opts, func(ctx context.Context) ([]domain.TokenRecord, error) {
		records, err := o.opts.Provider.Tokens(ctx, batch)
		o.opts.Limiter.Record()
		return records, err
	})
}

// deliverAlerts hands alerts to the sink one at a time with a small delay in
// between, respecting the messaging channel's own rate limits. The cooldown
// stamp was already taken at evaluation time, so a delivery failure here is
// logged and dropped rather than re-fired.
func (o *Orchestrator) deliverAlerts(ctx context.Context, alerts []domain.Alert) error {
	for i, alert := range alerts {
		if i > 0 && o.opts.InterAlertDelay > 0 {
			timer := time.NewTimer(o.opts.InterAlertDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := o.opts.Sink.Deliver(ctx, alert); err != nil {
			o.logger.Error("alert delivery failed",
				slog.String("alert_id", alert.ID),
				slog.String("error", err.Error()),
			)
		}

		o.fanOut(ctx, alert)
	}
	return nil
}

// fanOut persists, publishes, and broadcasts one alert through whichever
// optional sinks are wired. Failures are logged and never block delivery.
func (o *Orchestrator) fanOut(ctx context.Context, alert domain.Alert) {
	if o.opts.AlertStore != nil {
		if err := o.opts.AlertStore.Insert(ctx, alert); err != nil {
			o.logger.Error("alert persist failed",
				slog.String("alert_id", alert.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if o.opts.Bus != nil {
		if payload, err := encodeAlert(alert); err == nil {
			if err := o.opts.Bus.Publish(ctx, alertsChannel, payload); err != nil {
				o.logger.Error("alert publish failed",
					slog.String("alert_id", alert.ID),
					slog.String("error", err.Error()),
				)
			}
			if err := o.opts.Bus.StreamAppend(ctx, alertsStream, payload); err != nil {
				o.logger.Error("alert stream append failed",
					slog.String("alert_id", alert.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if o.opts.Broadcaster != nil {
		o.opts.Broadcaster.Broadcast(alert)
	}
}

// discoveryCycle searches for new eligible tokens, then revalidates every
// current member. Per-identity failures are tolerated and skipped.
func (o *Orchestrator) discoveryCycle(ctx context.Context) error {
	added := o.opts.Universe.Discover(ctx)
	if len(added) > 0 {
		o.logger.Info("discovery added tokens", slog.Int("count", len(added)))
	}

	for _, address := range o.opts.Universe.Members() {
		if err := o.opts.Limiter.Wait(ctx); err != nil {
			return err
		}
		err := o.opts.Universe.Revalidate(ctx, address)
		o.opts.Limiter.Record()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			o.logger.Warn("revalidation failed, keeping membership",
				slog.String("address", address),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// cleanupCycle evicts asset state idle past the horizon and hands the
// evicted records to the archiver when one is wired.
func (o *Orchestrator) cleanupCycle(ctx context.Context) error {
	evicted := o.opts.Store.EvictStale(o.opts.MaxIdle)
	if len(evicted) == 0 {
		return nil
	}

	o.logger.Info("evicted stale asset state", slog.Int("count", len(evicted)))

	if o.opts.Archiver != nil {
		if err := o.opts.Archiver.ArchiveEvicted(ctx, evicted); err != nil {
			return fmt.Errorf("pipeline: archive evicted: %w", err)
		}
	}
	return nil
}
