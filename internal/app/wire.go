package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/lkozlowski/tokensentry/internal/blob/s3"
	"github.com/lkozlowski/tokensentry/internal/cache/redis"
	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
	"github.com/lkozlowski/tokensentry/internal/market"
	"github.com/lkozlowski/tokensentry/internal/notify"
	"github.com/lkozlowski/tokensentry/internal/pipeline"
	"github.com/lkozlowski/tokensentry/internal/platform/dexscreener"
	"github.com/lkozlowski/tokensentry/internal/ratelimit"
	"github.com/lkozlowski/tokensentry/internal/retry"
	"github.com/lkozlowski/tokensentry/internal/server"
	"github.com/lkozlowski/tokensentry/internal/store/postgres"
)

// Deps aggregates every constructed component. Optional members are nil
// when their configuration section is absent.
type Deps struct {
	Runtime      *config.Runtime
	Store        *market.SnapshotStore
	Universe     *market.UniverseManager
	Detector     *market.SpikeDetector
	Orchestrator *pipeline.Orchestrator
	Server       *server.Server
}

// Wire constructs all dependencies from the configuration. The returned
// cleanup function closes owned resources in reverse construction order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	runtime := config.NewRuntime(cfg)

	provider := dexscreener.New(cfg.Provider.BaseURL, logger)
	store := market.NewSnapshotStore(cfg.Monitor.SnapshotCapacity)
	classifier := market.DormancyClassifier{
		VolumeCeilingUSD:       cfg.Dormancy.VolumeCeilingUSD,
		VolatilityThresholdPct: cfg.Dormancy.VolatilityThresholdPct,
	}
	detector := market.NewSpikeDetector(store, classifier, runtime, cfg.Dormancy.BaselineWindowMinutes, logger)
	universe := market.NewUniverseManager(provider, runtime, cfg.Discovery.Queries, logger)

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMs)*time.Millisecond)

	var senders []notify.Sender
	if strings.TrimSpace(cfg.Notify.TelegramToken) != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if strings.TrimSpace(cfg.Notify.DiscordWebhook) != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	notifier := notify.New(senders, nil, logger)

	var alertStore domain.AlertStore
	if strings.TrimSpace(cfg.Postgres.DSN) != "" {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: postgres: %w", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: migrations: %w", err)
			}
		}
		alertStore = postgres.NewAlertStore(pg.Pool())
	}

	var bus domain.SignalBus
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		bus = redis.NewSignalBus(rc)
	}

	var archiver pipeline.Archiver
	if strings.TrimSpace(cfg.S3.Bucket) != "" {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: s3: %w", err)
		}
		archiver = s3blob.NewArchiver(s3blob.NewWriter(sc))
	}

	var srv *server.Server
	var hub *server.Hub
	if strings.TrimSpace(cfg.Server.Addr) != "" {
		hub = server.NewHub(logger)
		handler := server.NewHandler(universe, store, runtime, alertStore, logger)
		srv = server.New(cfg.Server.Addr, handler, hub, logger)
	}

	orch := pipeline.New(pipeline.Options{
		Universe: universe,
		Store:    store,
		Detector: detector,
		Provider: provider,
		Limiter:  limiter,
		Sink:     notifier,
		Runtime:  runtime,

		AlertStore:  alertStore,
		Bus:         bus,
		Archiver:    archiver,
		Broadcaster: broadcasterOrNil(hub),

		PollingInterval:   cfg.PollingInterval(),
		DiscoveryInterval: cfg.DiscoveryInterval(),
		CleanupInterval:   cfg.CleanupInterval(),
		BatchSize:         cfg.Provider.BatchSize,
		InterAlertDelay:   time.Duration(cfg.Monitor.InterAlertDelayMs) * time.Millisecond,
		MaxIdle:           time.Duration(cfg.Cleanup.MaxIdleHours * float64(time.Hour)),
		Retry: retry.Options{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		},

		Logger: logger,
	})

	return &Deps{
		Runtime:      runtime,
		Store:        store,
		Universe:     universe,
		Detector:     detector,
		Orchestrator: orch,
		Server:       srv,
	}, cleanup, nil
}

// broadcasterOrNil avoids storing a typed-nil *Hub in the Broadcaster
// interface field.
func broadcasterOrNil(hub *server.Hub) pipeline.Broadcaster {
	if hub == nil {
		return nil
	}
	return hub
}
