// Package app wires configuration into running components and owns the
// process lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lkozlowski/tokensentry/internal/config"
)

// shutdownGrace bounds how long in-flight HTTP requests may take once the
// root context is cancelled.
const shutdownGrace = 10 * time.Second

// App is the composed application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an App from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all components and blocks until the context is cancelled or a
// component fails. Resources are released before Run returns.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	defer cleanup()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})

	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}

	a.logger.Info("tokensentry running",
		slog.Int("universe_count", deps.Universe.Count()),
		slog.Bool("server_enabled", deps.Server != nil),
	)

	return g.Wait()
}
