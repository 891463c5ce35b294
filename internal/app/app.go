// Package app wires the stores, caches and artifact backends from config
// and runs the selected mode: migrate, collect, sync, verify, validate,
// backtest, paper or serve.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/ashare-quant/internal/config"
	"github.com/alanyoungcy/ashare-quant/internal/notify"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

// App owns the configuration, logger and the cleanup functions run in
// reverse order on shutdown.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *strategy.Registry
	closers  []func()
}

// New creates an App with the built-in strategy registry.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "app")),
		registry: strategy.DefaultRegistry(),
	}
}

// Run wires dependencies and blocks in the configured mode until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	err = a.runMode(ctx, deps)
	if err != nil && ctx.Err() == nil {
		_ = deps.Notifier.Notify(ctx, notify.EventError, "aquant "+a.cfg.Mode+" failed", map[string]any{
			"error": err.Error(),
		})
	}
	return err
}

func (a *App) runMode(ctx context.Context, deps *Dependencies) error {
	switch strings.ToLower(a.cfg.Mode) {
	case "migrate":
		return a.MigrateMode(ctx, deps)
	case "collect":
		return a.CollectMode(ctx, deps)
	case "import":
		return a.ImportMode(ctx, deps)
	case "sync":
		return a.SyncMode(ctx, deps)
	case "verify":
		return a.VerifyMode(ctx, deps)
	case "validate":
		return a.ValidateMode(ctx, deps)
	case "backtest":
		return a.BacktestMode(ctx, deps)
	case "paper":
		return a.PaperMode(ctx, deps)
	case "serve":
		return a.ServeMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
