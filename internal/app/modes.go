package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ashare-quant/internal/backtest"
	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/feed"
	"github.com/alanyoungcy/ashare-quant/internal/notify"
	"github.com/alanyoungcy/ashare-quant/internal/paper"
	"github.com/alanyoungcy/ashare-quant/internal/pipeline"
	"github.com/alanyoungcy/ashare-quant/internal/platform/eastmoney"
	"github.com/alanyoungcy/ashare-quant/internal/report"
	"github.com/alanyoungcy/ashare-quant/internal/server"
	"github.com/alanyoungcy/ashare-quant/internal/server/handler"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
	"github.com/alanyoungcy/ashare-quant/internal/transform"
)

const shutdownTimeout = 10 * time.Second

// maxLoggedFailures caps the per-bar lines the validate mode prints.
const maxLoggedFailures = 20

// MigrateMode applies the embedded schema. The work happens in Wire; this
// reports what was applied.
func (a *App) MigrateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "migrations applied",
		slog.Int("count", len(deps.Migrations)),
		slog.Any("files", deps.Migrations),
	)
	return nil
}

// CollectMode pulls daily klines from EastMoney into the source table.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	cc := a.cfg.Collector
	adjust, err := eastmoney.ParseAdjust(cc.Adjust)
	if err != nil {
		return fmt.Errorf("app: collect: %w", err)
	}

	var opts []pipeline.CollectorOption
	if deps.Limiter != nil && cc.RateLimit > 0 {
		opts = append(opts, pipeline.WithRateLimiter(deps.Limiter))
	}
	collector := pipeline.NewCollector(
		deps.Source,
		eastmoney.NewClient(cc.BaseURL, adjust),
		pipeline.CollectorConfig{
			Symbols: cc.Symbols,
			Start:   cc.Start,
			End:     cc.End,
			Delay:   cc.Delay.Duration,
		},
		a.logger,
		opts...,
	)

	results, err := collector.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: collect: %w", err)
	}

	rows, failed := 0, 0
	for _, r := range results {
		rows += r.Rows
		if r.Err != nil {
			failed++
		}
	}
	summary := domain.RunSummary{Mode: "collect", Symbols: len(results), Failed: failed, Rows: rows}
	if err := deps.Audit.Log(ctx, notify.EventCollect, summary); err != nil {
		a.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
	_ = deps.Notifier.Notify(ctx, notify.EventCollect, "collection complete", summary.Fields())
	return nil
}

// ImportMode loads CSV files of daily bars straight into dbbardata.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	ic := a.cfg.Import
	unit, err := transform.ParseVolumeUnit(ic.VolumeUnit)
	if err != nil {
		return fmt.Errorf("app: import: %w", err)
	}
	tr, err := transform.New(unit, transform.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("app: import: %w", err)
	}
	sources, err := pipeline.CSVSources(ic.Files, ic.Symbol)
	if err != nil {
		return fmt.Errorf("app: import: %w", err)
	}

	res, err := pipeline.NewImporter(deps.Bars, tr, a.logger).Import(ctx, sources)
	if err != nil {
		return fmt.Errorf("app: import: %w", err)
	}

	summary := domain.RunSummary{Mode: "import", Symbols: res.Files, SourceRows: res.Bars, Rows: res.Written}
	if err := deps.Audit.Log(ctx, notify.EventImport, summary); err != nil {
		a.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
	_ = deps.Notifier.Notify(ctx, notify.EventImport, "csv import complete", summary.Fields())
	return nil
}

func (a *App) newSyncService(deps *Dependencies) (*pipeline.SyncService, error) {
	unit, err := transform.ParseVolumeUnit(a.cfg.Sync.VolumeUnit)
	if err != nil {
		return nil, err
	}
	tr, err := transform.New(unit, transform.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	opts := []pipeline.SyncOption{pipeline.WithSyncAudit(deps.Audit)}
	if deps.Locks != nil {
		opts = append(opts, pipeline.WithSyncLock(deps.Locks, a.cfg.Sync.LockTTL.Duration))
	}
	return pipeline.NewSyncService(deps.Source, deps.Bars, tr, a.logger, opts...), nil
}

// SyncMode merges the source table into dbbardata, then optionally prints
// per-symbol bar counts.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	mode, err := pipeline.ParseSyncMode(a.cfg.Sync.Mode)
	if err != nil {
		return fmt.Errorf("app: sync: %w", err)
	}
	svc, err := a.newSyncService(deps)
	if err != nil {
		return fmt.Errorf("app: sync: %w", err)
	}

	results, err := svc.Sync(ctx, pipeline.SyncOptions{
		Symbols: a.cfg.Sync.Symbols,
		Mode:    mode,
		Limit:   a.cfg.Sync.Limit,
	})
	if err != nil {
		if pipeline.IsLockHeld(err) {
			a.logger.WarnContext(ctx, "another sync holds the target lock")
		}
		return fmt.Errorf("app: sync: %w", err)
	}

	sum := pipeline.Summarize(results)
	_ = deps.Notifier.Notify(ctx, notify.EventSync, "sync complete", sum.RunSummary(mode).Fields())

	if !a.cfg.Sync.Verify {
		return nil
	}
	vts := make([]string, len(results))
	for i, r := range results {
		vts[i] = r.VTSymbol
	}
	return a.logCounts(ctx, svc, vts)
}

// VerifyMode prints the stored bar count of the configured symbols, or of
// every stored vt_symbol.
func (a *App) VerifyMode(ctx context.Context, deps *Dependencies) error {
	svc, err := a.newSyncService(deps)
	if err != nil {
		return fmt.Errorf("app: verify: %w", err)
	}
	vts := a.cfg.Sync.Symbols
	if len(vts) == 0 {
		vts, err = deps.Bars.ListVTSymbols(ctx, domain.IntervalDaily)
		if err != nil {
			return fmt.Errorf("app: verify: %w", err)
		}
	}
	return a.logCounts(ctx, svc, vts)
}

func (a *App) logCounts(ctx context.Context, svc *pipeline.SyncService, vts []string) error {
	counts, err := svc.Verify(ctx, vts)
	if err != nil {
		return fmt.Errorf("app: verify: %w", err)
	}
	var total int64
	for _, vt := range vts {
		vt = symbol.MustNormalize(vt).VTSymbol()
		a.logger.InfoContext(ctx, "bar count", slog.String("vt_symbol", vt), slog.Int64("bars", counts[vt]))
		total += counts[vt]
	}
	a.logger.InfoContext(ctx, "verify complete", slog.Int("symbols", len(vts)), slog.Int64("bars", total))
	return nil
}

// ValidateMode runs the OHLC integrity checks over stored bars. Failures
// are reported, not returned as errors.
func (a *App) ValidateMode(ctx context.Context, deps *Dependencies) error {
	results, err := pipeline.ValidateStore(ctx, deps.Bars, a.cfg.Sync.Symbols)
	if err != nil {
		return fmt.Errorf("app: validate: %w", err)
	}

	var total, failed int
	for _, v := range results {
		total += v.Report.Total
		failed += v.Report.Failed
		a.logger.InfoContext(ctx, "validated",
			slog.String("vt_symbol", v.VTSymbol),
			slog.Int("bars", v.Report.Total),
			slog.Int("passed", v.Report.Passed),
			slog.Int("failed", v.Report.Failed),
		)
		for i, c := range v.Report.Failures() {
			if i == maxLoggedFailures {
				a.logger.WarnContext(ctx, "further failures omitted", slog.String("vt_symbol", v.VTSymbol))
				break
			}
			a.logger.WarnContext(ctx, "ohlc check failed",
				slog.String("vt_symbol", v.VTSymbol),
				slog.String("date", c.Bar.Date()),
				slog.String("reason", c.Reason),
			)
		}
	}
	a.logger.InfoContext(ctx, "validation complete",
		slog.Int("symbols", len(results)),
		slog.Int("bars", total),
		slog.Int("failed", failed),
	)
	return nil
}

// buildStrategy resolves the configured strategy and the canonical
// vt_symbol it trades.
func (a *App) buildStrategy() (strategy.Strategy, string, error) {
	sc := a.cfg.Strategy
	if sc.VTSymbol == "" {
		return nil, "", &domain.ConfigError{Field: "strategy.vt_symbol", Value: ""}
	}
	info, err := symbol.Normalize(sc.VTSymbol)
	if err != nil {
		return nil, "", err
	}
	s, err := a.registry.Build(sc.Name, info.VTSymbol(), sc.Params, a.logger)
	if err != nil {
		return nil, "", err
	}
	return s, info.VTSymbol(), nil
}

// BacktestMode replays stored bars through the configured strategy and
// writes the report artifacts.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	strat, vt, err := a.buildStrategy()
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}
	bars, err := pipeline.LoadBars(ctx, deps.Bars, vt, a.cfg.Strategy.Start, a.cfg.Strategy.End)
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}
	a.logger.InfoContext(ctx, "bars loaded", slog.String("vt_symbol", vt), slog.Int("bars", len(bars)))

	bc := a.cfg.Backtest
	engine := backtest.New(backtest.Config{
		InitialCapital: bc.InitialCapital,
		CommissionRate: bc.CommissionRate,
		Slippage:       bc.Slippage,
		AllowShort:     bc.AllowShort,
	}, a.logger)
	engine.AddBars(bars)
	engine.AddStrategy(strat)

	res, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}

	arts, err := report.NewWriter(deps.BlobWriter, a.cfg.Output.ReportPrefix, a.logger).WriteBacktest(ctx, res)
	if err != nil {
		return fmt.Errorf("app: backtest: %w", err)
	}

	summary := domain.RunSummary{
		RunID:    res.RunID,
		Mode:     "backtest",
		Strategy: res.Strategy,
		VTSymbol: res.VTSymbol,
		Trades:   res.Stats.TradeCount,
		Artifact: arts.Summary,
		Metrics: map[string]float64{
			"days":         float64(res.Stats.Days),
			"total_return": res.Stats.TotalReturn,
			"sharpe_ratio": res.Stats.SharpeRatio,
			"max_drawdown": res.Stats.MaxDrawdown,
		},
	}
	if err := deps.Audit.Log(ctx, notify.EventBacktest, summary); err != nil {
		a.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
	_ = deps.Notifier.Notify(ctx, notify.EventBacktest, "backtest "+res.Strategy+" "+res.VTSymbol, summary.Fields())
	return nil
}

// PaperMode replays stored bars through a paper engine. With
// the monitoring server enabled the session stays inspectable after the
// replay until ctx is cancelled.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	strat, vt, err := a.buildStrategy()
	if err != nil {
		return fmt.Errorf("app: paper: %w", err)
	}
	bars, err := pipeline.LoadBars(ctx, deps.Bars, vt, a.cfg.Strategy.Start, a.cfg.Strategy.End)
	if err != nil {
		return fmt.Errorf("app: paper: %w", err)
	}

	pc := a.cfg.Paper
	opts := []paper.Option{paper.WithTradeStore(deps.Trades)}
	if deps.Prices != nil {
		opts = append(opts, paper.WithPriceCache(deps.Prices))
	}
	engine := paper.New(paper.Config{
		InitialCapital: pc.InitialCapital,
		CommissionRate: pc.CommissionRate,
		MinCommission:  pc.MinCommission,
		FundReserve:    pc.FundReserve,
		AllowShort:     pc.AllowShort,
	}, a.logger, opts...)
	engine.AddStrategy(strat)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("app: paper: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	replayer := feed.NewReplayer(bars, pc.Interval.Duration, engine, a.logger)
	g.Go(func() error { return replayer.Run(gctx) })

	if a.cfg.Server.Enabled {
		srv := a.newServer(deps, handler.NewPaperHandler(engine))
		a.serve(gctx, g, srv)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: paper: %w", err)
	}

	// Persist on a context that survives the interrupt that ended the run.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	rep, err := engine.Stop(stopCtx)
	if err != nil {
		return fmt.Errorf("app: paper: %w", err)
	}
	statePath := path.Join(a.cfg.Output.PaperPrefix, engine.RunID(), "state.json")
	if err := engine.SaveState(stopCtx, deps.BlobWriter, statePath); err != nil {
		return fmt.Errorf("app: paper: %w", err)
	}

	summary := domain.RunSummary{
		RunID:    rep.RunID,
		Mode:     "paper",
		Strategy: strat.Name(),
		VTSymbol: vt,
		Trades:   rep.TradeCount,
		Artifact: statePath,
		Metrics: map[string]float64{
			"total_value": rep.TotalValue,
			"pnl":         rep.PnL,
			"pnl_pct":     rep.PnLPct,
		},
	}
	if err := deps.Audit.Log(stopCtx, notify.EventPaper, summary); err != nil {
		a.logger.WarnContext(stopCtx, "audit log failed", slog.String("error", err.Error()))
	}
	_ = deps.Notifier.Notify(stopCtx, notify.EventPaper, "paper "+strat.Name()+" "+vt, summary.Fields())
	return nil
}

// ServeMode runs the monitoring API over stored bars, the audit log and
// artifacts until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, gctx := errgroup.WithContext(ctx)
	a.serve(gctx, g, a.newServer(deps, nil))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: serve: %w", err)
	}
	return nil
}

func (a *App) newServer(deps *Dependencies, paperHandler *handler.PaperHandler) *server.Server {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, a.cfg.Strategy.Name),
		Bars:   handler.NewBarHandler(deps.Bars, a.logger),
		Audit:  handler.NewAuditHandler(deps.Audit, a.logger),
		Paper:  paperHandler,
	}
	if deps.BlobReader != nil {
		handlers.Artifacts = handler.NewArtifactHandler(deps.BlobReader, a.logger)
	}
	return server.NewServer(server.Config{
		Port:      a.cfg.Server.Port,
		APIKey:    a.cfg.Server.APIKey,
		RateLimit: a.cfg.Server.RateLimit,
	}, handlers, deps.Limiter, a.logger)
}

// serve starts srv in g and shuts it down when ctx ends.
func (a *App) serve(ctx context.Context, g *errgroup.Group, srv *server.Server) {
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
