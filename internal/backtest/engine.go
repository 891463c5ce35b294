// Package backtest replays stored daily bars for one symbol through a
// strategy and the shared fill engine, recording daily equity.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/executor"
	"github.com/alanyoungcy/ashare-quant/internal/ledger"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

var (
	ErrNoStrategy = errors.New("backtest: no strategy added")
	ErrNoBars     = errors.New("backtest: no bars loaded")
)

// Config holds run parameters. Fills are at the bar close plus or minus
// Slippage, with a proportional commission and no minimum.
type Config struct {
	InitialCapital float64
	CommissionRate float64
	Slippage       float64
	AllowShort     bool
	RunID          string
}

// DefaultConfig returns the stock run parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 1_000_000,
		CommissionRate: 0.0003,
		Slippage:       0.01,
	}
}

// DailyResult is the end-of-day equity snapshot.
type DailyResult struct {
	Date          string  `json:"date"`
	Capital       float64 `json:"capital"`
	PositionValue float64 `json:"position_value"`
	TotalValue    float64 `json:"total_value"`
	Position      int64   `json:"position"`
	Return        float64 `json:"return"`
	CumReturn     float64 `json:"cum_return"`
}

// Result is everything a run produced.
type Result struct {
	RunID    string
	Strategy string
	VTSymbol string
	Daily    []DailyResult
	Trades   []domain.Trade
	Orders   []domain.Order
	Stats    Statistics
}

// Engine drives a single strategy over a time-ordered bar sequence.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	bars     []domain.Bar
	strategy strategy.Strategy
}

// New creates an Engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "backtest"), slog.String("run_id", cfg.RunID)),
	}
}

// AddBars appends bars and keeps the sequence ordered by time.
func (e *Engine) AddBars(bars []domain.Bar) {
	e.bars = append(e.bars, bars...)
	sort.SliceStable(e.bars, func(i, j int) bool {
		return e.bars[i].Datetime.Before(e.bars[j].Datetime)
	})
	e.logger.Info("bars loaded", slog.Int("added", len(bars)), slog.Int("total", len(e.bars)))
}

// AddStrategy sets the strategy to run.
func (e *Engine) AddStrategy(s strategy.Strategy) {
	e.strategy = s
	e.logger.Info("strategy added",
		slog.String("strategy", s.Name()),
		slog.String("vt_symbol", s.VTSymbol()),
	)
}

// Run replays every bar. Each bar is set on the fill engine before the
// strategy sees it so orders fill against that bar's close.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.strategy == nil {
		return nil, ErrNoStrategy
	}
	if len(e.bars) == 0 {
		return nil, ErrNoBars
	}
	vt := e.strategy.VTSymbol()
	for _, b := range e.bars {
		if b.VTSymbol() != vt {
			return nil, fmt.Errorf("backtest: bar for %s in a %s run: %w", b.VTSymbol(), vt, domain.ErrInvalidSymbol)
		}
	}

	account := ledger.NewAccount(e.cfg.RunID, e.cfg.InitialCapital)
	exec := executor.New(executor.Config{
		Commission:  executor.Commission{Rate: e.cfg.CommissionRate},
		Price:       executor.CloseSlippage{Slippage: e.cfg.Slippage},
		AllowShort:  e.cfg.AllowShort,
		OrderPrefix: "bt_",
		RunID:       e.cfg.RunID,
	}, account, e.logger)
	exec.SetListener(e.strategy)
	e.strategy.Bind(exec)

	if err := e.strategy.Init(); err != nil {
		return nil, fmt.Errorf("backtest: init %s: %w", e.strategy.Name(), err)
	}
	e.strategy.Start()
	e.logger.Info("backtest started",
		slog.Float64("capital", e.cfg.InitialCapital),
		slog.Int("bars", len(e.bars)),
	)

	daily := make([]DailyResult, 0, len(e.bars))
	for i, bar := range e.bars {
		if err := ctx.Err(); err != nil {
			e.strategy.Stop()
			return nil, fmt.Errorf("backtest: %w", err)
		}

		exec.SetBar(bar)
		e.strategy.OnBar(bar)

		if i == len(e.bars)-1 || e.bars[i+1].Date() != bar.Date() {
			daily = append(daily, snapshot(account, vt, bar))
		}
	}
	e.strategy.Stop()

	fillReturns(daily)
	trades := exec.Trades()
	res := &Result{
		RunID:    e.cfg.RunID,
		Strategy: e.strategy.Name(),
		VTSymbol: vt,
		Daily:    daily,
		Trades:   trades,
		Orders:   exec.Orders(),
		Stats:    computeStatistics(e.cfg.InitialCapital, daily, len(trades)),
	}
	e.logger.Info("backtest finished",
		slog.Float64("final_value", res.Stats.FinalValue),
		slog.Float64("total_return", res.Stats.TotalReturn),
		slog.Float64("max_drawdown", res.Stats.MaxDrawdown),
		slog.Int("trades", res.Stats.TradeCount),
		slog.Int("days", res.Stats.Days),
	)
	return res, nil
}

func snapshot(account *ledger.Account, vt string, bar domain.Bar) DailyResult {
	pos := account.Position(vt)
	posValue := float64(pos.Volume) * bar.Close
	return DailyResult{
		Date:          bar.Date(),
		Capital:       account.Available,
		PositionValue: posValue,
		TotalValue:    account.Available + posValue,
		Position:      pos.Volume,
	}
}
