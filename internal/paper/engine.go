// Package paper runs a strategy against a live or replayed bar stream with a
// cash account, funds checks and T+1 settlement.
package paper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/executor"
	"github.com/alanyoungcy/ashare-quant/internal/ledger"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

var ErrNoStrategy = errors.New("paper: no strategy added")

// Config holds the account and fee settings.
type Config struct {
	InitialCapital float64
	CommissionRate float64
	MinCommission  float64
	// FundReserve is the fee buffer added to a buy's notional in the funds check.
	FundReserve float64
	AllowShort  bool
	RunID       string
	Clock       func() time.Time
}

// DefaultConfig returns the stock paper account.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100_000,
		CommissionRate: 0.0003,
		MinCommission:  5,
		FundReserve:    0.001,
	}
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithPriceCache shares mark prices through cache. Marks are seeded from it
// on Start and published on every bar and tick.
func WithPriceCache(cache domain.PriceCache) Option {
	return func(e *Engine) { e.prices = cache }
}

// WithTradeStore persists the run's fills on Stop.
func WithTradeStore(store domain.TradeStore) Option {
	return func(e *Engine) { e.trades = store }
}

// Engine wraps the shared fill engine with the paper account. All methods are
// safe for concurrent use; bars are still processed one at a time.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	account *ledger.Account
	exec    *executor.Engine

	prices domain.PriceCache
	trades domain.TradeStore

	mu        sync.Mutex
	strategy  strategy.Strategy
	running   bool
	startedAt time.Time
}

// New creates an Engine with a fresh account.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	logger = logger.With(slog.String("component", "paper"), slog.String("run_id", cfg.RunID))
	account := ledger.NewAccount(cfg.RunID, cfg.InitialCapital)
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		account: account,
		exec: executor.New(executor.Config{
			Commission:  executor.Commission{Rate: cfg.CommissionRate, Minimum: cfg.MinCommission},
			Price:       executor.LastMark{},
			CheckFunds:  true,
			FundReserve: cfg.FundReserve,
			AllowShort:  cfg.AllowShort,
			OrderPrefix: "sim_",
			RunID:       cfg.RunID,
			Clock:       cfg.Clock,
		}, account, logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunID identifies this session in stored trades and artifacts.
func (e *Engine) RunID() string { return e.cfg.RunID }

// AddStrategy binds s to the engine's order flow.
func (e *Engine) AddStrategy(s strategy.Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy = s
	e.exec.SetListener(s)
	s.Bind(e.exec)
	e.logger.Info("strategy added",
		slog.String("strategy", s.Name()),
		slog.String("vt_symbol", s.VTSymbol()),
	)
}

// Start initializes and starts the strategy.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.strategy == nil {
		return ErrNoStrategy
	}
	e.seedMarks(ctx)

	if err := e.strategy.Init(); err != nil {
		return fmt.Errorf("paper: init %s: %w", e.strategy.Name(), err)
	}
	e.strategy.Start()
	e.running = true
	e.startedAt = e.cfg.Clock()
	e.logger.Info("paper trading started", slog.Float64("capital", e.account.Capital))
	return nil
}

// Stop halts the strategy, persists fills when a trade store is configured
// and returns the end-of-run report.
func (e *Engine) Stop(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.strategy != nil {
		e.strategy.Stop()
	}
	e.running = false

	rep := e.report()
	e.logger.Info("paper trading stopped",
		slog.Float64("total_value", rep.TotalValue),
		slog.Float64("available", rep.Available),
		slog.Float64("position_value", rep.PositionValue),
		slog.Float64("pnl", rep.PnL),
		slog.Float64("pnl_pct", rep.PnLPct),
		slog.Int("trades", rep.TradeCount),
	)

	if e.trades != nil {
		if fills := e.exec.Trades(); len(fills) > 0 {
			if err := e.trades.InsertBatch(ctx, fills); err != nil {
				return rep, fmt.Errorf("paper: persist trades: %w", err)
			}
		}
	}
	return rep, nil
}

// OnBar advances the engine to bar and hands it to the strategy.
func (e *Engine) OnBar(ctx context.Context, bar domain.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exec.SetBar(bar)
	e.publishMark(ctx, bar.VTSymbol(), bar.Close, bar.Datetime)

	if e.strategy != nil && e.strategy.Trading() {
		e.strategy.OnBar(bar)
	}
}

// OnTick updates the mark price of vtSymbol without running the strategy.
func (e *Engine) OnTick(ctx context.Context, vtSymbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exec.SetMark(vtSymbol, price)
	e.publishMark(ctx, vtSymbol, price, e.cfg.Clock())
}

// Order returns the order with the given ID.
func (e *Engine) Order(id string) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.Order(id)
}

// Trades returns the fills of this session.
func (e *Engine) Trades() []domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec.Trades()
}

func (e *Engine) seedMarks(ctx context.Context) {
	if e.prices == nil {
		return
	}
	vt := e.strategy.VTSymbol()
	marks, err := e.prices.GetPrices(ctx, []string{vt})
	if err != nil {
		e.logger.Warn("seed marks failed", slog.String("error", err.Error()))
		return
	}
	for sym, px := range marks {
		e.exec.SetMark(sym, px)
	}
}

func (e *Engine) publishMark(ctx context.Context, vtSymbol string, price float64, ts time.Time) {
	if e.prices == nil {
		return
	}
	if err := e.prices.SetPrice(ctx, vtSymbol, price, ts); err != nil {
		e.logger.Warn("publish mark failed",
			slog.String("vt_symbol", vtSymbol),
			slog.String("error", err.Error()),
		)
	}
}

// Report is the end-of-run account summary.
type Report struct {
	RunID         string  `json:"run_id"`
	TotalValue    float64 `json:"total_value"`
	Available     float64 `json:"available"`
	PositionValue float64 `json:"position_value"`
	PnL           float64 `json:"pnl"`
	PnLPct        float64 `json:"pnl_pct"`
	TradeCount    int     `json:"trade_count"`
}

func (e *Engine) report() Report {
	marks := e.exec.Marks()
	posValue := e.account.PositionValue(marks)
	total := e.account.TotalValue(marks)
	pnl := total - e.cfg.InitialCapital
	pct := 0.0
	if e.cfg.InitialCapital != 0 {
		pct = pnl / e.cfg.InitialCapital * 100
	}
	return Report{
		RunID:         e.cfg.RunID,
		TotalValue:    total,
		Available:     e.account.Available,
		PositionValue: posValue,
		PnL:           pnl,
		PnLPct:        pct,
		TradeCount:    e.account.TradeCount,
	}
}

// PositionView is the exported shape of one holding.
type PositionView struct {
	Volume   int64   `json:"volume"`
	AvgPrice float64 `json:"avg_price"`
}

// Status is a point-in-time view of the session.
type Status struct {
	Running       bool                    `json:"is_running"`
	StartedAt     time.Time               `json:"started_at"`
	Available     float64                 `json:"available"`
	PositionValue float64                 `json:"position_value"`
	TotalValue    float64                 `json:"total_value"`
	Positions     map[string]PositionView `json:"positions"`
	Orders        int                     `json:"orders"`
	Trades        int                     `json:"trades"`
}

// Status snapshots the account.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	marks := e.exec.Marks()
	return Status{
		Running:       e.running,
		StartedAt:     e.startedAt,
		Available:     e.account.Available,
		PositionValue: e.account.PositionValue(marks),
		TotalValue:    e.account.TotalValue(marks),
		Positions:     e.positionViews(),
		Orders:        len(e.exec.Orders()),
		Trades:        e.account.TradeCount,
	}
}

func (e *Engine) positionViews() map[string]PositionView {
	out := make(map[string]PositionView)
	for _, p := range e.account.Positions() {
		out[p.VTSymbol] = PositionView{Volume: p.Volume, AvgPrice: p.AvgPrice}
	}
	return out
}

// OrderView is the exported shape of one order.
type OrderView struct {
	OrderID   string  `json:"order_id"`
	VTSymbol  string  `json:"vt_symbol"`
	Direction string  `json:"direction"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
}

// NewOrderView converts an order, flattening the reject reason to text.
func NewOrderView(o domain.Order) OrderView {
	v := OrderView{
		OrderID:   o.ID,
		VTSymbol:  o.VTSymbol,
		Direction: string(o.Direction),
		Price:     o.Price,
		Volume:    o.Volume,
		Status:    string(o.Status),
	}
	if o.RejectReason != nil {
		v.Reason = o.RejectReason.Error()
	}
	return v
}

// AccountView is the exported shape of the account.
type AccountView struct {
	TotalCapital float64                 `json:"total_capital"`
	Available    float64                 `json:"available"`
	Positions    map[string]PositionView `json:"positions"`
}

// State is the persisted session snapshot.
type State struct {
	RunID   string      `json:"run_id"`
	SavedAt time.Time   `json:"saved_at"`
	Account AccountView `json:"account"`
	Orders  []OrderView `json:"orders"`
}

// State snapshots the account and order book.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := e.exec.Orders()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, NewOrderView(o))
	}
	return State{
		RunID:   e.cfg.RunID,
		SavedAt: e.cfg.Clock(),
		Account: AccountView{
			TotalCapital: e.account.Capital,
			Available:    e.account.Available,
			Positions:    e.positionViews(),
		},
		Orders: views,
	}
}

// SaveState writes the JSON snapshot to path on w.
func (e *Engine) SaveState(ctx context.Context, w domain.BlobWriter, path string) error {
	data, err := json.MarshalIndent(e.State(), "", "  ")
	if err != nil {
		return fmt.Errorf("paper: marshal state: %w", err)
	}
	if err := w.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("paper: save state: %w", err)
	}
	e.logger.Info("state saved", slog.String("path", path))
	return nil
}
