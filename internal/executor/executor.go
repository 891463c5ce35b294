// Package executor turns strategy order intents into simulated fills. The
// same engine backs the backtester and the paper-trading loop, configured
// with a different price model and different risk checks.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/ledger"
)

var errNoBar = errors.New("no bar to fill against")

// Listener receives fills and answers whether its owner may trade.
type Listener interface {
	Trading() bool
	OnTrade(trade domain.Trade)
}

// Config controls risk checks and fees.
type Config struct {
	Commission Commission
	Price      PriceModel

	// CheckFunds rejects buys whose price*volume*(1+FundReserve) exceeds
	// available cash.
	CheckFunds  bool
	FundReserve float64

	// AllowShort lets a sell exceed the long position. The T+1 check then
	// only covers the part of the order that closes long shares.
	AllowShort bool

	OrderPrefix string
	RunID       string
	Clock       func() time.Time
}

// Engine is the order state machine. It is not safe for concurrent use: the
// driving loop owns it and processes one bar at a time.
type Engine struct {
	cfg      Config
	account  *ledger.Account
	listener Listener
	logger   *slog.Logger

	bar    domain.Bar
	hasBar bool
	marks  map[string]float64

	orders   []*domain.Order
	byID     map[string]*domain.Order
	trades   []domain.Trade
	queue    []*domain.Order
	busy     bool
	orderSeq int
}

// New creates an Engine that books fills into account.
func New(cfg Config, account *ledger.Account, logger *slog.Logger) *Engine {
	if cfg.Price == nil {
		cfg.Price = LastMark{}
	}
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = "ord_"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		cfg:     cfg,
		account: account,
		logger:  logger.With(slog.String("component", "executor")),
		marks:   make(map[string]float64),
		byID:    make(map[string]*domain.Order),
	}
}

// SetListener registers the strategy that receives fills.
func (e *Engine) SetListener(l Listener) { e.listener = l }

// Account returns the ledger the engine books into.
func (e *Engine) Account() *ledger.Account { return e.account }

// SetBar makes bar the current reference bar and marks its symbol at the
// close. Lockups from earlier dates are released.
func (e *Engine) SetBar(bar domain.Bar) {
	if !e.hasBar || e.bar.Date() != bar.Date() {
		e.account.Settle(bar.Date())
	}
	e.bar = bar
	e.hasBar = true
	e.marks[bar.VTSymbol()] = bar.Close
}

// SetMark records the latest price for a symbol without advancing the bar.
func (e *Engine) SetMark(vtSymbol string, price float64) {
	e.marks[vtSymbol] = price
}

// Marks returns a copy of the current mark prices.
func (e *Engine) Marks() map[string]float64 {
	out := make(map[string]float64, len(e.marks))
	for k, v := range e.marks {
		out[k] = v
	}
	return out
}

// Submit registers an order intent and resolves it. Orders submitted while
// another fill is being delivered are queued and resolved in arrival order
// once that fill completes. The returned ID identifies the order whatever
// its final status.
func (e *Engine) Submit(vtSymbol string, dir domain.Direction, price float64, volume int64) string {
	e.orderSeq++
	now := e.now()
	o := &domain.Order{
		ID:        fmt.Sprintf("%s%06d", e.cfg.OrderPrefix, e.orderSeq),
		VTSymbol:  vtSymbol,
		Direction: dir,
		Price:     price,
		Volume:    volume,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.orders = append(e.orders, o)
	e.byID[o.ID] = o

	e.queue = append(e.queue, o)
	if e.busy {
		return o.ID
	}

	e.busy = true
	defer func() { e.busy = false }()
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		if next.Status != domain.OrderStatusPending {
			continue
		}
		e.process(next)
	}
	return o.ID
}

// Cancel cancels a still-pending order. Terminal orders are left untouched.
func (e *Engine) Cancel(orderID string) bool {
	o, ok := e.byID[orderID]
	if !ok || o.Status.Terminal() {
		return false
	}
	e.transition(o, domain.OrderStatusCancelled, nil)
	return true
}

// CancelAll cancels every pending order and returns how many were cancelled.
func (e *Engine) CancelAll() int {
	n := 0
	for _, o := range e.queue {
		if e.Cancel(o.ID) {
			n++
		}
	}
	return n
}

// Order returns a copy of the order with the given ID.
func (e *Engine) Order(orderID string) (domain.Order, error) {
	o, ok := e.byID[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("executor: order %s: %w", orderID, domain.ErrNotFound)
	}
	return *o, nil
}

// Orders returns copies of all orders in submission order.
func (e *Engine) Orders() []domain.Order {
	out := make([]domain.Order, len(e.orders))
	for i, o := range e.orders {
		out[i] = *o
	}
	return out
}

// Trades returns the append-only trade log.
func (e *Engine) Trades() []domain.Trade {
	return append([]domain.Trade(nil), e.trades...)
}

func (e *Engine) process(o *domain.Order) {
	if e.listener == nil || !e.listener.Trading() {
		e.reject(o, domain.ErrNotTrading)
		return
	}
	if o.Volume <= 0 {
		e.reject(o, domain.ErrInvalidVolume)
		return
	}
	if !e.hasBar && isCloseModel(e.cfg.Price) {
		e.reject(o, errNoBar)
		return
	}

	date := e.tradingDate()
	pos := e.account.Position(o.VTSymbol)

	if o.Direction == domain.DirectionShort {
		need := o.Volume
		if e.cfg.AllowShort {
			need = min(o.Volume, max(pos.Volume, 0))
		}
		if sellable := pos.SellableVolume(date); need > sellable {
			e.reject(o, fmt.Errorf("requested %d, sellable %d: %w", o.Volume, sellable, domain.ErrInsufficientSellable))
			return
		}
	}

	if o.Direction == domain.DirectionLong && e.cfg.CheckFunds {
		required := o.Price * float64(o.Volume) * (1 + e.cfg.FundReserve)
		if required > e.account.Available {
			e.reject(o, fmt.Errorf("required %.2f, available %.2f: %w", required, e.account.Available, domain.ErrInsufficientFunds))
			return
		}
	}

	mark, hasMark := e.marks[o.VTSymbol]
	price := e.cfg.Price.FillPrice(*o, e.bar, mark, hasMark)
	trade := domain.Trade{
		ID:        fmt.Sprintf("trade_%d", len(e.trades)),
		OrderID:   o.ID,
		RunID:     e.cfg.RunID,
		VTSymbol:  o.VTSymbol,
		Direction: o.Direction,
		Price:     price,
		Volume:    o.Volume,
		Timestamp: e.now(),
	}
	notional := trade.Notional()
	fee := e.cfg.Commission.Fee(notional)
	trade.Commission = fee

	if o.Direction == domain.DirectionLong {
		e.account.Debit(notional + fee)
	} else {
		e.account.Credit(notional - fee)
	}
	pos.Apply(o.Direction, price, o.Volume, date)
	e.account.TradeCount++

	o.FilledPrice = price
	o.FilledVolume = o.Volume
	e.transition(o, domain.OrderStatusFilled, nil)

	e.trades = append(e.trades, trade)

	e.logger.Debug("order filled",
		slog.String("order_id", o.ID),
		slog.String("vt_symbol", o.VTSymbol),
		slog.String("direction", string(o.Direction)),
		slog.Int64("volume", o.Volume),
		slog.Float64("price", price),
		slog.Float64("commission", fee),
	)

	e.listener.OnTrade(trade)
}

func (e *Engine) reject(o *domain.Order, reason error) {
	e.transition(o, domain.OrderStatusRejected, reason)
	e.logger.Warn("order rejected",
		slog.String("order_id", o.ID),
		slog.String("vt_symbol", o.VTSymbol),
		slog.String("direction", string(o.Direction)),
		slog.Int64("volume", o.Volume),
		slog.String("reason", reason.Error()),
	)
}

func (e *Engine) transition(o *domain.Order, to domain.OrderStatus, reason error) {
	if o.Status.Terminal() {
		return
	}
	o.Status = to
	o.RejectReason = reason
	o.UpdatedAt = e.now()
}

// tradingDate is the date of the bar being processed, or the clock date in
// Shanghai when no bar has been seen yet.
func (e *Engine) tradingDate() string {
	return e.now().In(domain.Shanghai).Format(time.DateOnly)
}

func (e *Engine) now() time.Time {
	if e.hasBar {
		return e.bar.Datetime
	}
	return e.cfg.Clock().In(domain.Shanghai)
}

func isCloseModel(m PriceModel) bool {
	switch m.(type) {
	case CloseSlippage, *CloseSlippage:
		return true
	}
	return false
}
