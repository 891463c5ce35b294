package paper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

const vt = "600519.SSE"

type scripted struct {
	submitter strategy.OrderSubmitter
	trading   bool
	bar       int
	actions   map[int]func(strategy.OrderSubmitter)
	trades    []domain.Trade
}

func (s *scripted) Name() string { return "scripted" }
func (s *scripted) VTSymbol() string { return vt }
func (s *scripted) Bind(sub strategy.OrderSubmitter) { s.submitter = sub }
func (s *scripted) Init() error { return nil }
func (s *scripted) Start() { s.trading = true }
func (s *scripted) Stop() { s.trading = false }
func (s *scripted) Trading() bool { return s.trading }
func (s *scripted) OnTrade(t domain.Trade) { s.trades = append(s.trades, t) }

func (s *scripted) OnBar(domain.Bar) {
	if fn, ok := s.actions[s.bar]; ok {
		fn(s.submitter)
	}
	s.bar++
}

type memCache struct {
	prices map[string]float64
	err    error
}

func (m *memCache) SetPrice(_ context.Context, vtSymbol string, price float64, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.prices[vtSymbol] = price
	return nil
}

func (m *memCache) GetPrice(_ context.Context, vtSymbol string) (float64, time.Time, error) {
	p, ok := m.prices[vtSymbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Time{}, nil
}

func (m *memCache) GetPrices(_ context.Context, vtSymbols []string) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]float64)
	for _, s := range vtSymbols {
		if p, ok := m.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

type memTrades struct{ saved []domain.Trade }

func (m *memTrades) InsertBatch(_ context.Context, trades []domain.Trade) error {
	m.saved = append(m.saved, trades...)
	return nil
}

func (m *memTrades) ListByRun(_ context.Context, runID string) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range m.saved {
		if t.RunID == runID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memBlob struct {
	path string
	data []byte
}

func (m *memBlob) Put(_ context.Context, path string, r io.Reader, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.path, m.data = path, b
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bar(day int, close float64) domain.Bar {
	return domain.Bar{
		Symbol:   "600519",
		Exchange: domain.ExchangeSSE,
		Datetime: time.Date(2024, 10, day, 15, 0, 0, 0, domain.Shanghai),
		Interval: domain.IntervalDaily,
		Open:     close, High: close, Low: close, Close: close,
	}
}

func newEngine(capital float64, opts ...Option) *Engine {
	cfg := DefaultConfig()
	cfg.InitialCapital = capital
	cfg.RunID = "run-1"
	cfg.Clock = func() time.Time { return time.Date(2024, 10, 31, 10, 0, 0, 0, domain.Shanghai) }
	return New(cfg, discard(), opts...)
}

func buyOn(day int, price float64, volume int64) map[int]func(strategy.OrderSubmitter) {
	return map[int]func(strategy.OrderSubmitter){
		day: func(s strategy.OrderSubmitter) { s.Submit(vt, domain.DirectionLong, price, volume) },
	}
}

func TestStartWithoutStrategy(t *testing.T) {
	e := newEngine(100_000)
	require.ErrorIs(t, e.Start(context.Background()), ErrNoStrategy)
}

func TestFundsCheckRejects(t *testing.T) {
	ctx := context.Background()
	e := newEngine(100_000)
	s := &scripted{actions: map[int]func(strategy.OrderSubmitter){
		0: func(sub strategy.OrderSubmitter) { sub.Submit(vt, domain.DirectionLong, 1200, 100) },
	}}
	e.AddStrategy(s)
	require.NoError(t, e.Start(ctx))

	e.OnBar(ctx, bar(8, 1200))

	o, err := e.Order("sim_000001")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusRejected, o.Status)
	require.ErrorIs(t, o.RejectReason, domain.ErrInsufficientFunds)
	require.Empty(t, s.trades)
	require.Equal(t, 100_000.0, e.Status().Available)
}

func TestFillAtMarkWithMinimumCommission(t *testing.T) {
	ctx := context.Background()
	store := &memTrades{}
	e := newEngine(1_000_000, WithTradeStore(store))
	s := &scripted{actions: buyOn(0, 100, 100)}
	e.AddStrategy(s)
	require.NoError(t, e.Start(ctx))

	e.OnBar(ctx, bar(8, 100))
	require.Len(t, s.trades, 1)
	require.Equal(t, 100.0, s.trades[0].Price)
	require.Equal(t, 5.0, s.trades[0].Commission)
	require.Equal(t, "run-1", s.trades[0].RunID)

	e.OnTick(ctx, vt, 110)
	st := e.Status()
	require.True(t, st.Running)
	require.InDelta(t, 1_000_000-10_005, st.Available, 1e-9)
	require.InDelta(t, 11_000, st.PositionValue, 1e-9)
	require.InDelta(t, 1_000_995, st.TotalValue, 1e-9)
	require.Equal(t, PositionView{Volume: 100, AvgPrice: 100}, st.Positions[vt])
	require.Equal(t, 1, st.Orders)
	require.Equal(t, 1, st.Trades)

	rep, err := e.Stop(ctx)
	require.NoError(t, err)
	require.InDelta(t, 995, rep.PnL, 1e-9)
	require.InDelta(t, 0.0995, rep.PnLPct, 1e-9)
	require.Equal(t, 1, rep.TradeCount)
	require.False(t, e.Status().Running)

	saved, err := store.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
}

func TestStatusAndReportCountFrozenCash(t *testing.T) {
	ctx := context.Background()
	e := newEngine(1_000_000)
	e.AddStrategy(&scripted{actions: buyOn(0, 100, 100)})
	require.NoError(t, e.Start(ctx))
	e.OnBar(ctx, bar(8, 100))

	e.account.Frozen = 250
	st := e.Status()
	require.InDelta(t, 1_000_000-5+250, st.TotalValue, 1e-9)

	rep, err := e.Stop(ctx)
	require.NoError(t, err)
	require.InDelta(t, st.TotalValue, rep.TotalValue, 1e-9)
}

func TestTPlusOneAcrossDays(t *testing.T) {
	ctx := context.Background()
	e := newEngine(1_000_000)
	sell := func(sub strategy.OrderSubmitter) { sub.Submit(vt, domain.DirectionShort, 100, 100) }
	s := &scripted{actions: map[int]func(strategy.OrderSubmitter){
		0: func(sub strategy.OrderSubmitter) {
			sub.Submit(vt, domain.DirectionLong, 100, 100)
			sell(sub)
		},
		1: sell,
	}}
	e.AddStrategy(s)
	require.NoError(t, e.Start(ctx))

	e.OnBar(ctx, bar(8, 100))
	o, err := e.Order("sim_000002")
	require.NoError(t, err)
	require.ErrorIs(t, o.RejectReason, domain.ErrInsufficientSellable)

	e.OnBar(ctx, bar(9, 101))
	o, err = e.Order("sim_000003")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFilled, o.Status)
	require.Equal(t, 101.0, o.FilledPrice)
	require.Zero(t, e.Status().Positions[vt].Volume)
}

func TestBarsIgnoredBeforeStart(t *testing.T) {
	ctx := context.Background()
	e := newEngine(1_000_000)
	s := &scripted{actions: buyOn(0, 100, 100)}
	e.AddStrategy(s)

	e.OnBar(ctx, bar(8, 100))
	require.Zero(t, s.bar)
	require.Empty(t, e.Trades())
}

func TestPriceCacheSeedAndPublish(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{prices: map[string]float64{vt: 1500}}
	e := newEngine(1_000_000, WithPriceCache(cache))
	e.AddStrategy(&scripted{})
	require.NoError(t, e.Start(ctx))
	require.Equal(t, 1500.0, e.exec.Marks()[vt])

	e.OnBar(ctx, bar(8, 1510))
	require.Equal(t, 1510.0, cache.prices[vt])

	e.OnTick(ctx, vt, 1520)
	require.Equal(t, 1520.0, cache.prices[vt])
}

func TestPriceCacheFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{prices: map[string]float64{}, err: errors.New("redis down")}
	e := newEngine(1_000_000, WithPriceCache(cache))
	s := &scripted{actions: buyOn(0, 100, 100)}
	e.AddStrategy(s)
	require.NoError(t, e.Start(ctx))

	e.OnBar(ctx, bar(8, 100))
	require.Len(t, s.trades, 1)
}

func TestSaveState(t *testing.T) {
	ctx := context.Background()
	e := newEngine(100_000)
	s := &scripted{actions: map[int]func(strategy.OrderSubmitter){
		0: func(sub strategy.OrderSubmitter) {
			sub.Submit(vt, domain.DirectionLong, 100, 100)
			sub.Submit(vt, domain.DirectionLong, 100, 1000)
		},
	}}
	e.AddStrategy(s)
	require.NoError(t, e.Start(ctx))
	e.OnBar(ctx, bar(8, 100))

	w := &memBlob{}
	require.NoError(t, e.SaveState(ctx, w, "paper/run-1/state.json"))
	require.Equal(t, "paper/run-1/state.json", w.path)

	var st State
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.data)).Decode(&st))
	require.Equal(t, "run-1", st.RunID)
	require.Equal(t, 100_000.0, st.Account.TotalCapital)
	require.InDelta(t, 100_000-10_005, st.Account.Available, 1e-9)
	require.Equal(t, int64(100), st.Account.Positions[vt].Volume)
	require.Len(t, st.Orders, 2)
	require.Equal(t, "filled", st.Orders[0].Status)
	require.Equal(t, "rejected", st.Orders[1].Status)
	require.Contains(t, st.Orders[1].Reason, "insufficient funds")
}
