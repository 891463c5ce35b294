package backtest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

const vt = "600519.SSE"

// scripted submits a fixed order on given bar indexes.
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

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bars(closes ...float64) []domain.Bar {
	start := time.Date(2024, 3, 4, 15, 0, 0, 0, domain.Shanghai)
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{
			Symbol:   "600519",
			Exchange: domain.ExchangeSSE,
			Datetime: start.AddDate(0, 0, i),
			Interval: domain.IntervalDaily,
			Open:     c, High: c, Low: c, Close: c,
		}
	}
	return out
}

func buyThenSell() *scripted {
	return &scripted{actions: map[int]func(strategy.OrderSubmitter){
		0: func(s strategy.OrderSubmitter) { s.Submit(vt, domain.DirectionLong, 100, 100) },
		2: func(s strategy.OrderSubmitter) { s.Submit(vt, domain.DirectionShort, 98, 100) },
	}}
}

func TestThreeBarRun(t *testing.T) {
	e := New(DefaultConfig(), discard())
	e.AddBars(bars(100, 102, 98))
	s := buyThenSell()
	e.AddStrategy(s)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	require.InDelta(t, 100.01, res.Trades[0].Price, 1e-9)
	require.InDelta(t, 97.99, res.Trades[1].Price, 1e-9)
	require.Equal(t, "trade_0", res.Trades[0].ID)
	require.Equal(t, res.RunID, res.Trades[0].RunID)
	require.Len(t, s.trades, 2)

	buyCash := 100.01*100 + 100.01*100*0.0003
	sellCash := 97.99*100 - 97.99*100*0.0003
	wantCash := 1_000_000 - buyCash + sellCash

	require.Len(t, res.Daily, 3)
	d := res.Daily
	require.Equal(t, "2024-03-04", d[0].Date)
	require.InDelta(t, 1_000_000-buyCash, d[0].Capital, 1e-6)
	require.Equal(t, int64(100), d[0].Position)
	require.InDelta(t, 10_000, d[0].PositionValue, 1e-9)
	require.InDelta(t, 1_000_000-buyCash+10_200, d[1].TotalValue, 1e-6)
	require.InDelta(t, wantCash, d[2].TotalValue, 1e-6)
	require.Zero(t, d[2].Position)

	require.Zero(t, d[0].Return)
	require.InDelta(t, d[1].TotalValue/d[0].TotalValue-1, d[1].Return, 1e-12)
	require.InDelta(t, d[2].TotalValue/d[0].TotalValue-1, d[2].CumReturn, 1e-12)

	st := res.Stats
	require.Equal(t, 2, st.TradeCount)
	require.Equal(t, 3, st.Days)
	require.InDelta(t, wantCash, st.FinalValue, 1e-6)
	require.InDelta(t, wantCash/1_000_000-1, st.TotalReturn, 1e-12)
	require.InDelta(t, (wantCash-d[1].TotalValue)/d[1].TotalValue, st.MaxDrawdown, 1e-12)
	require.Less(t, st.MaxDrawdown, 0.0)
	require.Greater(t, st.Volatility, 0.0)
}

func TestSameDaySellRejected(t *testing.T) {
	e := New(DefaultConfig(), discard())
	e.AddBars(bars(100, 101))
	s := &scripted{actions: map[int]func(strategy.OrderSubmitter){
		0: func(sub strategy.OrderSubmitter) {
			sub.Submit(vt, domain.DirectionLong, 100, 100)
			sub.Submit(vt, domain.DirectionShort, 100, 100)
		},
	}}
	e.AddStrategy(s)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	require.Len(t, res.Orders, 2)
	require.Equal(t, domain.OrderStatusRejected, res.Orders[1].Status)
	require.ErrorIs(t, res.Orders[1].RejectReason, domain.ErrInsufficientSellable)
	require.Equal(t, int64(100), res.Daily[1].Position)
}

func TestIntradayBarsSnapshotOncePerDay(t *testing.T) {
	bs := bars(10, 11)
	extra := bs[0]
	extra.Datetime = extra.Datetime.Add(-time.Hour)
	extra.Close = 9
	e := New(DefaultConfig(), discard())
	e.AddBars(bs)
	e.AddBars([]domain.Bar{extra})
	e.AddStrategy(&scripted{})

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Daily, 2)
	require.InDelta(t, 1_000_000, res.Stats.FinalValue, 1e-9)
	require.Zero(t, res.Stats.Volatility)
	require.Zero(t, res.Stats.SharpeRatio)
}

func TestRunErrors(t *testing.T) {
	e := New(DefaultConfig(), discard())
	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrNoStrategy)

	e.AddStrategy(&scripted{})
	_, err = e.Run(context.Background())
	require.ErrorIs(t, err, ErrNoBars)

	other := bars(10)
	other[0].Symbol = "000001"
	other[0].Exchange = domain.ExchangeSZSE
	e.AddBars(other)
	_, err = e.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestRunCancelled(t *testing.T) {
	e := New(DefaultConfig(), discard())
	e.AddBars(bars(10, 11))
	e.AddStrategy(&scripted{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStatisticsEdgeCases(t *testing.T) {
	st := computeStatistics(100, nil, 0)
	require.Equal(t, 100.0, st.FinalValue)
	require.Zero(t, st.Days)

	daily := []DailyResult{{TotalValue: 100}, {TotalValue: -10}}
	fillReturns(daily)
	st = computeStatistics(100, daily, 1)
	require.Equal(t, -1.0, st.AnnualReturn)
	require.InDelta(t, -1.1, st.MaxDrawdown, 1e-12)
}
