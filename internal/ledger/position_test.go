package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

const (
	day1 = "2024-01-02"
	day2 = "2024-01-03"
)

func TestApplySameDirectionAverages(t *testing.T) {
	p := NewPosition("600519.SSE")
	p.Apply(domain.DirectionLong, 10, 100, day1)
	p.Apply(domain.DirectionLong, 12, 300, day1)
	p.Apply(domain.DirectionLong, 11, 100, day2)

	want := (10.0*100 + 12.0*300 + 11.0*100) / 500
	require.Equal(t, int64(500), p.Volume)
	require.InDelta(t, want, p.AvgPrice, 1e-9)
}

func TestApplyShortSideAverages(t *testing.T) {
	p := NewPosition("600519.SSE")
	p.Apply(domain.DirectionShort, 20, 100, day1)
	p.Apply(domain.DirectionShort, 26, 200, day1)

	require.Equal(t, int64(-300), p.Volume)
	require.InDelta(t, 24.0, p.AvgPrice, 1e-9)
	require.Zero(t, p.TodayBought[day1])
}

func TestApplyReduceKeepsAverage(t *testing.T) {
	p := NewPosition("000001.SZSE")
	p.Apply(domain.DirectionLong, 10, 300, day1)
	p.Apply(domain.DirectionShort, 15, 100, day2)

	require.Equal(t, int64(200), p.Volume)
	require.InDelta(t, 10.0, p.AvgPrice, 1e-9)
}

func TestApplyFlatResetsAverage(t *testing.T) {
	p := NewPosition("000001.SZSE")
	p.Apply(domain.DirectionLong, 10, 300, day1)
	p.Apply(domain.DirectionShort, 15, 300, day2)

	require.Zero(t, p.Volume)
	require.Zero(t, p.AvgPrice)
}

func TestApplyReversalOpensNewLeg(t *testing.T) {
	p := NewPosition("000001.SZSE")
	p.Apply(domain.DirectionLong, 10, 100, day1)
	p.Apply(domain.DirectionShort, 12, 250, day2)

	require.Equal(t, int64(-150), p.Volume)
	require.InDelta(t, 12.0, p.AvgPrice, 1e-9)

	p.Apply(domain.DirectionLong, 9, 200, day2)
	require.Equal(t, int64(50), p.Volume)
	require.InDelta(t, 9.0, p.AvgPrice, 1e-9)
	// Only the long exposure created by the cover is locked.
	require.Equal(t, int64(50), p.TodayBought[day2])
}

func TestSellableVolume(t *testing.T) {
	p := NewPosition("600000.SSE")
	require.Zero(t, p.SellableVolume(day1))

	p.Apply(domain.DirectionLong, 10, 100, day1)
	require.Zero(t, p.SellableVolume(day1))
	require.Equal(t, int64(100), p.SellableVolume(day2))

	p.Apply(domain.DirectionLong, 10, 200, day2)
	require.Equal(t, int64(100), p.SellableVolume(day2))

	p.Volume = -100
	require.Zero(t, p.SellableVolume(day2))
}

func TestSettle(t *testing.T) {
	p := NewPosition("600000.SSE")
	p.Apply(domain.DirectionLong, 10, 100, day1)
	p.Apply(domain.DirectionLong, 10, 100, day2)

	p.Settle(day2)
	require.Zero(t, p.TodayBought[day1])
	require.Equal(t, int64(100), p.TodayBought[day2])

	var sum int64
	for _, v := range p.TodayBought {
		sum += v
	}
	require.LessOrEqual(t, sum, p.Volume)
}

func TestAccountValue(t *testing.T) {
	a := NewAccount("sim_001", 100_000)
	a.Position("600519.SSE").Apply(domain.DirectionLong, 100, 100, day1)
	a.Debit(10_000)
	a.Position("000001.SZSE").Apply(domain.DirectionLong, 10, 1000, day1)
	a.Debit(10_000)

	marks := map[string]float64{"600519.SSE": 110}
	require.InDelta(t, 11_000+10_000, a.PositionValue(marks), 1e-9)
	require.InDelta(t, 80_000+21_000, a.TotalValue(marks), 1e-9)

	ps := a.Positions()
	require.Equal(t, "000001.SZSE", ps[0].VTSymbol)
}
