package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

func seedBars(t *testing.T, store *memBars) {
	t.Helper()
	for i, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04"} {
		ts, err := time.ParseInLocation(time.DateOnly, d, domain.Shanghai)
		require.NoError(t, err)
		px := 10 + float64(i)
		_, err = store.UpsertBars(context.Background(), []domain.Bar{{
			Symbol:   "600519",
			Exchange: domain.ExchangeSSE,
			Interval: domain.IntervalDaily,
			Datetime: ts.Add(15 * time.Hour),
			Open:     px, High: px + 1, Low: px - 1, Close: px,
		}})
		require.NoError(t, err)
	}
}

func TestLoadBarsRange(t *testing.T) {
	store := newMemBars()
	seedBars(t, store)

	bars, err := LoadBars(context.Background(), store, "600519.SSE", "2024-01-03", "2024-01-04")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, "2024-01-03", bars[0].Date())

	bars, err = LoadBars(context.Background(), store, "600519", "", "2024-01-02")
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestLoadBarsRejectsBadInput(t *testing.T) {
	store := newMemBars()

	_, err := LoadBars(context.Background(), store, "nope", "", "")
	require.ErrorIs(t, err, domain.ErrInvalidSymbol)

	_, err = LoadBars(context.Background(), store, "600519", "2024/01/01", "")
	require.ErrorIs(t, err, domain.ErrConfig)

	_, err = LoadBars(context.Background(), store, "600519", "2024-02-01", "2024-01-01")
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestValidateStore(t *testing.T) {
	store := newMemBars()
	seedBars(t, store)
	ts := time.Date(2024, 1, 5, 15, 0, 0, 0, domain.Shanghai)
	_, err := store.UpsertBars(context.Background(), []domain.Bar{{
		Symbol: "600519", Exchange: domain.ExchangeSSE, Interval: domain.IntervalDaily,
		Datetime: ts, Open: 20, High: 9, Low: 11, Close: 10,
	}})
	require.NoError(t, err)

	got, err := ValidateStore(context.Background(), store, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "600519.SSE", got[0].VTSymbol)
	require.Equal(t, 4, got[0].Report.Total)
	require.Equal(t, 1, got[0].Report.Failed)
	require.Contains(t, got[0].Report.Failures()[0].Reason, "high<low;")
}
