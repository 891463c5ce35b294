package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/backtest"
	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

type memBlob struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	m.types[path] = contentType
	return nil
}

func sampleResult() *backtest.Result {
	return &backtest.Result{
		RunID:    "run-1",
		Strategy: "double_ma",
		VTSymbol: "600519.SSE",
		Daily: []backtest.DailyResult{
			{Date: "2024-01-02", Capital: 1_000_000, TotalValue: 1_000_000},
			{Date: "2024-01-03", Capital: 899_896.997, PositionValue: 102_000, TotalValue: 1_001_896.997, Position: 1000, Return: 0.001896997, CumReturn: 0.001896997},
		},
		Trades: []domain.Trade{{
			ID:         "trade_0",
			OrderID:    "bt_000001",
			VTSymbol:   "600519.SSE",
			Direction:  domain.DirectionLong,
			Price:      100.01,
			Volume:     1000,
			Commission: 30.003,
			Timestamp:  time.Date(2024, 1, 2, 15, 0, 0, 0, domain.Shanghai),
		}},
		Stats: backtest.Statistics{
			InitialCapital: 1_000_000,
			FinalValue:     1_001_896.997,
			TotalReturn:    0.001896997,
			TradeCount:     1,
			Days:           2,
		},
	}
}

func TestDailyCSV(t *testing.T) {
	out, err := DailyCSV(sampleResult().Daily)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, dailyHeader, rows[0])
	require.Equal(t, []string{"2024-01-03", "899897.00", "102000.00", "1001897.00", "1000", "0.001897", "0.001897"}, rows[2])
}

func TestTradesCSV(t *testing.T) {
	out, err := TradesCSV(sampleResult().Trades)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"trade_0", "bt_000001", "600519.SSE", "long", "100.01", "1000", "100010.00", "30.00", "2024-01-02 15:00:00"}, rows[1])
}

func TestWriteBacktest(t *testing.T) {
	blob := newMemBlob()
	w := NewWriter(blob, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	arts, err := w.WriteBacktest(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Equal(t, "backtests/run-1/summary.json", arts.Summary)
	require.Equal(t, "backtests/run-1/daily.csv", arts.Daily)
	require.Equal(t, "backtests/run-1/trades.csv", arts.Trades)
	require.Len(t, blob.objects, 3)
	require.Equal(t, contentJSON, blob.types[arts.Summary])

	var got map[string]any
	require.NoError(t, json.Unmarshal(blob.objects[arts.Summary], &got))
	require.Equal(t, "2024-01-02", got["start_date"])
	require.Equal(t, "2024-01-03", got["end_date"])
	require.Equal(t, "1001897", got["final_value"])
	require.Equal(t, "0.001897", got["total_return"])
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&backtest.Result{RunID: "r"})
	require.Empty(t, s.StartDate)
	require.True(t, s.FinalValue.IsZero())
}
