package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

func rows(symbol string, dates ...string) []domain.DailyRow {
	out := make([]domain.DailyRow, 0, len(dates))
	for _, d := range dates {
		out = append(out, domain.DailyRow{Symbol: symbol, Date: d, Open: 10, High: 11, Low: 9, Close: 10, Volume: 100})
	}
	return out
}

func TestCollectorIncrementalStart(t *testing.T) {
	store := newMemDaily()
	store.add("600519", "2024-01-02", "2024-01-03")
	fetcher := &stubFetcher{rows: map[string][]domain.DailyRow{
		"600519": rows("600519", "2024-01-03", "2024-01-04", "2024-01-05"),
		"000001": rows("000001", "2024-01-04"),
	}}
	c := NewCollector(store, fetcher, CollectorConfig{
		Symbols: []string{"600519.SH", "000001"},
		End:     "2024-01-05",
	}, discard())

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "2024-01-04", res[0].Start)
	require.Equal(t, 2, res[0].Rows)
	require.Equal(t, DefaultCollectStart, res[1].Start)
	require.Equal(t, 1, res[1].Rows)
	require.Equal(t, []string{"600519,2024-01-04,2024-01-05", "000001,2020-01-01,2024-01-05"}, fetcher.calls)

	latest, err := store.LatestDate(context.Background(), "600519")
	require.NoError(t, err)
	require.Equal(t, "2024-01-05", latest)
}

func TestCollectorIsolatesFailures(t *testing.T) {
	store := newMemDaily()
	limiter := &countingLimiter{}
	fetcher := &stubFetcher{
		rows: map[string][]domain.DailyRow{"000001": rows("000001", "2024-01-04")},
		fail: map[string]bool{"600519": true},
	}
	c := NewCollector(store, fetcher, CollectorConfig{
		Symbols: []string{"600519", "000001"},
		End:     "2024-01-05",
		Delay:   time.Millisecond,
	}, discard(), WithRateLimiter(limiter))

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Error(t, res[0].Err)
	require.Zero(t, res[0].Rows)
	require.NoError(t, res[1].Err)
	require.Equal(t, 1, res[1].Rows)
	require.Equal(t, 2, limiter.waits)
}

func TestCollectorThrottlesFirstCall(t *testing.T) {
	limiter := &countingLimiter{}
	fetcher := &stubFetcher{rows: map[string][]domain.DailyRow{"600519": rows("600519", "2024-01-04")}}
	c := NewCollector(newMemDaily(), fetcher, CollectorConfig{
		Symbols: []string{"600519"},
		End:     "2024-01-05",
	}, discard(), WithRateLimiter(limiter))

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, limiter.waits)
	require.Len(t, fetcher.calls, 1)
}

func TestCollectorRejectsBadSymbolUpfront(t *testing.T) {
	fetcher := &stubFetcher{}
	c := NewCollector(newMemDaily(), fetcher, CollectorConfig{Symbols: []string{"600519", "12345"}}, discard())

	_, err := c.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidSymbol)
	require.Empty(t, fetcher.calls)
}

func TestCollectorDefaults(t *testing.T) {
	fetcher := &stubFetcher{}
	c := NewCollector(newMemDaily(), fetcher, CollectorConfig{}, discard())
	c.now = func() time.Time { return time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC) }

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, len(DefaultSymbols))
	// 20:00 UTC is already the next day in Shanghai.
	require.Equal(t, "600519,2020-01-01,2024-06-04", fetcher.calls[0])
}

func TestCollectorSkipsUpToDateSymbol(t *testing.T) {
	store := newMemDaily()
	store.add("600519", "2024-01-05")
	fetcher := &stubFetcher{}
	c := NewCollector(store, fetcher, CollectorConfig{Symbols: []string{"600519"}, End: "2024-01-05"}, discard())

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, res[0].Rows)
	require.Empty(t, fetcher.calls)
}
