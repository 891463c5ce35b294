package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memDaily struct {
	rows      map[string][]domain.DailyRow
	fetchFrom map[string]string
}

func newMemDaily() *memDaily {
	return &memDaily{rows: make(map[string][]domain.DailyRow), fetchFrom: make(map[string]string)}
}

func (m *memDaily) add(symbol string, dates ...string) {
	for i, d := range dates {
		px := 10 + float64(i)
		m.rows[symbol] = append(m.rows[symbol], domain.DailyRow{
			Symbol: symbol, Date: d,
			Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 1000,
		})
	}
}

func (m *memDaily) ListSymbols(context.Context) ([]string, error) {
	out := make([]string, 0, len(m.rows))
	for s := range m.rows {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memDaily) Fetch(_ context.Context, symbol, start string) ([]domain.DailyRow, error) {
	m.fetchFrom[symbol] = start
	var out []domain.DailyRow
	for _, r := range m.rows[symbol] {
		if start == "" || r.Date >= start {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memDaily) LatestDate(_ context.Context, symbol string) (string, error) {
	latest := ""
	for _, r := range m.rows[symbol] {
		if r.Date > latest {
			latest = r.Date
		}
	}
	return latest, nil
}

func (m *memDaily) Upsert(_ context.Context, rows []domain.DailyRow) (int, error) {
	for _, r := range rows {
		existing := m.rows[r.Symbol]
		replaced := false
		for i := range existing {
			if existing[i].Date == r.Date {
				existing[i] = r
				replaced = true
			}
		}
		if !replaced {
			m.rows[r.Symbol] = append(existing, r)
		}
	}
	return len(rows), nil
}

type memBars struct {
	bars map[string]domain.Bar
}

func newMemBars() *memBars { return &memBars{bars: make(map[string]domain.Bar)} }

func barKey(b domain.Bar) string {
	return b.VTSymbol() + "|" + string(b.Interval) + "|" + b.Datetime.UTC().Format(time.RFC3339)
}

func (m *memBars) UpsertBars(_ context.Context, bars []domain.Bar) (int, error) {
	for _, b := range bars {
		m.bars[barKey(b)] = b
	}
	return len(bars), nil
}

func (m *memBars) match(symbol string, exchange domain.Exchange, interval domain.Interval) []domain.Bar {
	var out []domain.Bar
	for _, b := range m.bars {
		if b.Symbol == symbol && b.Exchange == exchange && b.Interval == interval {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out
}

func (m *memBars) LatestDate(_ context.Context, symbol string, exchange domain.Exchange, interval domain.Interval) (string, error) {
	bars := m.match(symbol, exchange, interval)
	if len(bars) == 0 {
		return "", nil
	}
	return bars[len(bars)-1].Date(), nil
}

func (m *memBars) Count(_ context.Context, symbol string, exchange domain.Exchange, interval domain.Interval) (int64, error) {
	return int64(len(m.match(symbol, exchange, interval))), nil
}

func (m *memBars) LoadBars(_ context.Context, symbol string, exchange domain.Exchange, interval domain.Interval, opts domain.ListOpts) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range m.match(symbol, exchange, interval) {
		if opts.Since != nil && b.Datetime.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && b.Datetime.After(*opts.Until) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memBars) ListVTSymbols(_ context.Context, interval domain.Interval) ([]string, error) {
	seen := make(map[string]bool)
	for _, b := range m.bars {
		if b.Interval == interval {
			seen[b.VTSymbol()] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

type memLocks struct{ held map[string]bool }

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() { delete(m.held, key) }, nil
}

type memAudit struct{ entries []domain.AuditEntry }

func (m *memAudit) Log(_ context.Context, event string, summary domain.RunSummary) error {
	m.entries = append(m.entries, domain.AuditEntry{ID: int64(len(m.entries) + 1), Event: event, RunID: summary.RunID, Summary: summary})
	return nil
}

func (m *memAudit) List(_ context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if q.Event == "" || e.Event == q.Event {
			out = append(out, e)
		}
	}
	return out, nil
}

// stubFetcher serves canned rows per code and fails codes listed in fail.
type stubFetcher struct {
	rows  map[string][]domain.DailyRow
	fail  map[string]bool
	calls []string
}

func (f *stubFetcher) FetchDaily(_ context.Context, code, start, end string) ([]domain.DailyRow, error) {
	f.calls = append(f.calls, strings.Join([]string{code, start, end}, ","))
	if f.fail[code] {
		return nil, errors.New("provider returned 502")
	}
	var out []domain.DailyRow
	for _, r := range f.rows[code] {
		if r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

type countingLimiter struct{ waits int }

func (c *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (c *countingLimiter) Wait(context.Context, string) error {
	c.waits++
	return nil
}
