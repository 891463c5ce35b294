package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/paper"
	"github.com/alanyoungcy/ashare-quant/internal/server/handler"
)

type fakeBars struct {
	bars []domain.Bar
	opts domain.ListOpts
}

func (f *fakeBars) UpsertBars(context.Context, []domain.Bar) (int, error) { return 0, nil }
func (f *fakeBars) LatestDate(context.Context, string, domain.Exchange, domain.Interval) (string, error) {
	return "", nil
}
func (f *fakeBars) Count(context.Context, string, domain.Exchange, domain.Interval) (int64, error) {
	return int64(len(f.bars)), nil
}
func (f *fakeBars) LoadBars(_ context.Context, sym string, ex domain.Exchange, _ domain.Interval, opts domain.ListOpts) ([]domain.Bar, error) {
	f.opts = opts
	var out []domain.Bar
	for _, b := range f.bars {
		if b.Symbol == sym && b.Exchange == ex {
			out = append(out, b)
		}
	}
	return out, nil
}
func (f *fakeBars) ListVTSymbols(context.Context, domain.Interval) ([]string, error) {
	return []string{"600519.SSE"}, nil
}

type fakeSession struct{}

func (fakeSession) Status() paper.Status { return paper.Status{Running: true, Available: 1000} }
func (fakeSession) State() paper.State { return paper.State{RunID: "run-1"} }
func (fakeSession) Trades() []domain.Trade { return nil }
func (fakeSession) Order(id string) (domain.Order, error) {
	if id != "sim_000001" {
		return domain.Order{}, fmt.Errorf("executor: order %s: %w", id, domain.ErrNotFound)
	}
	return domain.Order{
		ID:           id,
		VTSymbol:     "600519.SSE",
		Direction:    domain.DirectionLong,
		Status:       domain.OrderStatusRejected,
		RejectReason: domain.ErrInsufficientFunds,
	}, nil
}

type fakeAudit struct {
	last domain.AuditQuery
}

func (f *fakeAudit) Log(context.Context, string, domain.RunSummary) error { return nil }
func (f *fakeAudit) List(_ context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	f.last = q
	return []domain.AuditEntry{{
		ID:        7,
		Event:     q.Event,
		RunID:     "r1",
		Summary:   domain.RunSummary{RunID: "r1", Strategy: "rsi", Trades: 3},
		CreatedAt: time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC),
	}}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }
func (denyLimiter) Wait(context.Context, string) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(cfg Config, limiter domain.RateLimiter, bars *fakeBars) http.Handler {
	logger := quietLogger()
	return NewHandler(cfg, Handlers{
		Health: handler.NewHealthHandler("paper", "double_ma"),
		Bars:   handler.NewBarHandler(bars, logger),
		Paper:  handler.NewPaperHandler(fakeSession{}),
	}, limiter, logger)
}

func get(t *testing.T, h http.Handler, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestHandler(Config{}, nil, &fakeBars{}), "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "paper", body["mode"])
}

func TestGetBars(t *testing.T) {
	bars := &fakeBars{bars: []domain.Bar{{
		Symbol:   "600519",
		Exchange: domain.ExchangeSSE,
		Datetime: time.Date(2024, 1, 2, 15, 0, 0, 0, domain.Shanghai),
		Close:    1700,
	}}}
	h := newTestHandler(Config{}, nil, bars)

	rec := get(t, h, "/api/bars/600519.SH?start=2024-01-01&end=2024-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"vt_symbol":"600519.SSE"`)
	require.Contains(t, rec.Body.String(), `"datetime":"2024-01-02T15:00:00+08:00"`)
	require.NotNil(t, bars.opts.Since)
	require.Equal(t, "2024-01-31", bars.opts.Until.In(domain.Shanghai).Format(time.DateOnly))

	rec = get(t, h, "/api/bars/ABC", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/api/bars/600519?start=01-01-2024", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditFilters(t *testing.T) {
	audit := &fakeAudit{}
	h := NewHandler(Config{}, Handlers{Audit: handler.NewAuditHandler(audit, quietLogger())}, nil, quietLogger())

	rec := get(t, h, "/api/audit?event=backtest.completed&run_id=r1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "backtest.completed", audit.last.Event)
	require.Equal(t, "r1", audit.last.RunID)
	require.Equal(t, 5, audit.last.Limit)
	require.Contains(t, rec.Body.String(), `"summary":{"run_id":"r1","strategy":"rsi","trades":3}`)
	require.Contains(t, rec.Body.String(), `"created_at":"2024-01-02T07:00:00Z"`)
}

func TestPaperOrder(t *testing.T) {
	h := newTestHandler(Config{}, nil, &fakeBars{})

	rec := get(t, h, "/api/paper/orders/sim_000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"rejected"`)
	require.Contains(t, rec.Body.String(), `"reason":"`)

	rec = get(t, h, "/api/paper/orders/sim_999999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/paper/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
}

func TestAuth(t *testing.T) {
	h := newTestHandler(Config{APIKey: "s3cret"}, nil, &fakeBars{})

	require.Equal(t, http.StatusUnauthorized, get(t, h, "/api/health", nil).Code)
	require.Equal(t, http.StatusUnauthorized, get(t, h, "/api/health", map[string]string{"X-API-Key": "nope"}).Code)
	require.Equal(t, http.StatusOK, get(t, h, "/api/health", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	require.Equal(t, http.StatusOK, get(t, h, "/api/health", map[string]string{"X-API-Key": "s3cret"}).Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(Config{RateLimit: 10}, denyLimiter{}, &fakeBars{})
	rec := get(t, h, "/api/health", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "rate limit"))
}
