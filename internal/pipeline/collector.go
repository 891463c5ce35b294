package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
)

// DailyFetcher retrieves daily klines for a bare code over [start, end].
// Dates are YYYY-MM-DD; an empty end means today.
type DailyFetcher interface {
	FetchDaily(ctx context.Context, code, start, end string) ([]domain.DailyRow, error)
}

// DefaultSymbols is collected when no symbol list is configured.
var DefaultSymbols = []string{
	"600519", "000001", "600036", "000858", "300750",
	"600276", "600887", "600030", "601318", "600016",
}

const (
	DefaultCollectStart = "2020-01-01"
	collectLimiterKey   = "eastmoney"
)

// CollectorConfig controls a collection run.
type CollectorConfig struct {
	Symbols []string
	// Start is used for symbols with no stored rows.
	Start string
	End   string
	// Delay is slept between provider calls.
	Delay time.Duration
}

// CollectResult reports one symbol's collection.
type CollectResult struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start"`
	Rows   int    `json:"rows"`
	Err    error  `json:"-"`
}

// CollectorOption configures optional Collector collaborators.
type CollectorOption func(*Collector)

// WithRateLimiter gates provider calls through a shared limiter in addition
// to the fixed delay.
func WithRateLimiter(rl domain.RateLimiter) CollectorOption {
	return func(c *Collector) { c.limiter = rl }
}

// Collector pulls daily klines from a quote provider into the source store.
// A failing symbol is logged and reported with zero rows; the rest of the
// batch continues.
type Collector struct {
	store   domain.DailyStore
	fetcher DailyFetcher
	cfg     CollectorConfig
	limiter domain.RateLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(store domain.DailyStore, fetcher DailyFetcher, cfg CollectorConfig, logger *slog.Logger, opts ...CollectorOption) *Collector {
	if cfg.Start == "" {
		cfg.Start = DefaultCollectStart
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultSymbols
	}
	c := &Collector{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "collector")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run collects every configured symbol. Symbols are validated before any
// network call so a typo fails fast.
func (c *Collector) Run(ctx context.Context) ([]CollectResult, error) {
	codes := make([]string, 0, len(c.cfg.Symbols))
	for _, s := range c.cfg.Symbols {
		code, err := symbol.Code(s)
		if err != nil {
			return nil, fmt.Errorf("collector: %w", err)
		}
		codes = append(codes, code)
	}

	end := c.cfg.End
	if end == "" {
		end = c.now().In(domain.Shanghai).Format(time.DateOnly)
	}

	results := make([]CollectResult, 0, len(codes))
	total := 0
	for i, code := range codes {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				return results, err
			}
		}

		r := c.collect(ctx, code, end)
		if r.Err != nil {
			if ctx.Err() != nil {
				return results, fmt.Errorf("collector: %w", ctx.Err())
			}
			c.logger.Error("collect failed",
				slog.String("symbol", code),
				slog.String("error", r.Err.Error()),
			)
		} else {
			c.logger.Info("collected",
				slog.Int("index", i+1),
				slog.Int("total", len(codes)),
				slog.String("symbol", code),
				slog.String("start", r.Start),
				slog.Int("rows", r.Rows),
			)
		}
		total += r.Rows
		results = append(results, r)
	}

	c.logger.Info("collection complete", slog.Int("symbols", len(codes)), slog.Int("rows", total))
	return results, nil
}

func (c *Collector) collect(ctx context.Context, code, end string) CollectResult {
	r := CollectResult{Symbol: code, Start: c.cfg.Start}

	latest, err := c.store.LatestDate(ctx, code)
	if err != nil {
		r.Err = fmt.Errorf("latest date: %w", err)
		return r
	}
	if latest != "" {
		next, err := nextDay(latest)
		if err != nil {
			r.Err = err
			return r
		}
		r.Start = next
	}
	if r.Start > end {
		return r
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, collectLimiterKey); err != nil {
			r.Err = fmt.Errorf("rate limit: %w", err)
			return r
		}
	}
	rows, err := c.fetcher.FetchDaily(ctx, code, r.Start, end)
	if err != nil {
		r.Err = fmt.Errorf("fetch: %w", err)
		return r
	}
	if len(rows) == 0 {
		return r
	}
	n, err := c.store.Upsert(ctx, rows)
	if err != nil {
		r.Err = fmt.Errorf("upsert: %w", err)
		return r
	}
	r.Rows = n
	return r
}

// pause applies the fixed delay between symbols. The shared limiter is
// consulted separately before every provider call.
func (c *Collector) pause(ctx context.Context) error {
	if c.cfg.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("collector: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func nextDay(date string) (string, error) {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return "", fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return t.AddDate(0, 0, 1).Format(time.DateOnly), nil
}
