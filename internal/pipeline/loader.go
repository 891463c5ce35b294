package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
	"github.com/alanyoungcy/ashare-quant/internal/transform"
)

// DateRange converts optional YYYY-MM-DD bounds into list options. Both
// bounds are inclusive trading dates in Shanghai time.
func DateRange(start, end string) (domain.ListOpts, error) {
	var opts domain.ListOpts
	if start != "" {
		t, err := time.ParseInLocation(time.DateOnly, start, domain.Shanghai)
		if err != nil {
			return opts, &domain.ConfigError{Field: "start", Value: start}
		}
		opts.Since = &t
	}
	if end != "" {
		t, err := time.ParseInLocation(time.DateOnly, end, domain.Shanghai)
		if err != nil {
			return opts, &domain.ConfigError{Field: "end", Value: end}
		}
		last := t.Add(24*time.Hour - time.Nanosecond)
		opts.Until = &last
	}
	if opts.Since != nil && opts.Until != nil && opts.Until.Before(*opts.Since) {
		return opts, &domain.ConfigError{Field: "end", Value: end}
	}
	return opts, nil
}

// LoadBars reads the daily bars of one vt_symbol over [start, end] in
// ascending time order.
func LoadBars(ctx context.Context, store domain.BarStore, vtSymbol, start, end string) ([]domain.Bar, error) {
	info, err := symbol.Normalize(vtSymbol)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	opts, err := DateRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	bars, err := store.LoadBars(ctx, info.Code, info.Exchange, domain.IntervalDaily, opts)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", info.VTSymbol(), err)
	}
	return bars, nil
}

// Validation is the OHLC report of one vt_symbol.
type Validation struct {
	VTSymbol string
	Report   transform.Report
}

// ValidateStore runs the OHLC checks over every stored bar of the given
// vt_symbols, or of all stored vt_symbols when none are given.
func ValidateStore(ctx context.Context, store domain.BarStore, vtSymbols []string) ([]Validation, error) {
	if len(vtSymbols) == 0 {
		var err error
		vtSymbols, err = store.ListVTSymbols(ctx, domain.IntervalDaily)
		if err != nil {
			return nil, fmt.Errorf("validate: list vt_symbols: %w", err)
		}
	}
	out := make([]Validation, 0, len(vtSymbols))
	for _, vt := range vtSymbols {
		bars, err := LoadBars(ctx, store, vt, "", "")
		if err != nil {
			return out, fmt.Errorf("validate: %w", err)
		}
		out = append(out, Validation{VTSymbol: symbol.MustNormalize(vt).VTSymbol(), Report: transform.Validate(bars)})
	}
	return out, nil
}
