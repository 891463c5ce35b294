// Package transform converts tabular daily records into broker-schema bars
// and validates OHLC integrity.
package transform

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
)

// VolumeUnit declares the unit of the incoming volume column.
type VolumeUnit string

const (
	VolumeUnitShare VolumeUnit = "share"
	VolumeUnitLot   VolumeUnit = "lot"
)

const (
	sharesPerLot = 100

	// swapThreshold is the fraction of high<low rows above which the whole
	// batch is treated as having its high and low fields swapped.
	swapThreshold = 0.9

	closeHour = 15
)

// ParseVolumeUnit validates a volume unit flag.
func ParseVolumeUnit(s string) (VolumeUnit, error) {
	switch VolumeUnit(strings.ToLower(strings.TrimSpace(s))) {
	case VolumeUnitShare:
		return VolumeUnitShare, nil
	case VolumeUnitLot:
		return VolumeUnitLot, nil
	}
	return "", &domain.ConfigError{Field: "volume_unit", Value: s}
}

// Transformer builds bars from daily tables.
type Transformer struct {
	unit    VolumeUnit
	gateway string
	logger  *slog.Logger
}

// Option customizes a Transformer.
type Option func(*Transformer)

// WithGateway overrides the provenance tag written into each bar.
func WithGateway(gateway string) Option {
	return func(t *Transformer) { t.gateway = gateway }
}

// WithLogger sets the logger used to report batch repairs.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// New returns a Transformer for the given volume unit. An unknown unit is a
// ConfigError.
func New(unit VolumeUnit, opts ...Option) (*Transformer, error) {
	if unit != VolumeUnitShare && unit != VolumeUnitLot {
		return nil, &domain.ConfigError{Field: "volume_unit", Value: string(unit)}
	}
	t := &Transformer{
		unit:    unit,
		gateway: domain.GatewayAkshare,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With(slog.String("component", "bar_transformer"))
	return t, nil
}

// Unit returns the configured volume unit.
func (t *Transformer) Unit() VolumeUnit { return t.unit }

// Transform converts one symbol's table into bars sorted by datetime. An
// empty table yields no bars and no error.
func (t *Transformer) Transform(sym string, table Table) ([]domain.Bar, error) {
	if table.Len() == 0 {
		return nil, nil
	}

	info, err := symbol.Normalize(sym)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, c := range requiredColumns {
		if !table.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("transform %s: %w", info.VTSymbol(), &domain.SchemaError{Missing: missing})
	}

	bars := make([]domain.Bar, 0, table.Len())
	for i, rec := range table.Rows {
		bar, err := t.buildBar(info, rec)
		if err != nil {
			return nil, fmt.Errorf("transform %s: row %d: %w", info.VTSymbol(), i, err)
		}
		bars = append(bars, bar)
	}

	if n := countInverted(bars); float64(n)/float64(len(bars)) > swapThreshold {
		t.logger.Warn("high/low fields look swapped, repairing batch",
			slog.String("vt_symbol", info.VTSymbol()),
			slog.Int("inverted", n),
			slog.Int("rows", len(bars)),
		)
		for i := range bars {
			bars[i].High, bars[i].Low = bars[i].Low, bars[i].High
		}
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Datetime.Before(bars[j].Datetime)
	})
	return bars, nil
}

// Item pairs a symbol with its table for TransformMany.
type Item struct {
	Symbol string
	Table  Table
}

// TransformMany transforms each item in order and concatenates the results.
// The swap decision is taken per item.
func (t *Transformer) TransformMany(items []Item) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, it := range items {
		bars, err := t.Transform(it.Symbol, it.Table)
		if err != nil {
			return nil, err
		}
		out = append(out, bars...)
	}
	return out, nil
}

func (t *Transformer) buildBar(info symbol.Info, rec Record) (domain.Bar, error) {
	ts, err := NormalizeTime(rec[ColDate])
	if err != nil {
		return domain.Bar{}, err
	}

	var fields [5]float64
	for i, col := range []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume} {
		v, err := toFloat(rec[col])
		if err != nil {
			return domain.Bar{}, fmt.Errorf("column %s: %w", col, err)
		}
		fields[i] = v
	}

	turnover, err := toFloat(rec[ColAmount])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("column %s: %w", ColAmount, err)
	}

	volume := fields[4]
	if t.unit == VolumeUnitLot {
		volume *= sharesPerLot
	}

	return domain.Bar{
		Symbol:       info.Code,
		Exchange:     info.Exchange,
		Datetime:     ts,
		Interval:     domain.IntervalDaily,
		Volume:       volume,
		Turnover:     turnover,
		OpenInterest: 0,
		Open:         fields[0],
		High:         fields[1],
		Low:          fields[2],
		Close:        fields[3],
		Gateway:      t.gateway,
	}, nil
}

func countInverted(bars []domain.Bar) int {
	n := 0
	for _, b := range bars {
		if b.High < b.Low {
			n++
		}
	}
	return n
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
}

var naiveLayouts = []string{
	time.DateOnly,
	"20060102",
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// NormalizeTime parses a date cell. Values without a zone are pinned to the
// 15:00 close in Shanghai; zone-aware values are converted to Shanghai.
func NormalizeTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.In(domain.Shanghai), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range zonedLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.In(domain.Shanghai), nil
			}
		}
		for _, layout := range naiveLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return time.Date(ts.Year(), ts.Month(), ts.Day(), closeHour, 0, 0, 0, domain.Shanghai), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", x)
	case nil:
		return time.Time{}, fmt.Errorf("missing date")
	}
	return time.Time{}, fmt.Errorf("unsupported date type %T", v)
}

// toFloat coerces a cell to float64; nil becomes 0.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", x, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}
