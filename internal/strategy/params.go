package strategy

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// DefaultVolume is the fixed order size every strategy trades: one board lot.
const DefaultVolume int64 = 100

// DoubleMAParams configures the moving-average crossover strategy.
type DoubleMAParams struct {
	FastWindow int   `toml:"fast_window"`
	SlowWindow int   `toml:"slow_window"`
	Volume     int64 `toml:"volume"`
}

func (p DoubleMAParams) Validate() error {
	switch {
	case p.FastWindow < 1:
		return invalid("double_ma.fast_window", p.FastWindow)
	case p.SlowWindow <= p.FastWindow:
		return invalid("double_ma.slow_window", p.SlowWindow)
	case p.Volume <= 0:
		return invalid("double_ma.volume", p.Volume)
	}
	return nil
}

// MACDParams configures the DIF/DEA crossover strategy.
type MACDParams struct {
	FastPeriod   int   `toml:"fast_period"`
	SlowPeriod   int   `toml:"slow_period"`
	SignalPeriod int   `toml:"signal_period"`
	Volume       int64 `toml:"volume"`
}

func (p MACDParams) Validate() error {
	switch {
	case p.FastPeriod < 1:
		return invalid("macd.fast_period", p.FastPeriod)
	case p.SlowPeriod <= p.FastPeriod:
		return invalid("macd.slow_period", p.SlowPeriod)
	case p.SignalPeriod < 1:
		return invalid("macd.signal_period", p.SignalPeriod)
	case p.Volume <= 0:
		return invalid("macd.volume", p.Volume)
	}
	return nil
}

// minBars is the warm-up length before signals are computed.
func (p MACDParams) minBars() int {
	return p.SlowPeriod + p.SignalPeriod + 10
}

// RSIParams configures the oversold/overbought reversal strategy.
type RSIParams struct {
	Period     int     `toml:"period"`
	Oversold   float64 `toml:"oversold"`
	Overbought float64 `toml:"overbought"`
	Volume     int64   `toml:"volume"`
}

func (p RSIParams) Validate() error {
	switch {
	case p.Period < 1:
		return invalid("rsi.period", p.Period)
	case p.Oversold <= 0 || p.Oversold >= 50:
		return invalid("rsi.oversold", p.Oversold)
	case p.Overbought <= 50 || p.Overbought >= 100:
		return invalid("rsi.overbought", p.Overbought)
	case p.Volume <= 0:
		return invalid("rsi.volume", p.Volume)
	}
	return nil
}

// BollingerParams configures the band mean-reversion strategy.
type BollingerParams struct {
	Period int     `toml:"period"`
	Dev    float64 `toml:"dev"`
	Volume int64   `toml:"volume"`
}

func (p BollingerParams) Validate() error {
	switch {
	case p.Period < 2:
		return invalid("bollinger.period", p.Period)
	case p.Dev <= 0:
		return invalid("bollinger.dev", p.Dev)
	case p.Volume <= 0:
		return invalid("bollinger.volume", p.Volume)
	}
	return nil
}

// Params groups the typed settings of every registered strategy. Only the
// section matching the selected strategy is used.
type Params struct {
	DoubleMA  DoubleMAParams  `toml:"double_ma"`
	MACD      MACDParams      `toml:"macd"`
	RSI       RSIParams       `toml:"rsi"`
	Bollinger BollingerParams `toml:"bollinger"`
}

// DefaultParams returns the stock settings of each strategy.
func DefaultParams() Params {
	return Params{
		DoubleMA:  DoubleMAParams{FastWindow: 10, SlowWindow: 20, Volume: DefaultVolume},
		MACD:      MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9, Volume: DefaultVolume},
		RSI:       RSIParams{Period: 14, Oversold: 30, Overbought: 70, Volume: DefaultVolume},
		Bollinger: BollingerParams{Period: 20, Dev: 2, Volume: DefaultVolume},
	}
}

// ApplySettings overlays a loose key/value mapping onto the named section of
// p. Keys the section does not declare are rejected, as are values of the
// wrong type.
func ApplySettings(p *Params, name string, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]any{name: settings}); err != nil {
		return fmt.Errorf("strategy: encode %s settings: %w", name, err)
	}

	md, err := toml.Decode(buf.String(), p)
	if err != nil {
		return fmt.Errorf("strategy: decode %s settings: %w", name, &domain.ConfigError{Field: name, Value: err.Error()})
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("strategy: unknown setting: %w", &domain.ConfigError{Field: "strategy", Value: strings.Join(keys, ", ")})
	}
	return nil
}

func invalid(field string, v any) error {
	return &domain.ConfigError{Field: field, Value: fmt.Sprint(v)}
}
