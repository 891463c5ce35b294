package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// Bollinger is a band mean-reversion strategy. A close breaking below the
// lower band buys, one breaking above the upper band sells or shorts, and a
// cross of the middle band exits.
type Bollinger struct {
	Template
	params BollingerParams
	closes *window

	Upper  float64
	Middle float64
	Lower  float64
}

// NewBollinger validates p and returns the strategy.
func NewBollinger(vtSymbol string, p BollingerParams, logger *slog.Logger) (*Bollinger, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Bollinger{
		Template: newTemplate("bollinger", vtSymbol, logger),
		params:   p,
		closes:   newWindow(p.Period * 2),
	}, nil
}

func (s *Bollinger) Init() error {
	s.logger.Info("bollinger params",
		slog.Int("period", s.params.Period),
		slog.Float64("dev", s.params.Dev),
	)
	return s.Template.Init()
}

func (s *Bollinger) OnBar(bar domain.Bar) {
	s.countBar()
	s.closes.push(bar.Close)
	if s.closes.len() < s.params.Period {
		return
	}

	mean, std := MeanStdDev(s.closes.last(s.params.Period))
	s.Middle = mean
	s.Upper = mean + s.params.Dev*std
	s.Lower = mean - s.params.Dev*std

	vals := s.closes.vals
	if len(vals) < 2 {
		return
	}
	prev := vals[len(vals)-2]
	cur := bar.Close
	pos := s.Pos()

	switch {
	case prev >= s.Lower && cur < s.Lower:
		s.logger.Info("close broke lower band", slog.String("date", bar.Date()), slog.Float64("lower", s.Lower))
		switch {
		case pos == 0:
			s.Buy(cur, s.params.Volume)
		case pos < 0:
			s.Cover(cur, -pos)
			s.Buy(cur, s.params.Volume)
		}
	case prev <= s.Upper && cur > s.Upper:
		s.logger.Info("close broke upper band", slog.String("date", bar.Date()), slog.Float64("upper", s.Upper))
		switch {
		case pos > 0:
			s.Sell(cur, pos)
		case pos == 0:
			s.Short(cur, s.params.Volume)
		}
	case pos > 0 && prev >= s.Middle && cur < s.Middle:
		s.logger.Info("long back to middle band", slog.String("date", bar.Date()), slog.Float64("middle", s.Middle))
		s.Sell(cur, pos)
	case pos < 0 && prev <= s.Middle && cur > s.Middle:
		s.logger.Info("short back to middle band", slog.String("date", bar.Date()), slog.Float64("middle", s.Middle))
		s.Cover(cur, -pos)
	}
}
