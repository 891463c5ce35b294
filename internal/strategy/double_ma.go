package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// DoubleMA buys when the fast moving average crosses above the slow one and
// closes the long when it crosses back below.
type DoubleMA struct {
	Template
	params DoubleMAParams
	closes *window

	FastMA float64
	SlowMA float64
}

// NewDoubleMA validates p and returns the strategy.
func NewDoubleMA(vtSymbol string, p DoubleMAParams, logger *slog.Logger) (*DoubleMA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &DoubleMA{
		Template: newTemplate("double_ma", vtSymbol, logger),
		params:   p,
		closes:   newWindow(p.SlowWindow * 2),
	}, nil
}

func (s *DoubleMA) Init() error {
	s.logger.Info("double_ma params",
		slog.Int("fast_window", s.params.FastWindow),
		slog.Int("slow_window", s.params.SlowWindow),
	)
	return s.Template.Init()
}

func (s *DoubleMA) OnBar(bar domain.Bar) {
	s.countBar()
	s.closes.push(bar.Close)

	fast, slow := s.params.FastWindow, s.params.SlowWindow
	if s.closes.len() < slow {
		return
	}

	vals := s.closes.vals
	s.FastMA = SMA(vals, fast)
	s.SlowMA = SMA(vals, slow)

	if len(vals) < slow+1 {
		return
	}
	prev := vals[:len(vals)-1]
	prevFast := SMA(prev, fast)
	prevSlow := SMA(prev, slow)

	switch {
	case prevFast <= prevSlow && s.FastMA > s.SlowMA:
		s.logger.Info("golden cross",
			slog.String("date", bar.Date()),
			slog.Float64("fast_ma", s.FastMA),
			slog.Float64("slow_ma", s.SlowMA),
		)
		switch {
		case s.Pos() == 0:
			s.Buy(bar.Close, s.params.Volume)
		case s.Pos() < 0:
			s.Cover(bar.Close, -s.Pos())
			s.Buy(bar.Close, s.params.Volume)
		}
	case prevFast >= prevSlow && s.FastMA < s.SlowMA:
		s.logger.Info("death cross",
			slog.String("date", bar.Date()),
			slog.Float64("fast_ma", s.FastMA),
			slog.Float64("slow_ma", s.SlowMA),
		)
		if s.Pos() > 0 {
			s.Sell(bar.Close, s.Pos())
		}
	}
}
