package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// MACD trades DIF/DEA crossovers: a golden cross opens a long, a death
// cross closes it.
type MACD struct {
	Template
	params MACDParams
	closes *window
	difs   []float64
	deas   []float64

	DIF  float64
	DEA  float64
	Hist float64
}

// NewMACD validates p and returns the strategy.
func NewMACD(vtSymbol string, p MACDParams, logger *slog.Logger) (*MACD, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &MACD{
		Template: newTemplate("macd", vtSymbol, logger),
		params:   p,
		closes:   newWindow(p.minBars() * 2),
	}, nil
}

func (s *MACD) Init() error {
	s.logger.Info("macd params",
		slog.Int("fast_period", s.params.FastPeriod),
		slog.Int("slow_period", s.params.SlowPeriod),
		slog.Int("signal_period", s.params.SignalPeriod),
	)
	return s.Template.Init()
}

func (s *MACD) OnBar(bar domain.Bar) {
	s.countBar()
	s.closes.push(bar.Close)
	if s.closes.len() < s.params.minBars() {
		return
	}

	vals := s.closes.vals
	s.DIF = EMA(vals, s.params.FastPeriod) - EMA(vals, s.params.SlowPeriod)
	s.DEA = EMA(append(append([]float64(nil), s.difs...), s.DIF), s.params.SignalPeriod)
	s.Hist = 2 * (s.DIF - s.DEA)

	s.difs = append(s.difs, s.DIF)
	s.deas = append(s.deas, s.DEA)
	if keep := s.params.SignalPeriod + 10; len(s.difs) > keep {
		s.difs = s.difs[len(s.difs)-keep:]
		s.deas = s.deas[len(s.deas)-keep:]
	}

	if len(s.difs) < 2 {
		return
	}
	prevDIF := s.difs[len(s.difs)-2]
	prevDEA := s.deas[len(s.deas)-2]

	switch {
	case prevDIF <= prevDEA && s.DIF > s.DEA:
		s.logger.Info("macd golden cross",
			slog.String("date", bar.Date()),
			slog.Float64("dif", s.DIF),
			slog.Float64("dea", s.DEA),
			slog.Float64("macd", s.Hist),
		)
		switch {
		case s.Pos() == 0:
			s.Buy(bar.Close, s.params.Volume)
		case s.Pos() < 0:
			s.Cover(bar.Close, -s.Pos())
			s.Buy(bar.Close, s.params.Volume)
		}
	case prevDIF >= prevDEA && s.DIF < s.DEA:
		s.logger.Info("macd death cross",
			slog.String("date", bar.Date()),
			slog.Float64("dif", s.DIF),
			slog.Float64("dea", s.DEA),
			slog.Float64("macd", s.Hist),
		)
		if s.Pos() > 0 {
			s.Sell(bar.Close, s.Pos())
		}
	}
}
