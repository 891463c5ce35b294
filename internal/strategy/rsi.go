package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// RSI buys when the index leaves the oversold zone, sells or shorts when it
// leaves the overbought zone, and exits when it crosses back through 50.
type RSI struct {
	Template
	params RSIParams
	closes *window

	Value float64
}

// NewRSI validates p and returns the strategy.
func NewRSI(vtSymbol string, p RSIParams, logger *slog.Logger) (*RSI, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &RSI{
		Template: newTemplate("rsi", vtSymbol, logger),
		params:   p,
		closes:   newWindow(p.Period * 3),
	}, nil
}

func (s *RSI) Init() error {
	s.logger.Info("rsi params",
		slog.Int("period", s.params.Period),
		slog.Float64("oversold", s.params.Oversold),
		slog.Float64("overbought", s.params.Overbought),
	)
	return s.Template.Init()
}

const rsiMidline = 50.0

func (s *RSI) OnBar(bar domain.Bar) {
	s.countBar()
	s.closes.push(bar.Close)

	n := s.params.Period
	if s.closes.len() < n+1 {
		return
	}
	vals := s.closes.vals
	s.Value = RSIValue(vals, n)
	if len(vals) < n+2 {
		return
	}
	prev := RSIValue(vals[:len(vals)-1], n)
	cur := s.Value
	pos := s.Pos()

	switch {
	case prev <= s.params.Oversold && cur > s.params.Oversold:
		s.logger.Info("rsi left oversold", slog.String("date", bar.Date()), slog.Float64("rsi", cur))
		switch {
		case pos == 0:
			s.Buy(bar.Close, s.params.Volume)
		case pos < 0:
			s.Cover(bar.Close, -pos)
			s.Buy(bar.Close, s.params.Volume)
		}
	case prev >= s.params.Overbought && cur < s.params.Overbought:
		s.logger.Info("rsi left overbought", slog.String("date", bar.Date()), slog.Float64("rsi", cur))
		switch {
		case pos > 0:
			s.Sell(bar.Close, pos)
		case pos == 0:
			s.Short(bar.Close, s.params.Volume)
		}
	case pos > 0 && prev >= rsiMidline && cur < rsiMidline:
		s.logger.Info("rsi long exit at midline", slog.String("date", bar.Date()), slog.Float64("rsi", cur))
		s.Sell(bar.Close, pos)
	case pos < 0 && prev <= rsiMidline && cur > rsiMidline:
		s.logger.Info("rsi short exit at midline", slog.String("date", bar.Date()), slog.Float64("rsi", cur))
		s.Cover(bar.Close, -pos)
	}
}
