package executor

import "github.com/alanyoungcy/ashare-quant/internal/domain"

// PriceModel decides the execution price of an accepted order.
type PriceModel interface {
	FillPrice(order domain.Order, bar domain.Bar, mark float64, hasMark bool) float64
}

// CloseSlippage fills at the bar close moved against the trader by a fixed
// per-share slippage.
type CloseSlippage struct {
	Slippage float64
}

func (m CloseSlippage) FillPrice(order domain.Order, bar domain.Bar, _ float64, _ bool) float64 {
	if order.Direction == domain.DirectionLong {
		return bar.Close + m.Slippage
	}
	return bar.Close - m.Slippage
}

// LastMark fills at the last known mark for the symbol, falling back to the
// order's requested price.
type LastMark struct{}

func (LastMark) FillPrice(order domain.Order, _ domain.Bar, mark float64, hasMark bool) float64 {
	if hasMark {
		return mark
	}
	return order.Price
}

// Commission is a proportional fee with an optional floor.
type Commission struct {
	Rate    float64
	Minimum float64
}

// Fee returns the commission charged on notional.
func (c Commission) Fee(notional float64) float64 {
	return max(notional*c.Rate, c.Minimum)
}
