// Package ledger tracks signed positions, weighted-average cost and T+1
// lockup of shares bought on the current trading date.
package ledger

import "github.com/alanyoungcy/ashare-quant/internal/domain"

// Position is the ledger entry for one symbol. Positive volume is long,
// negative is short. AvgPrice is 0 whenever Volume is 0.
type Position struct {
	VTSymbol    string
	Volume      int64
	AvgPrice    float64
	TodayBought map[string]int64
}

// NewPosition returns a flat position.
func NewPosition(vtSymbol string) *Position {
	return &Position{VTSymbol: vtSymbol, TodayBought: make(map[string]int64)}
}

// Apply books a fill using the signed-quantity rule: a same-side fill
// re-weights the average, a reduction keeps it, and any residual past flat
// opens a new leg at the trade price. Long exposure added on date is locked
// until the next trading date.
func (p *Position) Apply(dir domain.Direction, price float64, volume int64, date string) {
	if volume <= 0 {
		return
	}
	qty := volume
	if dir == domain.DirectionShort {
		qty = -volume
	}

	old := p.Volume
	next := old + qty

	switch {
	case old == 0 || sign(old) == sign(qty):
		p.AvgPrice = (abs(old)*p.AvgPrice + abs(qty)*price) / abs(next)
	case next == 0:
		p.AvgPrice = 0
	case sign(next) != sign(old):
		p.AvgPrice = price
	}
	p.Volume = next

	if added := max(next, 0) - max(old, 0); added > 0 {
		if p.TodayBought == nil {
			p.TodayBought = make(map[string]int64)
		}
		p.TodayBought[date] += added
	}
}

// SellableVolume is the long volume not locked by purchases on date.
func (p *Position) SellableVolume(date string) int64 {
	if p.Volume <= 0 {
		return 0
	}
	return max(0, p.Volume-p.TodayBought[date])
}

// Settle releases lockups recorded on any date other than date.
func (p *Position) Settle(date string) {
	for d := range p.TodayBought {
		if d != date {
			delete(p.TodayBought, d)
		}
	}
}

// Value marks the position at price.
func (p *Position) Value(price float64) float64 {
	return float64(p.Volume) * price
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	out := *p
	out.TodayBought = make(map[string]int64, len(p.TodayBought))
	for d, v := range p.TodayBought {
		out.TodayBought[d] = v
	}
	return &out
}

func sign(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int64) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}
