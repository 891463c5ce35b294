package ledger

import "sort"

// Account holds cash and positions for one simulated run.
type Account struct {
	ID         string
	Capital    float64
	Available  float64
	Frozen     float64
	TradeCount int

	positions map[string]*Position
}

// NewAccount returns an account funded with capital.
func NewAccount(id string, capital float64) *Account {
	return &Account{
		ID:        id,
		Capital:   capital,
		Available: capital,
		positions: make(map[string]*Position),
	}
}

// Position returns the position for vtSymbol, creating a flat one if absent.
func (a *Account) Position(vtSymbol string) *Position {
	p, ok := a.positions[vtSymbol]
	if !ok {
		p = NewPosition(vtSymbol)
		a.positions[vtSymbol] = p
	}
	return p
}

// Positions returns the positions sorted by symbol.
func (a *Account) Positions() []*Position {
	out := make([]*Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VTSymbol < out[j].VTSymbol })
	return out
}

// Debit removes cash. Cash may go negative; callers enforce funds checks.
func (a *Account) Debit(amount float64) { a.Available -= amount }

// Credit adds cash.
func (a *Account) Credit(amount float64) { a.Available += amount }

// PositionValue marks every position at marks, falling back to the average
// price for symbols without a mark.
func (a *Account) PositionValue(marks map[string]float64) float64 {
	total := 0.0
	for sym, p := range a.positions {
		price, ok := marks[sym]
		if !ok {
			price = p.AvgPrice
		}
		total += p.Value(price)
	}
	return total
}

// TotalValue is available plus frozen cash plus marked positions.
func (a *Account) TotalValue(marks map[string]float64) float64 {
	return a.Available + a.Frozen + a.PositionValue(marks)
}

// Settle releases T+1 lockups from dates before date on every position.
func (a *Account) Settle(date string) {
	for _, p := range a.positions {
		p.Settle(date)
	}
}
