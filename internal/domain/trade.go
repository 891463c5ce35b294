package domain

import "time"

// Trade is an executed fill. Immutable once created.
type Trade struct {
	ID         string
	OrderID    string
	RunID      string
	VTSymbol   string
	Direction  Direction
	Price      float64
	Volume     int64
	Commission float64
	Timestamp  time.Time
}

// Notional returns price times volume.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Volume)
}
