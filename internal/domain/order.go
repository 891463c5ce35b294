package domain

import "time"

// Direction is the side of an order or trade. Long buys, short sells.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// OrderStatus tracks the order lifecycle. Every status other than pending is
// terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending
}

// Order is a strategy's request to trade. All orders behave as market orders
// against the current bar.
type Order struct {
	ID           string
	VTSymbol     string
	Direction    Direction
	Price        float64
	Volume       int64
	Status       OrderStatus
	FilledPrice  float64
	FilledVolume int64
	RejectReason error
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
