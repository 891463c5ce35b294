package strategy

import (
	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// Strategy is the lifecycle a driver runs: Init once, Start, a stream of
// OnBar calls with OnTrade delivered synchronously for every fill, then Stop.
type Strategy interface {
	Name() string
	VTSymbol() string
	Bind(submitter OrderSubmitter)
	Init() error
	Start()
	Stop()
	Trading() bool
	OnBar(bar domain.Bar)
	OnTrade(trade domain.Trade)
}

// OrderSubmitter is the order capability the execution engine lends to a
// strategy. Submit always returns an order ID; rejection is a terminal order
// status, never an error, and shows up only as the absence of a fill.
type OrderSubmitter interface {
	Submit(vtSymbol string, dir domain.Direction, price float64, volume int64) string
	Cancel(orderID string) bool
	CancelAll() int
}
