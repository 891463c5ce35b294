package domain

import (
	"time"
)

// Exchange identifies the listing venue of an A-share symbol.
type Exchange string

const (
	ExchangeSSE  Exchange = "SSE"
	ExchangeSZSE Exchange = "SZSE"
)

// Shanghai is the exchange time zone every bar timestamp is expressed in.
var Shanghai = loadShanghai()

func loadShanghai() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Interval is the bar granularity tag persisted with every bar.
type Interval string

const IntervalDaily Interval = "1d"

// Provenance tags written into the gateway column of the bar store.
const (
	GatewayAkshare = "AKSHARE"
	GatewayDB      = "DB"
)

// Bar is one daily OHLCV record in the broker bar schema. Volume is always
// expressed in shares.
type Bar struct {
	Symbol       string
	Exchange     Exchange
	Datetime     time.Time
	Interval     Interval
	Volume       float64
	Turnover     float64
	OpenInterest float64
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Gateway      string
}

// VTSymbol returns the "code.EXCHANGE" identifier of the bar.
func (b Bar) VTSymbol() string {
	return b.Symbol + "." + string(b.Exchange)
}

// Date returns the Shanghai trading date of the bar as YYYY-MM-DD.
func (b Bar) Date() string {
	return b.Datetime.In(Shanghai).Format(time.DateOnly)
}

// DailyRow is one row of the source daily table, keyed by (symbol, date).
// Volume is in whatever unit the provider reported.
type DailyRow struct {
	Symbol       string
	Date         string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	Amount       *float64
	TurnoverRate *float64
}
