package backtest

import "math"

const (
	tradingDaysPerYear = 252
	riskFreeRate       = 0.03
)

// Statistics summarizes a completed run.
type Statistics struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalValue     float64 `json:"final_value"`
	TotalReturn    float64 `json:"total_return"`
	AnnualReturn   float64 `json:"annual_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	TradeCount     int     `json:"trade_count"`
	Days           int     `json:"days"`
}

// fillReturns sets Return and CumReturn on each snapshot. The first day has
// no prior value and gets a zero return.
func fillReturns(daily []DailyResult) {
	growth := 1.0
	for i := range daily {
		if i == 0 || daily[i-1].TotalValue == 0 {
			daily[i].Return = 0
		} else {
			daily[i].Return = daily[i].TotalValue/daily[i-1].TotalValue - 1
		}
		growth *= 1 + daily[i].Return
		daily[i].CumReturn = growth - 1
	}
}

// computeStatistics derives the run summary from daily snapshots.
func computeStatistics(initial float64, daily []DailyResult, trades int) Statistics {
	st := Statistics{
		InitialCapital: initial,
		FinalValue:     initial,
		TradeCount:     trades,
		Days:           len(daily),
	}
	if len(daily) == 0 {
		return st
	}

	st.FinalValue = daily[len(daily)-1].TotalValue
	if initial != 0 {
		st.TotalReturn = st.FinalValue/initial - 1
	}

	if base := 1 + st.TotalReturn; base > 0 {
		st.AnnualReturn = math.Pow(base, float64(tradingDaysPerYear)/float64(st.Days)) - 1
	} else {
		st.AnnualReturn = -1
	}

	returns := make([]float64, 0, len(daily)-1)
	for _, d := range daily[1:] {
		returns = append(returns, d.Return)
	}
	st.Volatility = sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear)
	if st.Volatility != 0 {
		st.SharpeRatio = (st.AnnualReturn - riskFreeRate) / st.Volatility
	}

	st.MaxDrawdown = maxDrawdown(daily)
	return st
}

// maxDrawdown is the most negative (value-peak)/peak over the equity curve.
func maxDrawdown(daily []DailyResult) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, d := range daily {
		peak = max(peak, d.TotalValue)
		if peak <= 0 {
			continue
		}
		worst = min(worst, (d.TotalValue-peak)/peak)
	}
	return worst
}

func sampleStdDev(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(n)
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(n-1))
}
