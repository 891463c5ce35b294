package strategy

import "math"

// window is a bounded rolling buffer of closes. It keeps the last limit
// values once it grows past limit.
type window struct {
	vals  []float64
	limit int
}

func newWindow(limit int) *window {
	return &window{vals: make([]float64, 0, limit+1), limit: limit}
}

func (w *window) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.limit {
		n := copy(w.vals, w.vals[len(w.vals)-w.limit:])
		w.vals = w.vals[:n]
	}
}

func (w *window) len() int { return len(w.vals) }

// last returns the trailing n values.
func (w *window) last(n int) []float64 { return w.vals[len(w.vals)-n:] }

// SMA is the arithmetic mean of the last n values.
func SMA(vals []float64, n int) float64 {
	if n <= 0 || len(vals) < n {
		return 0
	}
	sum := 0.0
	for _, v := range vals[len(vals)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// EMA runs an exponential average over vals seeded with the simple average
// of the first period values. Shorter inputs return their plain mean.
func EMA(vals []float64, period int) float64 {
	if len(vals) == 0 {
		return 0
	}
	if len(vals) < period {
		return SMA(vals, len(vals))
	}
	k := 2.0 / float64(period+1)
	ema := SMA(vals[:period], period)
	for _, v := range vals[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSIValue averages the last period gains and losses of prices. It returns 50
// when there is not enough data and 100 when there were no losses.
//
// The averages are simple means over the window, not Wilder's recursive
// smoothing: changes older than period bars have no effect. Signals of the
// RSI strategy depend on this, so keep it.
func RSIValue(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MeanStdDev returns the mean and the sample standard deviation of vals.
func MeanStdDev(vals []float64) (mean, std float64) {
	n := len(vals)
	if n == 0 {
		return 0, 0
	}
	mean = SMA(vals, n)
	if n < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}
