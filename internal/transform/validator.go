package transform

import "github.com/alanyoungcy/ashare-quant/internal/domain"

// Failure reasons appended by Validate. A bar may carry several.
const (
	ReasonHighBelowLow    = "high<low;"
	ReasonOpenOutOfRange  = "open_out_of_range;"
	ReasonCloseOutOfRange = "close_out_of_range;"
)

// Check is the OHLC verdict for one bar.
type Check struct {
	Bar    domain.Bar
	OK     bool
	Reason string
}

// Report summarizes a validation batch.
type Report struct {
	Total  int
	Passed int
	Failed int
	Checks []Check
}

// Failures returns only the failing checks.
func (r Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

// Validate flags OHLC integrity violations without altering the bars.
// Violations are data, never an error.
func Validate(bars []domain.Bar) Report {
	r := Report{Total: len(bars), Checks: make([]Check, 0, len(bars))}
	for _, b := range bars {
		c := CheckBar(b)
		if c.OK {
			r.Passed++
		} else {
			r.Failed++
		}
		r.Checks = append(r.Checks, c)
	}
	return r
}

// CheckBar validates a single bar.
func CheckBar(b domain.Bar) Check {
	reason := ""
	if b.High < b.Low {
		reason += ReasonHighBelowLow
	}
	if b.Open < b.Low || b.Open > b.High {
		reason += ReasonOpenOutOfRange
	}
	if b.Close < b.Low || b.Close > b.High {
		reason += ReasonCloseOutOfRange
	}
	return Check{Bar: b, OK: reason == "", Reason: reason}
}
