package transform

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// Column names understood by the transformer.
const (
	ColDate         = "date"
	ColOpen         = "open"
	ColHigh         = "high"
	ColLow          = "low"
	ColClose        = "close"
	ColVolume       = "volume"
	ColAmount       = "amount"
	ColTurnoverRate = "turnover_rate"
)

var requiredColumns = []string{ColDate, ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Record is one row of a Table keyed by column name. Values are float64,
// string, time.Time or nil.
type Record map[string]any

// Table is a column-named batch of daily rows for one symbol.
type Table struct {
	Columns []string
	Rows    []Record
}

// Has reports whether the table declares the named column.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// FromDailyRows builds a Table from source store rows. The amount column is
// declared only when at least one row carries it.
func FromDailyRows(rows []domain.DailyRow) Table {
	cols := append([]string(nil), requiredColumns...)
	hasAmount := false
	for _, r := range rows {
		if r.Amount != nil {
			hasAmount = true
			break
		}
	}
	if hasAmount {
		cols = append(cols, ColAmount)
	}

	out := Table{Columns: cols, Rows: make([]Record, 0, len(rows))}
	for _, r := range rows {
		rec := Record{
			ColDate:   r.Date,
			ColOpen:   r.Open,
			ColHigh:   r.High,
			ColLow:    r.Low,
			ColClose:  r.Close,
			ColVolume: r.Volume,
		}
		if hasAmount {
			if r.Amount != nil {
				rec[ColAmount] = *r.Amount
			} else {
				rec[ColAmount] = nil
			}
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

// ReadCSV parses a headered CSV file into a Table. Header names are
// lower-cased and trimmed; cells are kept as strings.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return Table{}, fmt.Errorf("transform: read csv header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(h))
	}

	t := Table{Columns: cols}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("transform: read csv row %d: %w", len(t.Rows)+1, err)
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			if i < len(row) && row[i] != "" {
				rec[c] = row[i]
			} else {
				rec[c] = nil
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
