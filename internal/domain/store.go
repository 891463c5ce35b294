package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BarStore is the target bar table keyed by (symbol, exchange, interval,
// datetime). Writes are upserts.
type BarStore interface {
	UpsertBars(ctx context.Context, bars []Bar) (int, error)
	LatestDate(ctx context.Context, symbol string, exchange Exchange, interval Interval) (string, error)
	Count(ctx context.Context, symbol string, exchange Exchange, interval Interval) (int64, error)
	LoadBars(ctx context.Context, symbol string, exchange Exchange, interval Interval, opts ListOpts) ([]Bar, error)
	ListVTSymbols(ctx context.Context, interval Interval) ([]string, error)
}

// DailyStore is the source daily table keyed by (symbol, date).
type DailyStore interface {
	ListSymbols(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, symbol string, startDate string) ([]DailyRow, error)
	LatestDate(ctx context.Context, symbol string) (string, error)
	Upsert(ctx context.Context, rows []DailyRow) (int, error)
}

// TradeStore persists executed fills of paper and backtest runs.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) error
	ListByRun(ctx context.Context, runID string) ([]Trade, error)
}

// RunSummary is the audit detail recorded when a collect, sync, backtest
// or paper run finishes. Zero fields are omitted from the stored JSON.
type RunSummary struct {
	RunID      string             `json:"run_id,omitempty"`
	Mode       string             `json:"mode,omitempty"`
	Strategy   string             `json:"strategy,omitempty"`
	VTSymbol   string             `json:"vt_symbol,omitempty"`
	Symbols    int                `json:"symbols,omitempty"`
	Failed     int                `json:"failed,omitempty"`
	SourceRows int                `json:"source_rows,omitempty"`
	Rows       int                `json:"rows,omitempty"`
	Trades     int                `json:"trades,omitempty"`
	Artifact   string             `json:"artifact,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Fields flattens the non-zero fields and metrics into one map, the shape
// notifications render.
func (s RunSummary) Fields() map[string]any {
	out := make(map[string]any, len(s.Metrics)+6)
	setStr := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	setInt := func(k string, v int) {
		if v != 0 {
			out[k] = v
		}
	}
	setStr("run_id", s.RunID)
	setStr("mode", s.Mode)
	setStr("strategy", s.Strategy)
	setStr("vt_symbol", s.VTSymbol)
	setInt("symbols", s.Symbols)
	setInt("failed", s.Failed)
	setInt("source_rows", s.SourceRows)
	setInt("rows", s.Rows)
	setInt("trades", s.Trades)
	setStr("artifact", s.Artifact)
	for k, v := range s.Metrics {
		out[k] = v
	}
	return out
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	RunID     string
	Summary   RunSummary
	CreatedAt time.Time
}

// AuditQuery filters audit log listings. Empty Event and RunID match all.
type AuditQuery struct {
	Event string
	RunID string
	ListOpts
}

// AuditStore persists an append-only log of run summaries.
type AuditStore interface {
	Log(ctx context.Context, event string, summary RunSummary) error
	List(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}
