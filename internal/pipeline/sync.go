package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
	"github.com/alanyoungcy/ashare-quant/internal/transform"
)

// SyncMode selects whether a sync resumes after the last stored bar.
type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// ParseSyncMode validates a mode name.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case SyncFull, SyncIncremental:
		return SyncMode(s), nil
	}
	return "", &domain.ConfigError{Field: "sync.mode", Value: s}
}

const syncLockKey = "sync:dbbardata"

// SyncResult reports one symbol's sync.
type SyncResult struct {
	Symbol      string   `json:"symbol"`
	VTSymbol    string   `json:"vt_symbol"`
	SourceRows  int      `json:"source_rows"`
	WrittenRows int      `json:"written_rows"`
	Mode        SyncMode `json:"mode"`
}

// SyncOptions selects what Sync processes. An empty Symbols list means every
// symbol in the source store; Limit caps the list when positive.
type SyncOptions struct {
	Symbols []string
	Mode    SyncMode
	Limit   int
}

// SyncOption configures optional SyncService collaborators.
type SyncOption func(*SyncService)

// WithSyncLock serializes syncs into the same target across processes.
func WithSyncLock(locks domain.LockManager, ttl time.Duration) SyncOption {
	return func(s *SyncService) {
		s.locks = locks
		s.lockTTL = ttl
	}
}

// WithSyncAudit records a summary of each Sync call.
func WithSyncAudit(audit domain.AuditStore) SyncOption {
	return func(s *SyncService) { s.audit = audit }
}

// SyncService copies daily rows from the source store into the target bar
// store, transforming them on the way. Writes are upserts, so re-running a
// sync is harmless.
type SyncService struct {
	source      domain.DailyStore
	target      domain.BarStore
	transformer *transform.Transformer
	logger      *slog.Logger

	locks   domain.LockManager
	lockTTL time.Duration
	audit   domain.AuditStore
}

// NewSyncService creates a SyncService.
func NewSyncService(source domain.DailyStore, target domain.BarStore, transformer *transform.Transformer, logger *slog.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		source:      source,
		target:      target,
		transformer: transformer,
		logger:      logger.With(slog.String("component", "sync")),
		lockTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncSymbol brings one symbol up to date. In incremental mode only source
// rows dated strictly after the latest stored bar are transformed.
func (s *SyncService) SyncSymbol(ctx context.Context, sym string, mode SyncMode) (SyncResult, error) {
	info, err := symbol.Normalize(sym)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync: %w", err)
	}
	res := SyncResult{Symbol: info.Code, VTSymbol: info.VTSymbol(), Mode: mode}

	var latest string
	if mode == SyncIncremental {
		latest, err = s.target.LatestDate(ctx, info.Code, info.Exchange, domain.IntervalDaily)
		if err != nil {
			return res, fmt.Errorf("sync: latest date for %s: %w", res.VTSymbol, err)
		}
	}

	rows, err := s.source.Fetch(ctx, info.Code, latest)
	if err != nil {
		return res, fmt.Errorf("sync: fetch %s: %w", info.Code, err)
	}
	if latest != "" {
		rows = rowsAfter(rows, latest)
	}
	res.SourceRows = len(rows)
	if len(rows) == 0 {
		return res, nil
	}

	bars, err := s.transformer.Transform(info.VTSymbol(), transform.FromDailyRows(rows))
	if err != nil {
		return res, fmt.Errorf("sync: transform %s: %w", res.VTSymbol, err)
	}
	written, err := s.target.UpsertBars(ctx, bars)
	if err != nil {
		return res, fmt.Errorf("sync: upsert %s: %w", res.VTSymbol, err)
	}
	res.WrittenRows = written
	return res, nil
}

// Sync processes symbols sequentially. Any error aborts the batch; results
// for symbols already processed are returned alongside it.
func (s *SyncService) Sync(ctx context.Context, opts SyncOptions) ([]SyncResult, error) {
	if opts.Mode == "" {
		opts.Mode = SyncIncremental
	}

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, syncLockKey, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("sync: acquire lock: %w", err)
		}
		defer unlock()
	}

	symbols := opts.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = s.source.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("sync: list source symbols: %w", err)
		}
	}
	if opts.Limit > 0 && len(symbols) > opts.Limit {
		symbols = symbols[:opts.Limit]
	}

	start := time.Now()
	results := make([]SyncResult, 0, len(symbols))
	for i, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("sync: %w", err)
		}
		r, err := s.SyncSymbol(ctx, sym, opts.Mode)
		if err != nil {
			s.logger.Error("symbol sync failed",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
			return results, err
		}
		results = append(results, r)
		s.logger.Info("symbol synced",
			slog.Int("index", i+1),
			slog.Int("total", len(symbols)),
			slog.String("vt_symbol", r.VTSymbol),
			slog.String("mode", string(r.Mode)),
			slog.Int("source_rows", r.SourceRows),
			slog.Int("written_rows", r.WrittenRows),
		)
	}

	sum := Summarize(results)
	s.logger.Info("sync complete",
		slog.Int("symbols", sum.Symbols),
		slog.Int("source_rows", sum.SourceRows),
		slog.Int("written_rows", sum.WrittenRows),
		slog.Duration("elapsed", time.Since(start)),
	)
	s.recordAudit(ctx, opts.Mode, sum)
	return results, nil
}

// Verify counts the stored daily bars of each vt_symbol.
func (s *SyncService) Verify(ctx context.Context, vtSymbols []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(vtSymbols))
	for _, vt := range vtSymbols {
		info, err := symbol.Normalize(vt)
		if err != nil {
			return counts, fmt.Errorf("verify: %w", err)
		}
		n, err := s.target.Count(ctx, info.Code, info.Exchange, domain.IntervalDaily)
		if err != nil {
			return counts, fmt.Errorf("verify: count %s: %w", info.VTSymbol(), err)
		}
		counts[info.VTSymbol()] = n
	}
	return counts, nil
}

// Summary totals a batch of results.
type Summary struct {
	Symbols     int `json:"symbols"`
	SourceRows  int `json:"source_rows"`
	WrittenRows int `json:"written_rows"`
}

// Summarize totals results.
func Summarize(results []SyncResult) Summary {
	sum := Summary{Symbols: len(results)}
	for _, r := range results {
		sum.SourceRows += r.SourceRows
		sum.WrittenRows += r.WrittenRows
	}
	return sum
}

// RunSummary is the audit and notification form of sum.
func (sum Summary) RunSummary(mode SyncMode) domain.RunSummary {
	return domain.RunSummary{
		Mode:       string(mode),
		Symbols:    sum.Symbols,
		SourceRows: sum.SourceRows,
		Rows:       sum.WrittenRows,
	}
}

func (s *SyncService) recordAudit(ctx context.Context, mode SyncMode, sum Summary) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, "sync.completed", sum.RunSummary(mode)); err != nil {
		s.logger.Warn("audit log failed", slog.String("error", err.Error()))
	}
}

func rowsAfter(rows []domain.DailyRow, date string) []domain.DailyRow {
	out := rows[:0:0]
	for _, r := range rows {
		if r.Date > date {
			out = append(out, r)
		}
	}
	return out
}

// IsLockHeld reports whether err means another sync holds the target.
func IsLockHeld(err error) bool { return errors.Is(err, domain.ErrLockHeld) }
