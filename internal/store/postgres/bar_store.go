package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// BarStore implements domain.BarStore on the dbbardata table.
type BarStore struct {
	pool *pgxpool.Pool
}

// NewBarStore creates a BarStore backed by the given connection pool.
func NewBarStore(pool *pgxpool.Pool) *BarStore {
	return &BarStore{pool: pool}
}

const upsertBarSQL = `
	INSERT INTO dbbardata (
		symbol, exchange, datetime, "interval",
		volume, turnover, open_interest,
		open_price, high_price, low_price, close_price, gateway_name
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (symbol, exchange, "interval", datetime) DO UPDATE SET
		volume        = EXCLUDED.volume,
		turnover      = EXCLUDED.turnover,
		open_interest = EXCLUDED.open_interest,
		open_price    = EXCLUDED.open_price,
		high_price    = EXCLUDED.high_price,
		low_price     = EXCLUDED.low_price,
		close_price   = EXCLUDED.close_price,
		gateway_name  = EXCLUDED.gateway_name`

// UpsertBars writes bars in one batch, replacing rows with the same key. It
// returns the number of rows inserted or updated.
func (s *BarStore) UpsertBars(ctx context.Context, bars []domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(upsertBarSQL,
			b.Symbol, string(b.Exchange), b.Datetime, string(b.Interval),
			b.Volume, b.Turnover, b.OpenInterest,
			b.Open, b.High, b.Low, b.Close, b.Gateway,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for i := range bars {
		tag, err := br.Exec()
		if err != nil {
			return written, fmt.Errorf("postgres: upsert bar batch item %d: %w", i, err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// LatestDate returns the Shanghai trading date of the newest stored bar, or
// "" when there is none.
func (s *BarStore) LatestDate(ctx context.Context, symbol string, exchange domain.Exchange, interval domain.Interval) (string, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(datetime) FROM dbbardata WHERE symbol = $1 AND exchange = $2 AND "interval" = $3`,
		symbol, string(exchange), string(interval),
	).Scan(&ts)
	if err != nil {
		return "", fmt.Errorf("postgres: latest bar date %s.%s: %w", symbol, exchange, err)
	}
	if ts == nil {
		return "", nil
	}
	return ts.In(domain.Shanghai).Format(time.DateOnly), nil
}

// Count returns the number of stored bars for the key.
func (s *BarStore) Count(ctx context.Context, symbol string, exchange domain.Exchange, interval domain.Interval) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dbbardata WHERE symbol = $1 AND exchange = $2 AND "interval" = $3`,
		symbol, string(exchange), string(interval),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bars %s.%s: %w", symbol, exchange, err)
	}
	return n, nil
}

// LoadBars returns bars in ascending time order, optionally bounded by
// opts.Since and opts.Until (inclusive).
func (s *BarStore) LoadBars(ctx context.Context, symbol string, exchange domain.Exchange, interval domain.Interval, opts domain.ListOpts) ([]domain.Bar, error) {
	query := `SELECT symbol, exchange, datetime, "interval", volume, turnover, open_interest,
		open_price, high_price, low_price, close_price, gateway_name
		FROM dbbardata WHERE symbol = $1 AND exchange = $2 AND "interval" = $3`
	args := []any{symbol, string(exchange), string(interval)}
	argIdx := 4

	if opts.Since != nil {
		query += fmt.Sprintf(" AND datetime >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND datetime <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY datetime ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bars %s.%s: %w", symbol, exchange, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b       domain.Bar
			ex, ivl string
		)
		if err := rows.Scan(
			&b.Symbol, &ex, &b.Datetime, &ivl,
			&b.Volume, &b.Turnover, &b.OpenInterest,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Gateway,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan bar: %w", err)
		}
		b.Exchange = domain.Exchange(ex)
		b.Interval = domain.Interval(ivl)
		b.Datetime = b.Datetime.In(domain.Shanghai)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load bars rows: %w", err)
	}
	return bars, nil
}

// ListVTSymbols returns every stored "code.EXCHANGE" for interval, sorted.
func (s *BarStore) ListVTSymbols(ctx context.Context, interval domain.Interval) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT symbol, exchange FROM dbbardata WHERE "interval" = $1 ORDER BY symbol, exchange`,
		string(interval),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vt_symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym, ex string
		if err := rows.Scan(&sym, &ex); err != nil {
			return nil, fmt.Errorf("postgres: scan vt_symbol: %w", err)
		}
		out = append(out, sym+"."+ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list vt_symbols rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.BarStore = (*BarStore)(nil)
