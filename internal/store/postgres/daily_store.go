package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// DailyStore implements domain.DailyStore on the daily_data source table.
type DailyStore struct {
	pool *pgxpool.Pool
}

// NewDailyStore creates a DailyStore backed by the given connection pool.
func NewDailyStore(pool *pgxpool.Pool) *DailyStore {
	return &DailyStore{pool: pool}
}

// ListSymbols returns the distinct codes present, sorted.
func (s *DailyStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM daily_data ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list daily symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("postgres: scan daily symbol: %w", err)
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list daily symbols rows: %w", err)
	}
	return out, nil
}

// Fetch returns the rows of symbol dated on or after startDate, oldest first.
// An empty startDate returns all rows.
func (s *DailyStore) Fetch(ctx context.Context, symbol string, startDate string) ([]domain.DailyRow, error) {
	query := `SELECT symbol, date, open, high, low, close, volume, amount, turnover_rate
		FROM daily_data WHERE symbol = $1`
	args := []any{symbol}
	if startDate != "" {
		start, err := time.Parse(time.DateOnly, startDate)
		if err != nil {
			return nil, fmt.Errorf("postgres: fetch %s: bad start date %q: %w", symbol, startDate, err)
		}
		query += ` AND date >= $2`
		args = append(args, start)
	}
	query += ` ORDER BY date`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch daily %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []domain.DailyRow
	for rows.Next() {
		var (
			r    domain.DailyRow
			date time.Time
		)
		if err := rows.Scan(
			&r.Symbol, &date, &r.Open, &r.High, &r.Low, &r.Close,
			&r.Volume, &r.Amount, &r.TurnoverRate,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan daily row: %w", err)
		}
		r.Date = date.Format(time.DateOnly)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch daily rows: %w", err)
	}
	return out, nil
}

// LatestDate returns the newest stored date of symbol, or "" when there is
// none.
func (s *DailyStore) LatestDate(ctx context.Context, symbol string) (string, error) {
	var d *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(date) FROM daily_data WHERE symbol = $1`, symbol).Scan(&d); err != nil {
		return "", fmt.Errorf("postgres: latest daily date %s: %w", symbol, err)
	}
	if d == nil {
		return "", nil
	}
	return d.Format(time.DateOnly), nil
}

// Upsert writes rows keyed by (symbol, date), replacing existing values.
func (s *DailyStore) Upsert(ctx context.Context, rows []domain.DailyRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO daily_data (symbol, date, open, high, low, close, volume, amount, turnover_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open          = EXCLUDED.open,
			high          = EXCLUDED.high,
			low           = EXCLUDED.low,
			close         = EXCLUDED.close,
			volume        = EXCLUDED.volume,
			amount        = EXCLUDED.amount,
			turnover_rate = EXCLUDED.turnover_rate,
			updated_at    = NOW()`

	batch := &pgx.Batch{}
	for _, r := range rows {
		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return 0, fmt.Errorf("postgres: upsert daily %s: bad date %q: %w", r.Symbol, r.Date, err)
		}
		batch.Queue(query,
			r.Symbol, date, r.Open, r.High, r.Low, r.Close,
			r.Volume, r.Amount, r.TurnoverRate,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for i := range rows {
		tag, err := br.Exec()
		if err != nil {
			return written, fmt.Errorf("postgres: upsert daily batch item %d: %w", i, err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// Compile-time interface check.
var _ domain.DailyStore = (*DailyStore)(nil)
