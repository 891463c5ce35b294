package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// TradeStore implements domain.TradeStore on the paper_trades table.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// InsertBatch inserts fills using a pgx Batch. Fills already stored for the
// same run and trade ID are skipped.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	const query = `
		INSERT INTO paper_trades (
			run_id, trade_id, order_id, vt_symbol, direction,
			price, volume, commission, traded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, trade_id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query,
			t.RunID, t.ID, t.OrderID, t.VTSymbol, string(t.Direction),
			t.Price, t.Volume, t.Commission, t.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByRun returns the fills of a run in execution order.
func (s *TradeStore) ListByRun(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trade_id, order_id, run_id, vt_symbol, direction, price, volume, commission, traded_at
		FROM paper_trades WHERE run_id = $1 ORDER BY traded_at, trade_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t   domain.Trade
			dir string
		)
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.RunID, &t.VTSymbol, &dir,
			&t.Price, &t.Volume, &t.Commission, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Direction = domain.Direction(dir)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades rows: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
