package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// AuditStore records run summaries in audit_log. The run ID is kept in its
// own column so one run's entries can be looked up without scanning JSON.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore on pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

const insertAuditSQL = `INSERT INTO audit_log (event, run_id, detail) VALUES ($1, NULLIF($2, ''), $3)`

// Log appends summary under event.
func (s *AuditStore) Log(ctx context.Context, event string, summary domain.RunSummary) error {
	if event == "" {
		return fmt.Errorf("postgres: audit: empty event")
	}
	detail, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("postgres: audit %s: marshal: %w", event, err)
	}
	if _, err := s.pool.Exec(ctx, insertAuditSQL, event, summary.RunID, detail); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

// List returns entries matching q, newest first.
func (s *AuditStore) List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	query, args := auditListQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e      domain.AuditEntry
			runID  *string
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &runID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit: %w", err)
		}
		if runID != nil {
			e.RunID = *runID
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Summary); err != nil {
				return nil, fmt.Errorf("postgres: audit %d: decode detail: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	return entries, nil
}

// auditListQuery builds the filtered listing with positional arguments in
// the order the clauses appear.
func auditListQuery(q domain.AuditQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q.Event != "" {
		add("event = $%d", q.Event)
	}
	if q.RunID != "" {
		add("run_id = $%d", q.RunID)
	}
	if q.Since != nil {
		add("created_at >= $%d", *q.Since)
	}
	if q.Until != nil {
		add("created_at <= $%d", *q.Until)
	}

	var b strings.Builder
	b.WriteString("SELECT id, event, run_id, detail, created_at FROM audit_log")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

var _ domain.AuditStore = (*AuditStore)(nil)
