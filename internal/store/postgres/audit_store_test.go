package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

func TestAuditListQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		q         domain.AuditQuery
		wantWhere string
		wantTail  string
		wantArgs  []any
	}{
		{
			name:     "unfiltered",
			q:        domain.AuditQuery{},
			wantTail: "FROM audit_log ORDER BY created_at DESC, id DESC",
		},
		{
			name:      "by event with limit",
			q:         domain.AuditQuery{Event: "backtest.completed", ListOpts: domain.ListOpts{Limit: 10}},
			wantWhere: "WHERE event = $1",
			wantTail:  "LIMIT $2",
			wantArgs:  []any{"backtest.completed", 10},
		},
		{
			name:      "by event run and time",
			q:         domain.AuditQuery{Event: "paper.stopped", RunID: "r1", ListOpts: domain.ListOpts{Since: &since, Offset: 5}},
			wantWhere: "WHERE event = $1 AND run_id = $2 AND created_at >= $3",
			wantTail:  "OFFSET $4",
			wantArgs:  []any{"paper.stopped", "r1", since, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := auditListQuery(tt.q)
			require.Contains(t, query, "SELECT id, event, run_id, detail, created_at")
			if tt.wantWhere == "" {
				require.NotContains(t, query, "WHERE")
			} else {
				require.Contains(t, query, tt.wantWhere)
			}
			require.Contains(t, query, tt.wantTail)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestMigrationsDeclareAuditRunID(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	require.Contains(t, string(data), "run_id     TEXT,")
	require.Contains(t, insertAuditSQL, "NULLIF($2, '')")
}
