package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://q:pw@db:5432/quant?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "quant", User: "q", Password: "pw"}))
	require.Equal(t, "postgres://q:pw@db:6543/quant?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "quant", User: "q", Password: "pw", SSLMode: "require"}))
	require.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationsDeclareUpsertKeys(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	sql := string(data)

	require.Contains(t, sql, `ON dbbardata (symbol, exchange, "interval", datetime)`)
	require.Contains(t, sql, "PRIMARY KEY (symbol, date)")
	require.Contains(t, sql, "PRIMARY KEY (run_id, trade_id)")
	require.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS audit_log"))
	require.Contains(t, upsertBarSQL, `ON CONFLICT (symbol, exchange, "interval", datetime) DO UPDATE`)
}
