package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "lot", cfg.Sync.VolumeUnit)
	require.Equal(t, 10, cfg.Strategy.DoubleMA.FastWindow)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
mode = "sync"

[sync]
mode = "full"
symbols = ["600519", "000001.SZ"]
lock_ttl = "5m"

[strategy]
name = "rsi"

[strategy.rsi]
period = 6
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "sync", cfg.Mode)
	require.Equal(t, "full", cfg.Sync.Mode)
	require.Equal(t, []string{"600519", "000001.SZ"}, cfg.Sync.Symbols)
	require.Equal(t, 5*time.Minute, cfg.Sync.LockTTL.Duration)
	require.Equal(t, 6, cfg.Strategy.RSI.Period)
	// Unset keys keep their defaults.
	require.Equal(t, 30.0, cfg.Strategy.RSI.Oversold)
	require.Equal(t, "lot", cfg.Sync.VolumeUnit)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[strategy.double_ma]
fast_window = 5
fast_windw = 6
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "strategy.double_ma.fast_windw")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AQUANT_TARGET_DSN", "postgres://u:p@db:5432/vnpy")
	t.Setenv("AQUANT_SYNC_SYMBOLS", "600519, 000001 ,")
	t.Setenv("AQUANT_COLLECTOR_DELAY", "250ms")
	t.Setenv("AQUANT_MODE", "collect")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@db:5432/vnpy", cfg.Postgres.DSN)
	require.Equal(t, []string{"600519", "000001"}, cfg.Sync.Symbols)
	require.Equal(t, 250*time.Millisecond, cfg.Collector.Delay.Duration)
	require.Equal(t, "collect", cfg.Mode)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Sync.VolumeUnit = "board"
	cfg.Output.Backend = "ftp"
	cfg.Collector.Symbols = []string{"12345"}
	cfg.Strategy.DoubleMA.SlowWindow = 5
	cfg.Strategy.Start = "2024/01/01"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown volume_unit "board"`,
		`unknown backend "ftp"`,
		`collector.symbols: invalid symbol "12345"`,
		"double_ma.slow_window",
		"strategy.start",
	} {
		require.Contains(t, msg, want)
	}
}

func TestValidateS3Backend(t *testing.T) {
	cfg := Defaults()
	cfg.Output.Backend = BackendS3
	cfg.S3.Bucket = ""
	require.ErrorContains(t, cfg.Validate(), "s3: bucket")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.S3.SecretKey = "secret"
	cfg.Sync.Symbols = []string{"600519"}

	out := RedactedConfig(&cfg)
	require.Equal(t, "***", out.Postgres.Password)
	require.Equal(t, "***", out.S3.SecretKey)
	require.Empty(t, out.S3.AccessKey)

	out.Sync.Symbols[0] = "000001"
	require.Equal(t, "600519", cfg.Sync.Symbols[0])
	require.Equal(t, "hunter2", cfg.Postgres.Password)
}
