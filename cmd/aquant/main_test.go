package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/config"
	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"warn\"\n"), 0o600))

	g := &globalFlags{configPath: path, targetDSN: "postgres://u@h/db"}
	cfg, err := loadConfig(g, "sync", func(c *config.Config) error {
		c.Sync.Mode = "full"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "sync", cfg.Mode)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "postgres://u@h/db", cfg.Postgres.DSN)
	require.Equal(t, "full", cfg.Sync.Mode)
}

func TestLoadConfigValidates(t *testing.T) {
	g := &globalFlags{}
	_, err := loadConfig(g, "backtest", func(c *config.Config) error {
		c.Strategy.Name = "martingale"
		return nil
	})
	require.ErrorContains(t, err, `unknown name "martingale"`)
}

func TestStrategiesCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"strategies"})
	require.NoError(t, root.Execute())
	require.Equal(t, []string{"bollinger", "double_ma", "macd", "rsi"}, strings.Fields(out.String()))
}

func TestConfigCommandRedacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[postgres]\npassword = \"hunter2\"\n"), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "--config", path})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), `password = "***"`)
	require.NotContains(t, out.String(), "hunter2")
}

func TestParseSettings(t *testing.T) {
	got, err := parseSettings([]string{"fast_window=5", "dev=2.5", "flag=true", "label = x"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"fast_window": int64(5),
		"dev":         2.5,
		"flag":        true,
		"label":       "x",
	}, got)

	_, err = parseSettings([]string{"fast_window"})
	require.Error(t, err)
}

func TestBacktestSetOverridesStrategyParams(t *testing.T) {
	g := &globalFlags{targetDSN: "postgres://u@h/db"}
	cmd := &cobra.Command{Use: "backtest"}
	r := &runFlags{}
	r.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--strategy", "double_ma", "--set", "fast_window=5", "--set", "slow_window=30"}))

	cfg, err := loadConfig(g, "backtest", func(c *config.Config) error { return r.apply(cmd, c) })
	require.NoError(t, err)
	require.Equal(t, "double_ma", cfg.Strategy.Name)
	require.Equal(t, 5, cfg.Strategy.DoubleMA.FastWindow)
	require.Equal(t, 30, cfg.Strategy.DoubleMA.SlowWindow)

	r.settings = []string{"fast_windw=5"}
	_, err = loadConfig(g, "backtest", func(c *config.Config) error { return r.apply(cmd, c) })
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestImportRequiresFiles(t *testing.T) {
	g := &globalFlags{targetDSN: "postgres://u@h/db"}
	_, err := loadConfig(g, "import", nil)
	require.ErrorContains(t, err, "import: files must not be empty")

	cfg, err := loadConfig(g, "import", func(c *config.Config) error {
		c.Import.Files = []string{"600519.SH.csv"}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "share", cfg.Import.VolumeUnit)
}
