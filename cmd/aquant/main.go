// Command aquant is the entry point of the A-share research stack: it
// collects daily bars, syncs them into the bar store, and runs backtests
// and paper sessions over them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/ashare-quant/internal/app"
	"github.com/alanyoungcy/ashare-quant/internal/config"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

var version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	targetDSN  string
	sourceDSN  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "aquant",
		Short:         "A-share daily bar pipeline, backtester and paper trader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to TOML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.targetDSN, "target-dsn", "", "PostgreSQL DSN of the bar store")
	pf.StringVar(&g.sourceDSN, "source-dsn", "", "PostgreSQL DSN of the daily_data source, if separate")

	root.AddCommand(
		migrateCmd(g),
		collectCmd(g),
		importCmd(g),
		syncCmd(g),
		verifyCmd(g),
		validateCmd(g),
		backtestCmd(g),
		paperCmd(g),
		serveCmd(g),
		configCmd(g),
		strategiesCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig loads the file, applies global and command overrides, and
// validates the result.
func loadConfig(g *globalFlags, mode string, override func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.targetDSN != "" {
		cfg.Postgres.DSN = g.targetDSN
	}
	if g.sourceDSN != "" {
		cfg.Source.DSN = g.sourceDSN
	}
	if override != nil {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run executes one mode with signal-driven shutdown.
func run(g *globalFlags, mode string, override func(*config.Config) error) error {
	cfg, err := loadConfig(g, mode, override)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("aquant starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", g.configPath),
		slog.String("version", version),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
			return nil
		}
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("aquant stopped", slog.String("mode", cfg.Mode))
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func configCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			redacted := config.RedactedConfig(cfg)
			if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(redacted); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
}

func strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the registered strategies",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range strategy.DefaultRegistry().List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aquant version %s\n", version)
		},
	}
}
