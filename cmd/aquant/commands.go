package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/ashare-quant/internal/config"
	"github.com/alanyoungcy/ashare-quant/internal/strategy"
)

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "migrate", nil)
		},
	}
}

func collectCmd(g *globalFlags) *cobra.Command {
	var (
		symbols, start, end, adjust string
		delay                       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch daily klines from EastMoney into the source table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "collect", func(cfg *config.Config) error {
				f := cmd.Flags()
				if f.Changed("symbols") {
					cfg.Collector.Symbols = config.SplitList(symbols)
				}
				if f.Changed("start") {
					cfg.Collector.Start = start
				}
				if f.Changed("end") {
					cfg.Collector.End = end
				}
				if f.Changed("adjust") {
					cfg.Collector.Adjust = adjust
				}
				if f.Changed("delay") {
					cfg.Collector.Delay.Duration = delay
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&symbols, "symbols", "s", "", "comma separated codes (default: built-in list)")
	f.StringVar(&start, "start", "", "first date for symbols with no stored rows (YYYY-MM-DD)")
	f.StringVar(&end, "end", "", "last date (default: today)")
	f.StringVar(&adjust, "adjust", "", "price adjustment: none, qfq, hfq")
	f.DurationVar(&delay, "delay", 0, "pause between provider calls")
	return cmd
}

func importCmd(g *globalFlags) *cobra.Command {
	var sym, unit string
	cmd := &cobra.Command{
		Use:   "import [file.csv ...]",
		Short: "Load CSV files of daily bars into the dbbardata bar store",
		Long: `Load CSV files with date, open, high, low, close, volume and optional
amount columns. Each file's base name is its symbol (600519.SH.csv) unless
--symbol names the symbol of a single file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "import", func(cfg *config.Config) error {
				if len(args) > 0 {
					cfg.Import.Files = args
				}
				if cmd.Flags().Changed("symbol") {
					cfg.Import.Symbol = sym
				}
				if cmd.Flags().Changed("volume-unit") {
					cfg.Import.VolumeUnit = unit
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sym, "symbol", "", "symbol of a single imported file")
	cmd.Flags().StringVar(&unit, "volume-unit", "", "unit of file volumes: share or lot")
	return cmd
}

func syncCmd(g *globalFlags) *cobra.Command {
	var (
		symbols, mode, unit string
		limit               int
		verify              bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge daily_data into the dbbardata bar store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "sync", func(cfg *config.Config) error {
				f := cmd.Flags()
				if f.Changed("symbols") {
					cfg.Sync.Symbols = config.SplitList(symbols)
				}
				if f.Changed("mode") {
					cfg.Sync.Mode = mode
				}
				if f.Changed("volume-unit") {
					cfg.Sync.VolumeUnit = unit
				}
				if f.Changed("limit") {
					cfg.Sync.Limit = limit
				}
				if f.Changed("verify") {
					cfg.Sync.Verify = verify
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&symbols, "symbols", "s", "", "comma separated symbols (default: every source symbol)")
	f.StringVarP(&mode, "mode", "m", "", "full or incremental")
	f.StringVar(&unit, "volume-unit", "", "unit of source volumes: share or lot")
	f.IntVarP(&limit, "limit", "n", 0, "sync at most n symbols")
	f.BoolVar(&verify, "verify", true, "print per-symbol bar counts afterwards")
	return cmd
}

func verifyCmd(g *globalFlags) *cobra.Command {
	var symbols string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Print stored bar counts per vt_symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "verify", symbolsOverride(cmd, &symbols))
		},
	}
	cmd.Flags().StringVarP(&symbols, "symbols", "s", "", "comma separated symbols (default: all stored)")
	return cmd
}

func validateCmd(g *globalFlags) *cobra.Command {
	var symbols string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check OHLC integrity of stored bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "validate", symbolsOverride(cmd, &symbols))
		},
	}
	cmd.Flags().StringVarP(&symbols, "symbols", "s", "", "comma separated symbols (default: all stored)")
	return cmd
}

func symbolsOverride(cmd *cobra.Command, symbols *string) func(*config.Config) error {
	return func(cfg *config.Config) error {
		if cmd.Flags().Changed("symbols") {
			cfg.Sync.Symbols = config.SplitList(*symbols)
		}
		return nil
	}
}

// runFlags are shared by backtest and paper.
type runFlags struct {
	strategy, vtSymbol, start, end string
	capital                        float64
	allowShort                     bool
	settings                       []string
}

func (r *runFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&r.strategy, "strategy", "", "strategy name (see aquant strategies)")
	f.StringVar(&r.vtSymbol, "vt-symbol", "", "symbol to trade, e.g. 600519.SSE")
	f.StringVar(&r.start, "start", "", "first bar date (YYYY-MM-DD)")
	f.StringVar(&r.end, "end", "", "last bar date (YYYY-MM-DD)")
	f.Float64Var(&r.capital, "capital", 0, "initial capital")
	f.BoolVar(&r.allowShort, "allow-short", false, "allow sells beyond the long position")
	f.StringArrayVar(&r.settings, "set", nil, "strategy parameter key=value, repeatable (e.g. --set fast_window=5)")
}

func (r *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("strategy") {
		cfg.Strategy.Name = r.strategy
	}
	if f.Changed("vt-symbol") {
		cfg.Strategy.VTSymbol = r.vtSymbol
	}
	if f.Changed("start") {
		cfg.Strategy.Start = r.start
	}
	if f.Changed("end") {
		cfg.Strategy.End = r.end
	}
	settings, err := parseSettings(r.settings)
	if err != nil {
		return err
	}
	return strategy.ApplySettings(&cfg.Strategy.Params, cfg.Strategy.Name, settings)
}

// parseSettings turns key=value pairs into typed values: integers, then
// floats, then booleans, otherwise strings.
func parseSettings(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", p)
		}
		v = strings.TrimSpace(v)
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
		} else if x, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = x
		} else if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func backtestCmd(g *globalFlags) *cobra.Command {
	r := &runFlags{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a strategy over stored daily bars and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "backtest", func(cfg *config.Config) error {
				if cmd.Flags().Changed("capital") {
					cfg.Backtest.InitialCapital = r.capital
				}
				if cmd.Flags().Changed("allow-short") {
					cfg.Backtest.AllowShort = r.allowShort
				}
				return r.apply(cmd, cfg)
			})
		},
	}
	r.register(cmd)
	return cmd
}

func paperCmd(g *globalFlags) *cobra.Command {
	r := &runFlags{}
	var (
		interval time.Duration
		serve    bool
		port     int
	)
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Replay stored bars through a paper trading session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "paper", func(cfg *config.Config) error {
				f := cmd.Flags()
				if f.Changed("capital") {
					cfg.Paper.InitialCapital = r.capital
				}
				if f.Changed("allow-short") {
					cfg.Paper.AllowShort = r.allowShort
				}
				if f.Changed("interval") {
					cfg.Paper.Interval.Duration = interval
				}
				if f.Changed("serve") {
					cfg.Server.Enabled = serve
				}
				if f.Changed("port") {
					cfg.Server.Port = port
				}
				return r.apply(cmd, cfg)
			})
		},
	}
	r.register(cmd)
	f := cmd.Flags()
	f.DurationVar(&interval, "interval", 0, "pause between replayed bars")
	f.BoolVar(&serve, "serve", false, "expose the session on the monitoring API until interrupted")
	f.IntVar(&port, "port", 0, "monitoring API port")
	return cmd
}

func serveCmd(g *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring API over stored bars, audit log and artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(g, "serve", func(cfg *config.Config) error {
				if cmd.Flags().Changed("port") {
					cfg.Server.Port = port
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	return cmd
}
