// Package config defines the aquant configuration tree, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/strategy"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then overridden by AQUANT_* environment variables and CLI flags.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Source    SourceConfig    `toml:"source"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Output    OutputConfig    `toml:"output"`
	Sync      SyncConfig      `toml:"sync"`
	Collector CollectorConfig `toml:"collector"`
	Import    ImportConfig    `toml:"import"`
	Backtest  BacktestConfig  `toml:"backtest"`
	Paper     PaperConfig     `toml:"paper"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig is the target database holding dbbardata, the audit log
// and paper trades.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// SourceConfig points at the database holding the raw daily_data table.
// An empty DSN means the source table lives in the target database.
type SourceConfig struct {
	DSN string `toml:"dsn"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; with it
// disabled sync runs unlocked, the collector is unthrottled and paper marks
// are kept in memory only.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	MarkTTL    duration `toml:"mark_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Prefix         string `toml:"prefix"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Output backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// OutputConfig selects where run artifacts are written.
type OutputConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	// ReportPrefix is the artifact path prefix for backtest reports.
	ReportPrefix string `toml:"report_prefix"`
	// PaperPrefix is the artifact path prefix for paper state snapshots.
	PaperPrefix string `toml:"paper_prefix"`
}

// SyncConfig controls source to target synchronisation.
type SyncConfig struct {
	Mode       string   `toml:"mode"`
	VolumeUnit string   `toml:"volume_unit"`
	Symbols    []string `toml:"symbols"`
	Limit      int      `toml:"limit"`
	Verify     bool     `toml:"verify"`
	LockTTL    duration `toml:"lock_ttl"`
}

// ImportConfig loads daily bar CSV files straight into dbbardata. With a
// single file Symbol names it; otherwise each file's base name is its symbol.
type ImportConfig struct {
	Files      []string `toml:"files"`
	Symbol     string   `toml:"symbol"`
	VolumeUnit string   `toml:"volume_unit"`
}

// CollectorConfig controls provider collection into the source table.
type CollectorConfig struct {
	BaseURL string   `toml:"base_url"`
	Symbols []string `toml:"symbols"`
	Start   string   `toml:"start"`
	End     string   `toml:"end"`
	Delay   duration `toml:"delay"`
	Adjust  string   `toml:"adjust"`
	// RateLimit caps provider calls per minute across processes. Zero
	// disables the shared limiter.
	RateLimit int `toml:"rate_limit"`
}

// BacktestConfig holds the backtest fill parameters.
type BacktestConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	CommissionRate float64 `toml:"commission_rate"`
	Slippage       float64 `toml:"slippage"`
	AllowShort     bool    `toml:"allow_short"`
}

// PaperConfig holds the paper trading account and replay parameters.
type PaperConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	CommissionRate float64 `toml:"commission_rate"`
	MinCommission  float64 `toml:"min_commission"`
	FundReserve    float64 `toml:"fund_reserve"`
	AllowShort     bool    `toml:"allow_short"`
	// Interval paces bar replay. Zero replays as fast as possible.
	Interval duration `toml:"interval"`
}

// StrategyConfig selects the strategy and the bar range it runs over. The
// per-strategy sections ([strategy.double_ma] and so on) decode into the
// embedded Params.
type StrategyConfig struct {
	Name     string `toml:"name"`
	VTSymbol string `toml:"vt_symbol"`
	Start    string `toml:"start"`
	End      string `toml:"end"`
	strategy.Params
}

// ServerConfig controls the read-only monitoring API. It runs alongside
// paper mode when enabled and is the whole of serve mode.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
	// RateLimit caps requests per client per minute. Needs Redis.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds run-summary notification channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "30m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the stock values. These match
// config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "vnpy",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "aquant",
			MarkTTL:    duration{24 * time.Hour},
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "aquant-artifacts",
			ForcePathStyle: true,
		},
		Output: OutputConfig{
			Backend:      BackendLocal,
			Dir:          "output",
			ReportPrefix: "backtests",
			PaperPrefix:  "paper",
		},
		Sync: SyncConfig{
			Mode:       "incremental",
			VolumeUnit: "lot",
			Verify:     true,
			LockTTL:    duration{30 * time.Minute},
		},
		Import: ImportConfig{
			VolumeUnit: "share",
		},
		Collector: CollectorConfig{
			BaseURL: "https://push2his.eastmoney.com",
			Start:   "2020-01-01",
			Delay:   duration{time.Second},
			Adjust:  "qfq",
		},
		Backtest: BacktestConfig{
			InitialCapital: 1_000_000,
			CommissionRate: 0.0003,
			Slippage:       0.01,
		},
		Paper: PaperConfig{
			InitialCapital: 100_000,
			CommissionRate: 0.0003,
			MinCommission:  5,
			FundReserve:    0.001,
		},
		Strategy: StrategyConfig{
			Name:     "double_ma",
			VTSymbol: "600519.SSE",
			Params:   strategy.DefaultParams(),
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Notify: NotifyConfig{
			Events: []string{"backtest.completed", "paper.stopped", "run.failed"},
		},
		Mode:     "backtest",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"migrate":  true,
	"collect":  true,
	"import":   true,
	"sync":     true,
	"verify":   true,
	"validate": true,
	"backtest": true,
	"paper":    true,
	"serve":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStrategies = map[string]func(strategy.Params) error{
	"double_ma": func(p strategy.Params) error { return p.DoubleMA.Validate() },
	"macd":      func(p strategy.Params) error { return p.MACD.Validate() },
	"rsi":       func(p strategy.Params) error { return p.RSI.Validate() },
	"bollinger": func(p strategy.Params) error { return p.Bollinger.Validate() },
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: migrate, collect, import, sync, verify, validate, backtest, paper, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be within 0..pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Output
	switch c.Output.Backend {
	case BackendLocal:
		if c.Output.Dir == "" {
			errs = append(errs, "output: dir must not be empty for the local backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for the s3 backend")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty for the s3 backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("output: unknown backend %q (valid: local, s3)", c.Output.Backend))
	}

	// Sync
	switch c.Sync.Mode {
	case "full", "incremental":
	default:
		errs = append(errs, fmt.Sprintf("sync: unknown mode %q (valid: full, incremental)", c.Sync.Mode))
	}
	switch c.Sync.VolumeUnit {
	case "share", "lot":
	default:
		errs = append(errs, fmt.Sprintf("sync: unknown volume_unit %q (valid: share, lot)", c.Sync.VolumeUnit))
	}
	if c.Sync.Limit < 0 {
		errs = append(errs, "sync: limit must be >= 0")
	}
	errs = append(errs, checkSymbols("sync.symbols", c.Sync.Symbols)...)

	// Collector
	errs = append(errs, checkSymbols("collector.symbols", c.Collector.Symbols)...)
	errs = append(errs, checkDate("collector.start", c.Collector.Start)...)
	errs = append(errs, checkDate("collector.end", c.Collector.End)...)
	switch strings.ToLower(c.Collector.Adjust) {
	case "", "none", "qfq", "hfq":
	default:
		errs = append(errs, fmt.Sprintf("collector: unknown adjust %q (valid: none, qfq, hfq)", c.Collector.Adjust))
	}
	if c.Collector.Delay.Duration < 0 {
		errs = append(errs, "collector: delay must be >= 0")
	}
	if c.Collector.RateLimit < 0 {
		errs = append(errs, "collector: rate_limit must be >= 0")
	}

	// Import
	switch c.Import.VolumeUnit {
	case "share", "lot":
	default:
		errs = append(errs, fmt.Sprintf("import: unknown volume_unit %q (valid: share, lot)", c.Import.VolumeUnit))
	}
	if c.Import.Symbol != "" {
		if len(c.Import.Files) > 1 {
			errs = append(errs, "import: symbol can only be set for a single file")
		}
		errs = append(errs, checkSymbols("import.symbol", []string{c.Import.Symbol})...)
	}
	if strings.EqualFold(c.Mode, "import") && len(c.Import.Files) == 0 {
		errs = append(errs, "import: files must not be empty")
	}

	// Backtest
	if c.Backtest.InitialCapital <= 0 {
		errs = append(errs, "backtest: initial_capital must be > 0")
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.Slippage < 0 {
		errs = append(errs, "backtest: commission_rate and slippage must be >= 0")
	}

	// Paper
	if c.Paper.InitialCapital <= 0 {
		errs = append(errs, "paper: initial_capital must be > 0")
	}
	if c.Paper.CommissionRate < 0 || c.Paper.MinCommission < 0 || c.Paper.FundReserve < 0 {
		errs = append(errs, "paper: commission_rate, min_commission and fund_reserve must be >= 0")
	}

	// Strategy
	if check, ok := validStrategies[c.Strategy.Name]; !ok {
		errs = append(errs, fmt.Sprintf("strategy: unknown name %q (valid: bollinger, double_ma, macd, rsi)", c.Strategy.Name))
	} else if err := check(c.Strategy.Params); err != nil {
		errs = append(errs, "strategy: "+err.Error())
	}
	if c.Strategy.VTSymbol != "" {
		if _, err := symbol.Normalize(c.Strategy.VTSymbol); err != nil {
			errs = append(errs, fmt.Sprintf("strategy: vt_symbol %q: %v", c.Strategy.VTSymbol, err))
		}
	}
	errs = append(errs, checkDate("strategy.start", c.Strategy.Start)...)
	errs = append(errs, checkDate("strategy.end", c.Strategy.End)...)

	// Server
	if c.Server.Enabled || strings.EqualFold(c.Mode, "serve") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis.enabled")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkSymbols(field string, syms []string) []string {
	var errs []string
	for _, s := range syms {
		if _, err := symbol.Normalize(s); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid symbol %q", field, s))
		}
	}
	return errs
}

func checkDate(field, v string) []string {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return []string{fmt.Sprintf("%s: %q is not a YYYY-MM-DD date", field, v)}
	}
	return nil
}
