package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults(), loads .env, and applies
// AQUANT_* environment overrides. An empty path skips the file. Keys the
// file sets that no field declares are rejected, so a misspelled strategy
// parameter fails here instead of being silently ignored. The returned
// Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose AQUANT_* variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AQUANT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "AQUANT_TARGET_DSN")
	setStr(&cfg.Postgres.Host, "AQUANT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AQUANT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AQUANT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AQUANT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AQUANT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AQUANT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AQUANT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AQUANT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AQUANT_POSTGRES_RUN_MIGRATIONS")

	// ── Source ──
	setStr(&cfg.Source.DSN, "AQUANT_SOURCE_DSN")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AQUANT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AQUANT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AQUANT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AQUANT_REDIS_DB")
	setStr(&cfg.Redis.KeyPrefix, "AQUANT_REDIS_KEY_PREFIX")
	setBool(&cfg.Redis.TLSEnabled, "AQUANT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AQUANT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AQUANT_S3_REGION")
	setStr(&cfg.S3.Bucket, "AQUANT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AQUANT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AQUANT_S3_SECRET_KEY")
	setStr(&cfg.S3.Prefix, "AQUANT_S3_PREFIX")
	setBool(&cfg.S3.UseSSL, "AQUANT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AQUANT_S3_FORCE_PATH_STYLE")

	// ── Output ──
	setStr(&cfg.Output.Backend, "AQUANT_OUTPUT_BACKEND")
	setStr(&cfg.Output.Dir, "AQUANT_OUTPUT_DIR")

	// ── Sync ──
	setStr(&cfg.Sync.Mode, "AQUANT_SYNC_MODE")
	setStr(&cfg.Sync.VolumeUnit, "AQUANT_SYNC_VOLUME_UNIT")
	setStringSlice(&cfg.Sync.Symbols, "AQUANT_SYNC_SYMBOLS")
	setInt(&cfg.Sync.Limit, "AQUANT_SYNC_LIMIT")
	setDuration(&cfg.Sync.LockTTL, "AQUANT_SYNC_LOCK_TTL")
	setStringSlice(&cfg.Import.Files, "AQUANT_IMPORT_FILES")
	setStr(&cfg.Import.Symbol, "AQUANT_IMPORT_SYMBOL")
	setStr(&cfg.Import.VolumeUnit, "AQUANT_IMPORT_VOLUME_UNIT")

	// ── Collector ──
	setStr(&cfg.Collector.BaseURL, "AQUANT_COLLECTOR_BASE_URL")
	setStringSlice(&cfg.Collector.Symbols, "AQUANT_COLLECTOR_SYMBOLS")
	setStr(&cfg.Collector.Start, "AQUANT_COLLECTOR_START")
	setStr(&cfg.Collector.End, "AQUANT_COLLECTOR_END")
	setDuration(&cfg.Collector.Delay, "AQUANT_COLLECTOR_DELAY")
	setStr(&cfg.Collector.Adjust, "AQUANT_COLLECTOR_ADJUST")
	setInt(&cfg.Collector.RateLimit, "AQUANT_COLLECTOR_RATE_LIMIT")

	// ── Backtest / paper ──
	setFloat64(&cfg.Backtest.InitialCapital, "AQUANT_BACKTEST_INITIAL_CAPITAL")
	setFloat64(&cfg.Paper.InitialCapital, "AQUANT_PAPER_INITIAL_CAPITAL")
	setDuration(&cfg.Paper.Interval, "AQUANT_PAPER_INTERVAL")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "AQUANT_STRATEGY_NAME")
	setStr(&cfg.Strategy.VTSymbol, "AQUANT_STRATEGY_VT_SYMBOL")
	setStr(&cfg.Strategy.Start, "AQUANT_STRATEGY_START")
	setStr(&cfg.Strategy.End, "AQUANT_STRATEGY_END")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AQUANT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AQUANT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "AQUANT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AQUANT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AQUANT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AQUANT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AQUANT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AQUANT_MODE")
	setStr(&cfg.LogLevel, "AQUANT_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		if parts := SplitList(v); len(parts) > 0 {
			*dst = parts
		}
	}
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
