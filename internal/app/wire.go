package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	localblob "github.com/alanyoungcy/ashare-quant/internal/blob/local"
	s3blob "github.com/alanyoungcy/ashare-quant/internal/blob/s3"
	"github.com/alanyoungcy/ashare-quant/internal/cache/redis"
	"github.com/alanyoungcy/ashare-quant/internal/config"
	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/notify"
	"github.com/alanyoungcy/ashare-quant/internal/store/postgres"
)

// Dependencies bundles the concrete collaborators the modes run on. Optional
// ones (Redis-backed, blob) are nil when not configured or not needed.
type Dependencies struct {
	// Stores
	Bars   domain.BarStore
	Source domain.DailyStore
	Audit  domain.AuditStore
	Trades domain.TradeStore

	// Migrations lists the schema files applied while wiring.
	Migrations []string

	// Caches, nil without Redis.
	Prices  domain.PriceCache
	Locks   domain.LockManager
	Limiter domain.RateLimiter

	// Blob storage for run artifacts.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Notifier *notify.Notifier
}

// needsBlob returns true for modes that read or write run artifacts.
func needsBlob(mode string) bool {
	switch mode {
	case "backtest", "paper", "serve":
		return true
	default:
		return false
	}
}

// Wire builds every dependency the configured mode needs and returns a
// cleanup that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(step string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", step, err)
	}

	mode := strings.ToLower(cfg.Mode)
	migrate := cfg.Postgres.RunMigrations || mode == "migrate"
	deps := &Dependencies{}

	// --- PostgreSQL target ---
	target, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, target.Close)

	if migrate {
		applied, err := target.RunMigrations(ctx)
		if err != nil {
			return fail("postgres migrations", err)
		}
		deps.Migrations = applied
	}

	pool := target.Pool()
	deps.Bars = postgres.NewBarStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)
	deps.Trades = postgres.NewTradeStore(pool)
	deps.Source = postgres.NewDailyStore(pool)

	// --- PostgreSQL source, when daily_data lives elsewhere ---
	if strings.TrimSpace(cfg.Source.DSN) != "" {
		source, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Source.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
		})
		if err != nil {
			return fail("postgres source", err)
		}
		closers = append(closers, source.Close)
		if migrate {
			if _, err := source.RunMigrations(ctx); err != nil {
				return fail("postgres source migrations", err)
			}
		}
		deps.Source = postgres.NewDailyStore(source.Pool())
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Prices = redis.NewPriceCache(rc, cfg.Redis.MarkTTL.Duration)
		deps.Locks = redis.NewLockManager(rc)
		deps.Limiter = redis.NewRateLimiter(rc, cfg.Collector.RateLimit, time.Minute)
	}

	// --- Blob storage ---
	if needsBlob(mode) {
		switch cfg.Output.Backend {
		case config.BackendS3:
			sc, err := s3blob.New(ctx, s3blob.ClientConfig{
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
				Bucket:         cfg.S3.Bucket,
				AccessKey:      cfg.S3.AccessKey,
				SecretKey:      cfg.S3.SecretKey,
				Prefix:         cfg.S3.Prefix,
				UseSSL:         cfg.S3.UseSSL,
				ForcePathStyle: cfg.S3.ForcePathStyle,
			})
			if err != nil {
				return fail("s3", err)
			}
			closers = append(closers, func() { _ = sc.Close() })
			deps.BlobWriter = s3blob.NewWriter(sc)
			deps.BlobReader = s3blob.NewReader(sc)
		default:
			store, err := localblob.New(cfg.Output.Dir)
			if err != nil {
				return fail("local output", err)
			}
			deps.BlobWriter = store
			deps.BlobReader = store
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
