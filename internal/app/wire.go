package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/grifflabs/marketpulse/internal/blob/s3"
	"github.com/grifflabs/marketpulse/internal/cache/redis"
	"github.com/grifflabs/marketpulse/internal/config"
	"github.com/grifflabs/marketpulse/internal/domain"
	"github.com/grifflabs/marketpulse/internal/engine"
	"github.com/grifflabs/marketpulse/internal/notify"
	"github.com/grifflabs/marketpulse/internal/pipeline"
	"github.com/grifflabs/marketpulse/internal/platform/polymarket"
	"github.com/grifflabs/marketpulse/internal/store/postgres"
)

// Dependencies bundles everything the application modes operate on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Snapshots domain.SnapshotStore
	Baselines domain.BaselineStore
	Ledger    domain.LedgerStore

	// Redis
	Locks  domain.LockManager
	Status domain.StatusCache

	// Upstream
	Fetcher domain.ListingsFetcher

	// Blob storage, nil unless the archive is enabled.
	Archiver pipeline.SnapshotArchiver

	// Engine
	Cycle    *engine.Cycle
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Snapshots = postgres.NewSnapshotStore(pool)
	deps.Baselines = postgres.NewBaselineStore(pool)
	deps.Ledger = postgres.NewLedgerStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Locks = redis.NewLockManager(redisClient)
	deps.Status = redis.NewStatusCache(redisClient)

	// --- Upstream ---
	deps.Fetcher = polymarket.NewGammaClient(cfg.Upstream.GammaHost, cfg.Upstream.PageSize)

	// --- S3 snapshot archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	// --- Cycle ---
	deps.Cycle = engine.NewCycle(engine.CycleDeps{
		Log:        logger,
		Fetcher:    deps.Fetcher,
		Snapshots:  deps.Snapshots,
		Baselines:  deps.Baselines,
		Ledger:     deps.Ledger,
		Status:     deps.Status,
		Deliverer:  deps.Notifier,
		Filter:     engine.NewFilter(cfg.Engine),
		Detectors:  engine.NewDetectors(cfg.Detectors),
		Resolver:   engine.NewResolver(deps.Ledger, cfg.Dedup),
		ScanTarget: cfg.Upstream.ScanTarget,
		Recipients: cfg.RecipientIDs(),
	})

	return deps, cleanup, nil
}
