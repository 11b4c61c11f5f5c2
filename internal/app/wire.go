package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/FilipeRosar/oddsscanner/internal/blob/s3"
	"github.com/FilipeRosar/oddsscanner/internal/cache/redis"
	"github.com/FilipeRosar/oddsscanner/internal/config"
	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/notify"
	"github.com/FilipeRosar/oddsscanner/internal/server/handler"
	"github.com/FilipeRosar/oddsscanner/internal/store/postgres"
)

// Dependencies bundles the infrastructure adapters the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Catalog     *postgres.CatalogStore
	Subscribers domain.SubscriberStore

	// Caches
	MatchCache  domain.MatchCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage. Nil unless s3.enabled.
	FeedArchiver domain.FeedArchiver

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks probe every backing service for GET /api/health.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.HealthChecks["postgres"] = pgClient.Ping

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Catalog = postgres.NewCatalogStore(pool, cfg.Supabase.HistoryDepth)
	deps.Subscribers = postgres.NewSubscriberStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		URL:        cfg.Redis.URL,
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
	deps.HealthChecks["redis"] = redisClient.Ping

	cacheTTL := time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
	deps.MatchCache = redis.NewMatchCache(redisClient, cacheTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 feed archive (optional) ---
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
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.HealthChecks["s3"] = s3Client.Health
		deps.FeedArchiver = s3blob.NewFeedArchiver(s3blob.NewWriter(s3Client), cfg.S3.SnapshotPrefix)
	}

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(buildSenders(cfg.Notify, deps.Subscribers), cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// buildSenders returns one sender per configured channel.
func buildSenders(cfg config.NotifyConfig, subscribers notify.RecipientLister) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if cfg.OneSignalAppID != "" && cfg.OneSignalAPIKey != "" {
		senders = append(senders, notify.NewOneSignalSender(cfg.OneSignalAppID, cfg.OneSignalAPIKey, cfg.OneSignalIconURL))
	}
	if cfg.ResendAPIKey != "" {
		senders = append(senders, notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, subscribers))
	}
	return senders
}
