package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/polyarb/internal/blob/s3"
	"github.com/alanyoungcy/polyarb/internal/cache/redis"
	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/metrics"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/platform/goldsky"
	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/store/postgres"
)

// Dependencies bundles the concrete collaborators the modes need. Backends
// disabled in config leave their fields nil.
type Dependencies struct {
	Metrics *metrics.Metrics

	Gamma   *polymarket.GammaClient
	Goldsky *goldsky.Client

	// Nil unless postgres is enabled.
	MarketStore      domain.MarketStore
	OpportunityStore domain.OpportunityStore
	RelationStore    domain.RelationStore
	WalletStore      domain.WalletStore

	// Nil unless redis is enabled.
	PriceCache  domain.PriceCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	Notifier *notify.Notifier

	// HealthChecks probe every connected backend for GET /api/health.
	HealthChecks map[string]handler.Check
}

// wireStep connects one backend into deps. The returned closer may be nil.
type wireStep struct {
	name    string
	enabled func(*config.Config) bool
	run     func(context.Context, *config.Config, *Dependencies) (func(), error)
}

var wireSteps = []wireStep{
	{"postgres", func(c *config.Config) bool { return c.Postgres.Enabled }, wirePostgres},
	{"redis", func(c *config.Config) bool { return c.Redis.Enabled }, wireRedis},
	// After postgres so the archiver can read the opportunity log.
	{"s3", func(c *config.Config) bool { return c.S3.Enabled }, wireS3},
}

// Wire connects every enabled backend. The cleanup func releases them in
// reverse order; on error everything opened so far is already released.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Metrics:      metrics.New(cfg.Metrics.Namespace),
		Gamma:        polymarket.NewGammaClient(cfg.Polymarket.GammaURL),
		HealthChecks: make(map[string]handler.Check),
	}
	if cfg.Goldsky.URL != "" {
		gs := goldsky.NewClient(cfg.Goldsky.URL, cfg.Goldsky.APIKey)
		deps.Goldsky = gs
		deps.HealthChecks["goldsky"] = func(ctx context.Context) error {
			_, err := gs.FetchLatestBlock(ctx)
			return err
		}
	}

	var closers []func()
	cleanup := func() {
		for _, c := range slices.Backward(closers) {
			c()
		}
	}
	for _, step := range wireSteps {
		if !step.enabled(cfg) {
			continue
		}
		closer, err := step.run(ctx, cfg, deps)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %s: %w", step.name, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		logger.DebugContext(ctx, "backend wired", slog.String("backend", step.name))
	}

	deps.Notifier = newNotifier(ctx, cfg.Notify, logger)
	return deps, cleanup, nil
}

func wirePostgres(ctx context.Context, cfg *config.Config, deps *Dependencies) (func(), error) {
	pg := cfg.Postgres
	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      pg.DSN,
		Host:     pg.Host,
		Port:     pg.Port,
		Database: pg.Database,
		User:     pg.User,
		Password: pg.Password,
		SSLMode:  pg.SSLMode,
		MaxConns: pg.PoolMaxConns,
		MinConns: pg.PoolMinConns,
	})
	if err != nil {
		return nil, err
	}
	if pg.RunMigrations {
		if err := client.RunMigrations(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}
	pool := client.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.OpportunityStore = postgres.NewOpportunityStore(pool)
	deps.RelationStore = postgres.NewRelationStore(pool)
	deps.WalletStore = postgres.NewWalletStore(pool)
	deps.HealthChecks["postgres"] = client.Ping
	return client.Close, nil
}

func wireRedis(ctx context.Context, cfg *config.Config, deps *Dependencies) (func(), error) {
	rc := cfg.Redis
	client, err := redis.New(ctx, redis.ClientConfig{
		Addr:       rc.Addr,
		Password:   rc.Password,
		DB:         rc.DB,
		PoolSize:   rc.PoolSize,
		MaxRetries: rc.MaxRetries,
		TLSEnabled: rc.TLSEnabled,
	})
	if err != nil {
		return nil, err
	}
	deps.PriceCache = redis.NewPriceCache(client, rc.PriceTTL.Duration)
	deps.LockManager = redis.NewLockManager(client)
	deps.SignalBus = redis.NewSignalBus(client)

	gamma := cfg.Polymarket
	limiter := redis.NewRateLimiter(client, gamma.GammaRateLimit, gamma.GammaRateWindow.Duration)
	deps.RateLimiter = limiter
	if gamma.GammaRateLimit > 0 {
		deps.Gamma.SetRateLimiter(limiter)
	}
	deps.HealthChecks["redis"] = client.Ping
	return func() { _ = client.Close() }, nil
}

func wireS3(ctx context.Context, cfg *config.Config, deps *Dependencies) (func(), error) {
	sc := cfg.S3
	client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       sc.Endpoint,
		Region:         sc.Region,
		Bucket:         sc.Bucket,
		AccessKey:      sc.AccessKey,
		SecretKey:      sc.SecretKey,
		UseSSL:         sc.UseSSL,
		ForcePathStyle: sc.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	deps.BlobWriter = s3blob.NewWriter(client)
	var opps s3blob.OpportunityLister
	if deps.OpportunityStore != nil {
		opps = deps.OpportunityStore
	}
	deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, opps)
	deps.HealthChecks["s3"] = client.Health
	return nil, nil
}

// newNotifier always returns a Notifier; with no usable channel it drops
// every alert. A bad Telegram token only disables Telegram.
func newNotifier(ctx context.Context, nc config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if nc.TelegramToken != "" && nc.TelegramChatID != "" {
		tg, err := notify.NewTelegramSender(notify.TelegramConfig{Token: nc.TelegramToken, ChatID: nc.TelegramChatID})
		if err != nil {
			logger.WarnContext(ctx, "telegram notifications disabled", slog.String("error", err.Error()))
		} else {
			senders = append(senders, tg)
		}
	}
	if nc.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(nc.DiscordWebhookURL))
	}
	n := notify.NewNotifier(senders, nc.Events, logger)
	n.SetMinProfit(decimal.NewFromFloat(nc.MinProfit))
	n.SetCooldown(nc.Cooldown.Duration)
	return n
}
