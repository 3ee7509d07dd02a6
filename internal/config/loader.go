package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds a Config from Defaults, the TOML file at path (skipped when
// empty), a .env file in the working directory if one exists, and POLYARB_*
// variables, in that order of precedence. Call Validate on the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// godotenv never overwrites variables already in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return &cfg, nil
}

// binding ties one environment variable to a Config field.
type binding struct {
	key string
	set func(string) error
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func parsed[T any](dst *T, parse func(string) (T, error)) func(string) error {
	return func(v string) error {
		x, err := parse(v)
		if err != nil {
			return err
		}
		*dst = x
		return nil
	}
}

func num(dst *int) func(string) error { return parsed(dst, strconv.Atoi) }

func flag(dst *bool) func(string) error { return parsed(dst, strconv.ParseBool) }

func float(dst *float64) func(string) error {
	return parsed(dst, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func dec(dst *decimalValue) func(string) error {
	return func(v string) error { return dst.UnmarshalText([]byte(v)) }
}

func dur(dst *duration) func(string) error {
	return parsed(&dst.Duration, time.ParseDuration)
}

// list splits a comma separated value. Blank items are dropped and an
// all-blank value leaves dst untouched.
func list(dst *[]string) func(string) error {
	return func(v string) error {
		var items []string
		for item := range strings.SplitSeq(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			*dst = items
		}
		return nil
	}
}

func envBindings(c *Config) []binding {
	return []binding{
		{"POLYARB_POLYMARKET_GAMMA_URL", str(&c.Polymarket.GammaURL)},
		{"POLYARB_POLYMARKET_WS_URL", str(&c.Polymarket.WSURL)},
		{"POLYARB_POLYMARKET_PAGE_SIZE", num(&c.Polymarket.PageSize)},
		{"POLYARB_POLYMARKET_MAX_EVENTS", num(&c.Polymarket.MaxEvents)},
		{"POLYARB_POLYMARKET_GAMMA_RATE_LIMIT", num(&c.Polymarket.GammaRateLimit)},
		{"POLYARB_POLYMARKET_GAMMA_RATE_WINDOW", dur(&c.Polymarket.GammaRateWindow)},

		{"POLYARB_GOLDSKY_URL", str(&c.Goldsky.URL)},
		{"POLYARB_GOLDSKY_API_KEY", str(&c.Goldsky.APIKey)},
		{"POLYARB_GOLDSKY_INTERVAL", dur(&c.Goldsky.Interval)},
		{"POLYARB_GOLDSKY_LOOKBACK", dur(&c.Goldsky.Lookback)},
		{"POLYARB_GOLDSKY_FETCH_LIMIT", num(&c.Goldsky.FetchLimit)},

		{"POLYARB_ENGINE_FEE_TOLERANCE", dec(&c.Engine.FeeTolerance)},
		{"POLYARB_ENGINE_SIMILARITY_THRESHOLD", float(&c.Engine.SimilarityThreshold)},
		{"POLYARB_ENGINE_TRADE_SIZE", dec(&c.Engine.TradeSize)},
		{"POLYARB_ENGINE_DEDUP_TTL", dur(&c.Engine.DedupTTL)},

		{"POLYARB_STREAM_HEARTBEAT_INTERVAL", dur(&c.Stream.HeartbeatInterval)},
		{"POLYARB_STREAM_LOCK_TTL", dur(&c.Stream.LockTTL)},

		{"POLYARB_POSTGRES_ENABLED", flag(&c.Postgres.Enabled)},
		// DATABASE_URL is what most hosting platforms export.
		{"DATABASE_URL", str(&c.Postgres.DSN)},
		{"POLYARB_POSTGRES_DSN", str(&c.Postgres.DSN)},
		{"POLYARB_POSTGRES_HOST", str(&c.Postgres.Host)},
		{"POLYARB_POSTGRES_PORT", num(&c.Postgres.Port)},
		{"POLYARB_POSTGRES_DATABASE", str(&c.Postgres.Database)},
		{"POLYARB_POSTGRES_USER", str(&c.Postgres.User)},
		{"POLYARB_POSTGRES_PASSWORD", str(&c.Postgres.Password)},
		{"POLYARB_POSTGRES_SSL_MODE", str(&c.Postgres.SSLMode)},
		{"POLYARB_POSTGRES_POOL_MAX_CONNS", num(&c.Postgres.PoolMaxConns)},
		{"POLYARB_POSTGRES_POOL_MIN_CONNS", num(&c.Postgres.PoolMinConns)},
		{"POLYARB_POSTGRES_RUN_MIGRATIONS", flag(&c.Postgres.RunMigrations)},

		{"POLYARB_REDIS_ENABLED", flag(&c.Redis.Enabled)},
		{"POLYARB_REDIS_ADDR", str(&c.Redis.Addr)},
		{"POLYARB_REDIS_PASSWORD", str(&c.Redis.Password)},
		{"POLYARB_REDIS_DB", num(&c.Redis.DB)},
		{"POLYARB_REDIS_POOL_SIZE", num(&c.Redis.PoolSize)},
		{"POLYARB_REDIS_MAX_RETRIES", num(&c.Redis.MaxRetries)},
		{"POLYARB_REDIS_TLS_ENABLED", flag(&c.Redis.TLSEnabled)},
		{"POLYARB_REDIS_PRICE_TTL", dur(&c.Redis.PriceTTL)},

		{"POLYARB_S3_ENABLED", flag(&c.S3.Enabled)},
		{"POLYARB_S3_ENDPOINT", str(&c.S3.Endpoint)},
		{"POLYARB_S3_REGION", str(&c.S3.Region)},
		{"POLYARB_S3_BUCKET", str(&c.S3.Bucket)},
		{"POLYARB_S3_ACCESS_KEY", str(&c.S3.AccessKey)},
		{"POLYARB_S3_SECRET_KEY", str(&c.S3.SecretKey)},
		{"POLYARB_S3_USE_SSL", flag(&c.S3.UseSSL)},
		{"POLYARB_S3_FORCE_PATH_STYLE", flag(&c.S3.ForcePathStyle)},
		{"POLYARB_S3_ARCHIVE_INTERVAL", dur(&c.S3.ArchiveInterval)},

		{"POLYARB_NOTIFY_TELEGRAM_TOKEN", str(&c.Notify.TelegramToken)},
		{"POLYARB_NOTIFY_TELEGRAM_CHAT_ID", str(&c.Notify.TelegramChatID)},
		{"POLYARB_NOTIFY_DISCORD_WEBHOOK_URL", str(&c.Notify.DiscordWebhookURL)},
		{"POLYARB_NOTIFY_EVENTS", list(&c.Notify.Events)},
		{"POLYARB_NOTIFY_MIN_PROFIT", float(&c.Notify.MinProfit)},
		{"POLYARB_NOTIFY_COOLDOWN", dur(&c.Notify.Cooldown)},

		{"POLYARB_SERVER_ENABLED", flag(&c.Server.Enabled)},
		{"POLYARB_SERVER_PORT", num(&c.Server.Port)},
		{"POLYARB_SERVER_CORS_ORIGINS", list(&c.Server.CORSOrigins)},
		{"POLYARB_SERVER_API_KEY", str(&c.Server.APIKey)},
		{"POLYARB_SERVER_RATE_LIMIT", num(&c.Server.RateLimit)},
		{"POLYARB_SERVER_RELAY_FROM_BUS", flag(&c.Server.RelayFromBus)},

		{"POLYARB_METRICS_NAMESPACE", str(&c.Metrics.Namespace)},

		{"POLYARB_MODE", str(&c.Mode)},
		{"POLYARB_LOG_LEVEL", str(&c.LogLevel)},
	}
}

// applyEnv overrides fields whose variable is set and non-blank. Every
// malformed value is reported.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range envBindings(c) {
		v, ok := lookup(b.key)
		if v = strings.TrimSpace(v); !ok || v == "" {
			continue
		}
		if err := b.set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.key, v, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}
