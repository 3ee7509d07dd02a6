// Package config loads polyarb settings from TOML, .env and POLYARB_*
// variables, and checks them before startup.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is everything polyarb reads at startup. Environment variables
// override the file.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Goldsky    GoldskyConfig    `toml:"goldsky"`
	Engine     EngineConfig     `toml:"engine"`
	Stream     StreamConfig     `toml:"stream"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Server     ServerConfig     `toml:"server"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig points at the Gamma catalog and the CLOB market channel.
type PolymarketConfig struct {
	GammaURL  string `toml:"gamma_url"`
	WSURL     string `toml:"ws_url"`
	PageSize  int    `toml:"page_size"`
	MaxEvents int    `toml:"max_events"`
	// GammaRateLimit caps catalog requests per GammaRateWindow across every
	// process sharing the redis instance. Zero disables throttling.
	GammaRateLimit  int      `toml:"gamma_rate_limit"`
	GammaRateWindow duration `toml:"gamma_rate_window"`
}

// GoldskyConfig configures the order-fill subgraph poller.
type GoldskyConfig struct {
	URL        string   `toml:"url"`
	APIKey     string   `toml:"api_key"`
	Interval   duration `toml:"interval"`
	Lookback   duration `toml:"lookback"`
	FetchLimit int      `toml:"fetch_limit"`
}

// EngineConfig tunes detection and the paper executor.
type EngineConfig struct {
	FeeTolerance        decimalValue `toml:"fee_tolerance"`
	SimilarityThreshold float64      `toml:"similarity_threshold"`
	TradeSize           decimalValue `toml:"trade_size"`
	DedupTTL            duration     `toml:"dedup_ttl"`
	OpportunityBuffer   int          `toml:"opportunity_buffer"`
}

// StreamConfig tunes the websocket pipeline and its writer lock.
type StreamConfig struct {
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	LockTTL           duration `toml:"lock_ttl"`
	TickBuffer        int      `toml:"tick_buffer"`
	MinBackoff        duration `toml:"min_backoff"`
	MaxBackoff        duration `toml:"max_backoff"`
}

// PostgresConfig is either a DSN or discrete connection fields.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig backs the lock, price mirror, limiter and bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// PriceTTL expires mirrored prices that stop updating. Zero keeps them.
	PriceTTL duration `toml:"price_ttl"`
}

// S3Config targets AWS S3 or any S3-compatible store such as MinIO.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// ArchiveInterval is how often full mode uploads recent opportunities.
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig enables Telegram and Discord alerts.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// MinProfit suppresses opportunity alerts below this profit.
	MinProfit float64 `toml:"min_profit"`
	// Cooldown suppresses repeat alerts for the same opportunity.
	Cooldown duration `toml:"cooldown"`
}

// ServerConfig controls the REST and websocket API.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	// RelayFromBus feeds /ws from the redis opportunity channel instead of
	// the in-process executor, so API replicas see every writer's output.
	RelayFromBus bool `toml:"relay_from_bus"`
}

// MetricsConfig sets the Prometheus namespace.
type MetricsConfig struct {
	Namespace string `toml:"namespace"`
}

// duration decodes TOML strings such as "90s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// decimalValue accepts a TOML number or string and keeps its decimal text,
// so 0.015 is exactly 0.015.
type decimalValue struct {
	decimal.Decimal
}

func mustDecimal(s string) decimalValue {
	return decimalValue{decimal.RequireFromString(s)}
}

func (v *decimalValue) UnmarshalTOML(data any) error {
	var text string
	switch x := data.(type) {
	case float64:
		text = strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		text = strconv.FormatInt(x, 10)
	case string:
		text = x
	default:
		return fmt.Errorf("decimal: unsupported value %v (%T)", data, data)
	}
	return v.UnmarshalText([]byte(text))
}

func (v *decimalValue) UnmarshalText(text []byte) error {
	d, err := decimal.NewFromString(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("decimal %q: %w", text, err)
	}
	v.Decimal = d
	return nil
}

// Defaults is the configuration used when no file is given. It mirrors
// config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaURL:        "https://gamma-api.polymarket.com",
			WSURL:           "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			PageSize:        50,
			MaxEvents:       5000,
			GammaRateLimit:  10,
			GammaRateWindow: duration{time.Second},
		},
		Goldsky: GoldskyConfig{
			Interval:   duration{5 * time.Minute},
			Lookback:   duration{time.Hour},
			FetchLimit: 1000,
		},
		Engine: EngineConfig{
			FeeTolerance:        mustDecimal("0.02"),
			SimilarityThreshold: 0.6,
			TradeSize:           mustDecimal("100"),
			DedupTTL:            duration{2 * time.Minute},
			OpportunityBuffer:   256,
		},
		Stream: StreamConfig{
			HeartbeatInterval: duration{30 * time.Second},
			LockTTL:           duration{90 * time.Second},
			TickBuffer:        1024,
			MinBackoff:        duration{2 * time.Second},
			MaxBackoff:        duration{60 * time.Second},
		},
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "polyarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			PriceTTL:   duration{time.Hour},
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "polyarb-archive",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Notify: NotifyConfig{
			Events:    []string{"opportunity", "error"},
			MinProfit: 0.01,
			Cooldown:  duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Metrics:  MetricsConfig{Namespace: "polyarb"},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Run modes selected by Config.Mode.
const (
	ModeScan    = "scan"
	ModeStream  = "stream"
	ModeFull    = "full"
	ModeAnalyze = "analyze"
)

var (
	validModes     = []string{ModeScan, ModeStream, ModeFull, ModeAnalyze}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// problems collects validation failures, each prefixed with its section.
type problems []string

func (p *problems) add(section, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if section != "" {
		msg = section + ": " + msg
	}
	*p = append(*p, msg)
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

// Validate reports every invalid or missing setting in one error.
func (c *Config) Validate() error {
	var p problems
	mode := strings.ToLower(c.Mode)
	streaming := mode == ModeStream || mode == ModeFull

	if !slices.Contains(validModes, mode) {
		p.add("", "unknown mode %q, want one of scan, stream, full, analyze", c.Mode)
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		p.add("", "unknown log_level %q, want one of debug, info, warn, error", c.LogLevel)
	}

	pm := c.Polymarket
	switch {
	case pm.GammaURL == "":
		p.add("polymarket", "gamma_url is empty")
	case streaming && pm.WSURL == "":
		p.add("polymarket", "ws_url is required in %s mode", mode)
	}
	if pm.PageSize < 1 {
		p.add("polymarket", "page_size %d is below 1", pm.PageSize)
	}
	if pm.GammaRateLimit > 0 && pm.GammaRateWindow.Duration <= 0 {
		p.add("polymarket", "gamma_rate_limit needs a positive gamma_rate_window")
	}

	if mode == ModeAnalyze && c.Goldsky.URL == "" {
		p.add("goldsky", "url is required in analyze mode")
	}

	e := c.Engine
	if e.FeeTolerance.IsNegative() || e.FeeTolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		p.add("engine", "fee_tolerance %s outside [0,1)", e.FeeTolerance)
	}
	if e.SimilarityThreshold <= 0 || e.SimilarityThreshold > 1 {
		p.add("engine", "similarity_threshold %g outside (0,1]", e.SimilarityThreshold)
	}
	if !e.TradeSize.IsPositive() {
		p.add("engine", "trade_size %s is not positive", e.TradeSize)
	}

	if c.Stream.HeartbeatInterval.Duration <= 0 {
		p.add("stream", "heartbeat_interval is not positive")
	}
	if c.Redis.Enabled && c.Stream.LockTTL.Duration <= c.Stream.HeartbeatInterval.Duration {
		p.add("stream", "lock_ttl %s must be longer than heartbeat_interval %s",
			c.Stream.LockTTL.Duration, c.Stream.HeartbeatInterval.Duration)
	}

	if pg := c.Postgres; pg.Enabled {
		if strings.TrimSpace(pg.DSN) == "" {
			if pg.Host == "" {
				p.add("postgres", "set host or dsn")
			}
			if !validPort(pg.Port) {
				p.add("postgres", "port %d out of range", pg.Port)
			}
			if pg.Database == "" {
				p.add("postgres", "database is empty")
			}
		}
		if pg.PoolMaxConns < 1 {
			p.add("postgres", "pool_max_conns %d is below 1", pg.PoolMaxConns)
		}
		if pg.PoolMinConns > pg.PoolMaxConns {
			p.add("postgres", "pool_min_conns %d exceeds pool_max_conns %d", pg.PoolMinConns, pg.PoolMaxConns)
		}
	}

	switch r := c.Redis; {
	case !r.Enabled && streaming:
		p.add("redis", "required in %s mode for the writer lock", mode)
	case r.Enabled && r.Addr == "":
		p.add("redis", "addr is empty")
	case r.Enabled && r.PoolSize < 1:
		p.add("redis", "pool_size %d is below 1", r.PoolSize)
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		p.add("s3", "bucket is required when enabled")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		p.add("notify", "telegram_token and telegram_chat_id go together")
	}
	if c.Server.Enabled && !validPort(c.Server.Port) {
		p.add("server", "port %d out of range", c.Server.Port)
	}

	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(p, "; "))
}
