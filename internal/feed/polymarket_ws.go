package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/metrics"
	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
)

const (
	defaultMinBackoff = 2 * time.Second
	defaultMaxBackoff = 60 * time.Second
)

// Config configures a PolymarketWSFeed.
type Config struct {
	WSURL    string
	AssetIDs []string
	// Out receives every tick in arrival order. Sends block, so a slow
	// consumer slows the read loop rather than reordering ticks.
	Out chan<- domain.Tick
	// Mirror, when set, receives a best-effort copy of each tick; ticks are
	// dropped when it is full.
	Mirror     chan<- domain.Tick
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// PolymarketWSFeed connects to the Polymarket CLOB WebSocket, subscribes to
// the configured assets, and forwards decoded ticks. It reconnects with
// exponential backoff on disconnect.
type PolymarketWSFeed struct {
	cfg       Config
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}

	mirrorDropped atomic.Int64
}

// NewPolymarketWSFeed creates a feed.
func NewPolymarketWSFeed(cfg Config) *PolymarketWSFeed {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &PolymarketWSFeed{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "polymarket_ws_feed")),
		done:   make(chan struct{}),
	}
}

// Run connects and streams until ctx is cancelled or Close is called. The
// delay between reconnects doubles from MinBackoff up to MaxBackoff and
// resets after a session that delivered at least one tick.
func (f *PolymarketWSFeed) Run(ctx context.Context) error {
	if len(f.cfg.AssetIDs) == 0 {
		f.logger.Info("no asset IDs to subscribe, exiting")
		return nil
	}
	delay := f.cfg.MinBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		delivered, err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered > 0 {
			delay = f.cfg.MinBackoff
		}
		f.logger.Warn("polymarket ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Int64("ticks", delivered),
			slog.Int64("mirror_dropped", f.mirrorDropped.Load()),
			slog.Duration("backoff", delay),
		)
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.FeedReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay = NextBackoff(delay, f.cfg.MaxBackoff)
	}
}

// NextBackoff doubles d, capped at max.
func NextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

func (f *PolymarketWSFeed) runConnection(ctx context.Context) (int64, error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-connCtx.Done():
		}
	}()

	var delivered atomic.Int64
	client := polymarket.NewWSClient(f.cfg.WSURL, func(t domain.Tick) {
		select {
		case f.cfg.Out <- t:
			delivered.Add(1)
		case <-connCtx.Done():
			return
		}
		if f.cfg.Mirror != nil {
			select {
			case f.cfg.Mirror <- t:
			default:
				f.mirrorDropped.Add(1)
			}
		}
	})
	defer client.Close()

	if err := client.Connect(connCtx); err != nil {
		return 0, err
	}
	if err := client.Subscribe(connCtx, f.cfg.AssetIDs); err != nil {
		return 0, err
	}
	f.logger.Info("polymarket ws subscribed", slog.Int("assets", len(f.cfg.AssetIDs)))

	err := client.Wait(connCtx)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = nil
	}
	return delivered.Load(), err
}

// Close stops the feed.
func (f *PolymarketWSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func errString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}
