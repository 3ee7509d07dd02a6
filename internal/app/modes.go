package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/executor"
	"github.com/alanyoungcy/polyarb/internal/feed"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/relation"
	"github.com/alanyoungcy/polyarb/internal/server"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/server/ws"
	"github.com/alanyoungcy/polyarb/internal/service"
	"github.com/alanyoungcy/polyarb/internal/stream"
)

// StreamWriterLock names the redis lock held by the single streaming writer.
const StreamWriterLock = "stream-writer"

// ScanMode runs one batch pass: ingest, build, check every market for
// rebalancing and every edge for combinatorial dependencies, deliver, exit.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	started := time.Now().UTC()
	cat, err := a.buildCatalog(ctx, deps)
	if err != nil {
		return err
	}

	exec := a.newExecutor(nil, deps, nil)
	opps := a.newDetector().Scan(cat.Markets, cat.Graph.Edges)
	for _, opp := range opps {
		exec.Handle(ctx, opp)
	}
	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("markets", len(cat.Markets)),
		slog.Int("edges", len(cat.Graph.Edges)),
		slog.Int("opportunities", len(opps)),
	)

	if deps.Archiver != nil {
		n, err := deps.Archiver.ArchiveOpportunities(ctx, started)
		if err != nil {
			a.logger.WarnContext(ctx, "archive opportunities failed", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "opportunities archived", slog.Int64("count", n))
		}
	}
	return nil
}

// StreamMode ingests the catalog then streams ticks into the pipeline.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	return a.runStream(ctx, deps, false)
}

// FullMode is StreamMode plus the HTTP API, the periodic fill analysis and
// the opportunity archive.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	return a.runStream(ctx, deps, true)
}

// AnalyzeMode runs one fill analysis pass over the configured lookback.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	if deps.Goldsky == nil {
		return errors.New("app: analyze mode needs goldsky.url")
	}
	cat, err := a.buildCatalog(ctx, deps)
	if err != nil {
		return err
	}
	since := time.Now().UTC().Add(-a.cfg.Goldsky.Lookback.Duration)
	_, err = a.newFillService(deps).Run(ctx, since, cat.AssetMarkets())
	return err
}

func (a *App) runStream(ctx context.Context, deps *Dependencies, full bool) error {
	if deps.LockManager == nil {
		return errors.New("app: streaming needs redis for the single-writer lock")
	}
	cat, err := a.buildCatalog(ctx, deps)
	if err != nil {
		return err
	}
	assetMarkets := cat.AssetMarkets()

	lockTTL := a.cfg.Stream.LockTTL.Duration
	unlock, err := deps.LockManager.Acquire(ctx, StreamWriterLock, lockTTL)
	if err != nil {
		return fmt.Errorf("app: acquire %s lock: %w", StreamWriterLock, err)
	}
	defer unlock()

	store, err := stream.NewStore(cat.Markets, cat.Graph.Adjacency)
	if err != nil {
		return fmt.Errorf("app: build price table: %w", err)
	}
	if n := store.DuplicateAssets(); n > 0 {
		a.logger.WarnContext(ctx, "duplicate asset ids ignored", slog.Int("count", n))
	}

	oppCh := make(chan domain.Opportunity, a.cfg.Engine.OpportunityBuffer)
	ticks := make(chan domain.Tick, a.cfg.Stream.TickBuffer)
	var mirror chan domain.Tick
	if deps.PriceCache != nil {
		mirror = make(chan domain.Tick, a.cfg.Stream.TickBuffer)
	}

	pipe := stream.NewPipeline(stream.Config{
		Store:     store,
		Evaluator: a.newDetector(),
		Out:       oppCh,
		Heartbeat: a.cfg.Stream.HeartbeatInterval.Duration,
		Metrics:   deps.Metrics,
		Logger:    a.logger,
	})
	wsFeed := feed.NewPolymarketWSFeed(feed.Config{
		WSURL:      a.cfg.Polymarket.WSURL,
		AssetIDs:   store.AssetIDs(),
		Out:        ticks,
		Mirror:     mirror,
		MinBackoff: a.cfg.Stream.MinBackoff.Duration,
		MaxBackoff: a.cfg.Stream.MaxBackoff.Duration,
		Metrics:    deps.Metrics,
		Logger:     a.logger,
	})

	var hub *ws.Hub
	var hubSink *ws.Hub
	if full && a.cfg.Server.Enabled {
		hubCfg := ws.Config{Mode: a.cfg.Mode, AllowedOrigins: a.cfg.Server.CORSOrigins}
		if a.cfg.Server.RelayFromBus && deps.SignalBus != nil {
			hubCfg.Relay = []string{executor.OpportunityChannel}
		}
		hub = ws.NewHub(deps.SignalBus, a.logger, hubCfg)
		if len(hubCfg.Relay) == 0 {
			hubSink = hub
		}
	}
	exec := a.newExecutor(oppCh, deps, hubSink)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(gctx)
	})
	g.Go(func() error { return pipe.Run(gctx, ticks) })
	g.Go(func() error { return exec.Run(gctx) })
	g.Go(func() error {
		return holdLock(gctx, deps.LockManager, StreamWriterLock, lockTTL, a.cfg.Stream.HeartbeatInterval.Duration)
	})
	if mirror != nil {
		g.Go(func() error { return mirrorPrices(gctx, mirror, deps.PriceCache, a.logger) })
	}

	if full {
		if hub != nil {
			g.Go(func() error { return hub.Run(gctx) })
			a.startHTTPServer(gctx, g, deps, store, pipe, hub)
		}
		if deps.Goldsky != nil {
			fills := a.newFillService(deps)
			since := time.Now().UTC().Add(-a.cfg.Goldsky.Lookback.Duration)
			g.Go(func() error {
				return fills.RunLoop(gctx, a.cfg.Goldsky.Interval.Duration, since,
					func() map[string]string { return assetMarkets })
			})
		}
		if deps.Archiver != nil {
			g.Go(func() error {
				return archiveLoop(gctx, deps.Archiver, a.cfg.S3.ArchiveInterval.Duration, a.logger)
			})
		}
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && deps.Notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if nerr := deps.Notifier.Notify(nctx, notify.EventError, "polyarb stream stopped", err.Error()); nerr != nil {
			a.logger.Warn("error alert failed", slog.String("error", nerr.Error()))
		}
	}
	return err
}

func (a *App) buildCatalog(ctx context.Context, deps *Dependencies) (service.Catalog, error) {
	var archiver service.CatalogArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	catalog := service.NewCatalogService(service.CatalogConfig{
		Source:    deps.Gamma,
		Grapher:   relation.NewGrapher(a.cfg.Engine.SimilarityThreshold, a.logger),
		PageSize:  a.cfg.Polymarket.PageSize,
		MaxEvents: a.cfg.Polymarket.MaxEvents,
		Markets:   deps.MarketStore,
		Relations: deps.RelationStore,
		Archiver:  archiver,
		Metrics:   deps.Metrics,
		Logger:    a.logger,
	})
	cat, err := catalog.Build(ctx)
	if err != nil {
		return service.Catalog{}, fmt.Errorf("app: build catalog: %w", err)
	}
	return cat, nil
}

func (a *App) newDetector() *arbitrage.Detector {
	return arbitrage.NewDetector(arbitrage.WithFeeTolerance(a.cfg.Engine.FeeTolerance.Decimal))
}

// newExecutor fans opportunities out to every configured sink. oppCh is nil
// for batch scans, which call Handle directly.
func (a *App) newExecutor(oppCh <-chan domain.Opportunity, deps *Dependencies, hub *ws.Hub) *executor.Executor {
	var sinks []executor.Sink
	if deps.OpportunityStore != nil {
		sinks = append(sinks, executor.StoreSink{Store: deps.OpportunityStore})
	}
	if deps.SignalBus != nil {
		sinks = append(sinks, executor.BusSink{Bus: deps.SignalBus})
	}
	if deps.Notifier != nil {
		sinks = append(sinks, executor.NotifySink{Notifier: deps.Notifier})
	}
	if hub != nil {
		sinks = append(sinks, executor.HubSink{Hub: hub})
	}

	exec := executor.NewExecutor(oppCh, sinks, deps.Metrics, a.logger)
	exec.SetDedupTTL(a.cfg.Engine.DedupTTL.Duration)
	exec.SetTradeSize(a.cfg.Engine.TradeSize.Decimal)
	return exec
}

func (a *App) newFillService(deps *Dependencies) *service.FillService {
	return service.NewFillService(service.FillConfig{
		Fetcher:    deps.Goldsky,
		FetchLimit: a.cfg.Goldsky.FetchLimit,
		Writer:     deps.BlobWriter,
		Wallets:    deps.WalletStore,
		Metrics:    deps.Metrics,
		Logger:     a.logger,
	})
}

// startHTTPServer runs the API server in g until ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, store *stream.Store, pipe *stream.Pipeline, hub *ws.Hub) {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), pipe),
		Markets: handler.NewMarketHandler(store, deps.MarketStore, a.logger),
		Metrics: deps.Metrics.Handler(),
	}
	switch {
	case deps.OpportunityStore != nil:
		handlers.Opportunities = handler.NewOpportunityHandler(deps.OpportunityStore, a.logger)
	case deps.SignalBus != nil:
		handlers.Opportunities = handler.NewOpportunityHandler(executor.StreamHistory{Bus: deps.SignalBus}, a.logger)
	}
	if deps.RelationStore != nil {
		handlers.Relations = handler.NewRelationHandler(deps.RelationStore, deps.WalletStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
		Limiter:     deps.RateLimiter,
	}, handlers, hub, a.logger)

	g.Go(func() error { return srv.Run(ctx) })
}

// holdLock renews the single-writer lock every interval. Losing it stops
// streaming.
func holdLock(ctx context.Context, locks domain.LockManager, key string, ttl, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := locks.Extend(ctx, key, ttl); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("app: renew %s lock: %w", key, err)
			}
		}
	}
}

// mirrorPrices copies ticks into the shared price cache. Cache errors are
// logged and never stop streaming.
func mirrorPrices(ctx context.Context, ticks <-chan domain.Tick, cache domain.PriceCache, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticks:
			if err := cache.SetPrice(ctx, t.AssetID, t.Price, t.ReceivedAt); err != nil && ctx.Err() == nil {
				logger.DebugContext(ctx, "price mirror failed",
					slog.String("asset_id", t.AssetID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// opportunityArchiver is the part of the blob archiver archiveLoop needs.
type opportunityArchiver interface {
	ArchiveOpportunities(ctx context.Context, since time.Time) (int64, error)
}

// archiveLoop uploads the opportunities of each elapsed interval.
func archiveLoop(ctx context.Context, archiver opportunityArchiver, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	since := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			n, err := archiver.ArchiveOpportunities(ctx, since)
			if err != nil {
				logger.WarnContext(ctx, "archive opportunities failed", slog.String("error", err.Error()))
				continue
			}
			logger.InfoContext(ctx, "opportunities archived", slog.Int64("count", n))
			since = now.UTC()
		}
	}
}
