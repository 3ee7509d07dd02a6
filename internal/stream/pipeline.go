package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/metrics"
)

// Evaluator derives opportunities from markets. *arbitrage.Detector
// satisfies it.
type Evaluator interface {
	Rebalancing(m *domain.Market) (domain.Opportunity, bool)
	Combinatorial(a, b *domain.Market) []domain.Opportunity
}

// Config configures a Pipeline.
type Config struct {
	Store     *Store
	Evaluator Evaluator
	// Out receives opportunities after the table lock is released. A nil
	// Out discards them.
	Out       chan<- domain.Opportunity
	Heartbeat time.Duration
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Pipeline is the single writer of a Store.
type Pipeline struct {
	store     *Store
	eval      Evaluator
	out       chan<- domain.Opportunity
	heartbeat time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	state      atomic.Value // domain.PipelineState
	applied    atomic.Int64
	ignored    atomic.Int64
	emitted    atomic.Int64
	lastTickNs atomic.Int64
}

// NewPipeline creates an idle pipeline.
func NewPipeline(cfg Config) *Pipeline {
	hb := cfg.Heartbeat
	if hb <= 0 {
		hb = 30 * time.Second
	}
	p := &Pipeline{
		store:     cfg.Store,
		eval:      cfg.Evaluator,
		out:       cfg.Out,
		heartbeat: hb,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With(slog.String("component", "stream_pipeline")),
	}
	p.state.Store(domain.PipelineIdle)
	return p
}

// Apply integrates one tick. Ticks for unknown assets are ignored. For a
// tracked asset the condition price is overwritten, then the owning market is
// checked for rebalancing and paired with each of its neighbors for
// combinatorial checks, all under the write lock. Only the touched market and
// its neighbors are evaluated.
//
// A non-nil error means the table is inconsistent and streaming must stop.
func (p *Pipeline) Apply(tick domain.Tick) ([]domain.Opportunity, error) {
	ref, ok := p.store.lookup(tick.AssetID)
	if !ok {
		p.ignored.Add(1)
		if p.metrics != nil {
			p.metrics.TicksIgnored.Inc()
		}
		return nil, nil
	}

	start := time.Now()
	p.state.Store(domain.PipelineApplying)
	opps, err := p.applyLocked(ref, tick)
	p.state.Store(domain.PipelineIdle)
	if err != nil {
		return nil, err
	}

	p.applied.Add(1)
	p.lastTickNs.Store(start.UnixNano())
	if p.metrics != nil {
		p.metrics.TicksApplied.Inc()
		p.metrics.TickApplySeconds.Observe(time.Since(start).Seconds())
	}
	return opps, nil
}

func (p *Pipeline) applyLocked(ref assetRef, tick domain.Tick) ([]domain.Opportunity, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref.market >= len(s.markets) || ref.condition >= len(s.markets[ref.market].Conditions) {
		return nil, fmt.Errorf("stream: asset %s maps to (%d,%d): %w",
			tick.AssetID, ref.market, ref.condition, domain.ErrCorruptIndex)
	}
	m := &s.markets[ref.market]
	m.Conditions[ref.condition].Price = tick.Price

	var opps []domain.Opportunity
	if opp, ok := p.eval.Rebalancing(m); ok {
		opps = append(opps, opp)
	}
	for _, n := range s.adjacency.Neighbors(ref.market) {
		if n >= len(s.markets) {
			return nil, fmt.Errorf("stream: neighbor %d of market %s out of range: %w",
				n, m.ID, domain.ErrCorruptIndex)
		}
		opps = append(opps, p.eval.Combinatorial(m, &s.markets[n])...)
	}
	return opps, nil
}

// Run applies ticks in arrival order until ctx is done, the tick channel
// closes, or Apply reports an inconsistency. Each tick is fully applied and
// its opportunities delivered before the next tick is read.
func (p *Pipeline) Run(ctx context.Context, ticks <-chan domain.Tick) error {
	hb := time.NewTicker(p.heartbeat)
	defer hb.Stop()
	defer p.state.Store(domain.PipelineStopped)

	p.logger.Info("stream pipeline started",
		slog.Int("markets", p.store.Len()),
		slog.Int("assets", len(p.store.assets)),
		slog.Int("edges", p.store.EdgeCount()),
	)
	defer p.logger.Info("stream pipeline stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hb.C:
			st := p.Stats()
			p.logger.Info("stream heartbeat",
				slog.Int64("ticks_applied", st.TicksApplied),
				slog.Int64("ticks_ignored", st.TicksIgnored),
				slog.Int64("opportunities", st.OpportunitiesEmitted),
			)
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			opps, err := p.Apply(tick)
			if err != nil {
				p.logger.Error("stream pipeline halted", slog.String("error", err.Error()))
				return err
			}
			if err := p.emit(ctx, opps); err != nil {
				return err
			}
		}
	}
}

func (p *Pipeline) emit(ctx context.Context, opps []domain.Opportunity) error {
	for _, opp := range opps {
		p.emitted.Add(1)
		if p.metrics != nil {
			p.metrics.Opportunities.WithLabelValues(string(opp.Kind)).Inc()
			p.metrics.OpportunityProfit.WithLabelValues(string(opp.Kind)).Observe(opp.Profit.InexactFloat64())
		}
		p.logger.Debug("opportunity",
			slog.String("kind", string(opp.Kind)),
			slog.String("market_id", opp.MarketID),
			slog.String("related_market_id", opp.RelatedMarketID),
			slog.String("profit", opp.Profit.String()),
		)
		if p.out == nil {
			continue
		}
		select {
		case p.out <- opp:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stats returns a point-in-time view of the pipeline.
func (p *Pipeline) Stats() domain.PipelineStats {
	st := domain.PipelineStats{
		State:                p.state.Load().(domain.PipelineState),
		Markets:              p.store.Len(),
		TrackedAssets:        len(p.store.assets),
		Edges:                p.store.EdgeCount(),
		TicksApplied:         p.applied.Load(),
		TicksIgnored:         p.ignored.Load(),
		OpportunitiesEmitted: p.emitted.Load(),
	}
	if ns := p.lastTickNs.Load(); ns > 0 {
		st.LastTickAt = time.Unix(0, ns).UTC()
	}
	return st
}
