package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/metrics"
)

// DefaultTradeSize is the notional used for simulated trades.
var DefaultTradeSize = decimal.NewFromInt(100)

// Action is what a simulated leg does.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Leg is one side of a simulated trade. An empty Condition means every
// condition of the market.
type Leg struct {
	MarketID  string
	Condition string
	Action    Action
}

// SimulatedTrade is the trade the executor would place for an opportunity.
type SimulatedTrade struct {
	OpportunityID string
	Legs          []Leg
	Notional      decimal.Decimal
	ExpectedPnL   decimal.Decimal
}

// PlanTrade derives the legs for an opportunity at the given notional.
// Rebalancing longs buy every outcome and shorts sell every outcome.
// Combinatorial trades sell the overpriced implying condition and buy the
// implied one.
func PlanTrade(opp domain.Opportunity, notional decimal.Decimal) SimulatedTrade {
	t := SimulatedTrade{
		OpportunityID: opp.ID,
		Notional:      notional,
		ExpectedPnL:   opp.Profit.Mul(notional),
	}
	switch opp.Kind {
	case domain.OpportunityRebalancing:
		action := ActionBuy
		if opp.Side == domain.SideShort {
			action = ActionSell
		}
		t.Legs = []Leg{{MarketID: opp.MarketID, Action: action}}
	case domain.OpportunityCombinatorial:
		t.Legs = []Leg{
			{MarketID: opp.MarketID, Condition: opp.ConditionName, Action: ActionSell},
			{MarketID: opp.RelatedMarketID, Condition: opp.RelatedCondition, Action: ActionBuy},
		}
	}
	return t
}

// Sink receives every non-duplicate opportunity.
type Sink interface {
	Name() string
	Handle(ctx context.Context, opp domain.Opportunity) error
}

// Executor reads opportunities from a channel, suppresses duplicates, logs
// the simulated trade, and fans each opportunity out to its sinks. A failing
// sink is logged and counted but never stops the others.
type Executor struct {
	oppCh     <-chan domain.Opportunity
	sinks     []Sink
	dedup     *Dedup
	tradeSize decimal.Decimal
	metrics   *metrics.Metrics
	logger    *slog.Logger

	cleanupInterval time.Duration
}

// NewExecutor creates an Executor reading from oppCh.
func NewExecutor(oppCh <-chan domain.Opportunity, sinks []Sink, m *metrics.Metrics, logger *slog.Logger) *Executor {
	return &Executor{
		oppCh:           oppCh,
		sinks:           sinks,
		dedup:           NewDedup(2 * time.Minute),
		tradeSize:       DefaultTradeSize,
		metrics:         m,
		logger:          logger.With(slog.String("component", "executor")),
		cleanupInterval: 30 * time.Second,
	}
}

// Run processes opportunities until ctx is cancelled or the channel closes.
// On cancellation it drains what is already buffered.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started", slog.Int("sinks", len(e.sinks)))
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()

		case opp, ok := <-e.oppCh:
			if !ok {
				return nil
			}
			e.process(ctx, opp)

		case <-cleanupTicker.C:
			e.dedup.Sweep()
		}
	}
}

// Handle processes a single opportunity synchronously. Batch scans use it
// directly.
func (e *Executor) Handle(ctx context.Context, opp domain.Opportunity) {
	e.process(ctx, opp)
}

func (e *Executor) process(ctx context.Context, opp domain.Opportunity) {
	log := e.logger.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("kind", string(opp.Kind)),
		slog.String("market_id", opp.MarketID),
	)

	if e.dedup.Seen(opp.Key()) {
		log.Debug("opportunity deduplicated, skipping")
		if e.metrics != nil {
			e.metrics.OpportunitiesDuplicate.Inc()
		}
		return
	}

	trade := PlanTrade(opp, e.tradeSize)
	attrs := []any{
		slog.String("profit", opp.Profit.String()),
		slog.String("notional", trade.Notional.String()),
		slog.String("expected_pnl", trade.ExpectedPnL.String()),
	}
	for i, leg := range trade.Legs {
		attrs = append(attrs, slog.String(fmt.Sprintf("leg_%d", i), legString(leg)))
	}
	log.Info("simulated trade", attrs...)

	for _, s := range e.sinks {
		if err := s.Handle(ctx, opp); err != nil {
			log.Warn("sink failed",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
			)
			if e.metrics != nil {
				e.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
		}
	}
}

func legString(l Leg) string {
	if l.Condition == "" {
		return fmt.Sprintf("%s %s/*", l.Action, l.MarketID)
	}
	return fmt.Sprintf("%s %s/%s", l.Action, l.MarketID, l.Condition)
}

// drain handles opportunities already buffered after cancellation.
func (e *Executor) drain() {
	for {
		select {
		case opp, ok := <-e.oppCh:
			if !ok {
				return
			}
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.process(drainCtx, opp)
			cancel()
		default:
			return
		}
	}
}

// SetDedupTTL replaces the dedup window. Must be called before Run.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// SetTradeSize sets the simulated notional.
func (e *Executor) SetTradeSize(size decimal.Decimal) {
	if size.IsPositive() {
		e.tradeSize = size
	}
}
