// Package arbitrage derives rebalancing and combinatorial opportunities from
// market prices.
package arbitrage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/dependency"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultFeeTolerance is how far a price sum may stray from 1 before a
// rebalancing opportunity is signalled.
var DefaultFeeTolerance = decimal.RequireFromString("0.02")

var one = decimal.NewFromInt(1)

// Detector evaluates markets for opportunities. It holds no market state and
// is safe for concurrent use.
type Detector struct {
	feeTolerance decimal.Decimal
	now          func() time.Time
	newID        func() string
}

// Option configures a Detector.
type Option func(*Detector)

// WithFeeTolerance overrides DefaultFeeTolerance.
func WithFeeTolerance(tol decimal.Decimal) Option {
	return func(d *Detector) { d.feeTolerance = tol }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		feeTolerance: DefaultFeeTolerance,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FeeTolerance returns the configured tolerance.
func (d *Detector) FeeTolerance() decimal.Decimal { return d.feeTolerance }

// Rebalancing checks a single market's outcome prices. A sum below
// 1-tolerance is a long opportunity worth 1-sum; a sum above 1+tolerance is a
// short opportunity worth sum-1.
func (d *Detector) Rebalancing(m *domain.Market) (domain.Opportunity, bool) {
	sum := m.PriceSum()
	opp := domain.Opportunity{
		Kind:     domain.OpportunityRebalancing,
		MarketID: m.ID,
	}
	switch {
	case sum.LessThan(one.Sub(d.feeTolerance)):
		opp.Side = domain.SideLong
		opp.Profit = one.Sub(sum)
	case sum.GreaterThan(one.Add(d.feeTolerance)):
		opp.Side = domain.SideShort
		opp.Profit = sum.Sub(one)
	default:
		return domain.Opportunity{}, false
	}
	return d.stamp(opp), true
}

// Combinatorial classifies every condition pair of two markets and reports
// each implication whose implying condition is priced above the condition it
// implies.
func (d *Detector) Combinatorial(a, b *domain.Market) []domain.Opportunity {
	var out []domain.Opportunity
	for i := range a.Conditions {
		ca := &a.Conditions[i]
		for j := range b.Conditions {
			cb := &b.Conditions[j]
			dep, ok := dependency.Classify(a, ca, b, cb)
			if !ok {
				continue
			}
			implyingM, implying, impliedM, implied := a, ca, b, cb
			if dep.Direction == domain.SecondImpliesFirst {
				implyingM, implying, impliedM, implied = b, cb, a, ca
			}
			if !implying.Price.GreaterThan(implied.Price) {
				continue
			}
			out = append(out, d.stamp(domain.Opportunity{
				Kind:             domain.OpportunityCombinatorial,
				MarketID:         implyingM.ID,
				ConditionName:    implying.Name,
				RelatedMarketID:  impliedM.ID,
				RelatedCondition: implied.Name,
				Pattern:          dep.Pattern,
				Profit:           implying.Price.Sub(implied.Price),
			}))
		}
	}
	return out
}

func (d *Detector) stamp(opp domain.Opportunity) domain.Opportunity {
	opp.ID = d.newID()
	opp.DetectedAt = d.now()
	return opp
}
