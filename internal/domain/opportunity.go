package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityKind discriminates opportunity records.
type OpportunityKind string

const (
	OpportunityRebalancing   OpportunityKind = "rebalancing"
	OpportunityCombinatorial OpportunityKind = "combinatorial"
)

// Side is the trade direction of a rebalancing opportunity.
type Side string

const (
	SideLong  Side = "long"  // buy every outcome, prices sum below 1
	SideShort Side = "short" // sell every outcome, prices sum above 1
)

// Opportunity is a detected mispricing. Profit is never negative.
//
// Rebalancing records fill MarketID and Side. Combinatorial records fill
// MarketID/ConditionName with the implying side and
// RelatedMarketID/RelatedCondition with the implied side.
type Opportunity struct {
	ID               string          `json:"id"`
	Kind             OpportunityKind `json:"kind"`
	MarketID         string          `json:"market_id"`
	ConditionName    string          `json:"condition_name,omitempty"`
	RelatedMarketID  string          `json:"related_market_id,omitempty"`
	RelatedCondition string          `json:"related_condition,omitempty"`
	Side             Side            `json:"side,omitempty"`
	Pattern          PatternKind     `json:"pattern,omitempty"`
	Profit           decimal.Decimal `json:"profit"`
	DetectedAt       time.Time       `json:"detected_at"`
}

// Key identifies an opportunity independent of its price, used for dedup.
func (o Opportunity) Key() string {
	if o.Kind == OpportunityRebalancing {
		return string(o.Kind) + "|" + o.MarketID + "|" + string(o.Side)
	}
	return string(o.Kind) + "|" + o.MarketID + "|" + o.ConditionName + "|" + o.RelatedMarketID + "|" + o.RelatedCondition
}
