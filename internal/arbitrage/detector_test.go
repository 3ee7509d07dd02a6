package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/entity"
	"github.com/alanyoungcy/polyarb/internal/relation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func priced(id string, prices ...string) *domain.Market {
	m := &domain.Market{ID: id, Title: id}
	for i, p := range prices {
		m.Conditions = append(m.Conditions, domain.Condition{
			Name:    string(rune('a' + i)),
			Price:   d(p),
			Outcome: domain.OutcomeUnknown,
		})
	}
	return m
}

func TestRebalancingThresholds(t *testing.T) {
	tests := []struct {
		name   string
		prices []string
		ok     bool
		side   domain.Side
		profit string
	}{
		{"sum 0.97 long", []string{"0.47", "0.50"}, true, domain.SideLong, "0.03"},
		{"sum 1.00 none", []string{"0.5", "0.5"}, false, "", ""},
		{"sum 1.03 short", []string{"0.53", "0.50"}, true, domain.SideShort, "0.03"},
		{"sum 0.98 on the boundary", []string{"0.48", "0.50"}, false, "", ""},
		{"sum 1.02 on the boundary", []string{"0.52", "0.50"}, false, "", ""},
		{"sum 1.05 short", []string{"0.55", "0.50"}, true, domain.SideShort, "0.05"},
		{"multi outcome long", []string{"0.2", "0.3", "0.1"}, true, domain.SideLong, "0.4"},
	}
	det := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := det.Rebalancing(priced("m", tt.prices...))
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, domain.OpportunityRebalancing, opp.Kind)
			assert.Equal(t, tt.side, opp.Side)
			assert.True(t, d(tt.profit).Equal(opp.Profit), "profit %s", opp.Profit)
			assert.NotEmpty(t, opp.ID)
		})
	}
}

func TestPriceSumIsExact(t *testing.T) {
	m := priced("m", "0.33", "0.33", "0.34")
	assert.Equal(t, "1", m.PriceSum().String())
	assert.True(t, m.PriceSum().Equal(decimal.NewFromInt(1)))

	_, ok := NewDetector(WithFeeTolerance(decimal.Zero)).Rebalancing(m)
	assert.False(t, ok, "exact sum of 1 must not signal even with zero tolerance")
}

func TestCombinatorialNumericRange(t *testing.T) {
	narrow := &domain.Market{ID: "m1", Title: "trump_margin", Conditions: []domain.Condition{
		{Name: "5-10", Label: "5-10%", Price: d("0.6"), Outcome: domain.OutcomeYes},
	}}
	wide := &domain.Market{ID: "m2", Title: "trump_margin", Conditions: []domain.Condition{
		{Name: "0-20", Label: "0-20%", Price: d("0.5"), Outcome: domain.OutcomeYes},
	}}

	fixed := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	det := NewDetector(WithClock(func() time.Time { return fixed }))

	for _, pair := range [][2]*domain.Market{{narrow, wide}, {wide, narrow}} {
		opps := det.Combinatorial(pair[0], pair[1])
		require.Len(t, opps, 1)
		opp := opps[0]
		assert.Equal(t, domain.OpportunityCombinatorial, opp.Kind)
		assert.Equal(t, "m1", opp.MarketID)
		assert.Equal(t, "5-10", opp.ConditionName)
		assert.Equal(t, "m2", opp.RelatedMarketID)
		assert.Equal(t, "0-20", opp.RelatedCondition)
		assert.Equal(t, domain.PatternNumericRange, opp.Pattern)
		assert.True(t, d("0.1").Equal(opp.Profit), "profit %s", opp.Profit)
		assert.Equal(t, fixed, opp.DetectedAt)
	}
}

func TestCombinatorialNoSignalWhenConsistent(t *testing.T) {
	state := &domain.Market{ID: "pa", Title: "trump_win_pennsylvania", Conditions: []domain.Condition{
		{Name: "yes", Price: d("0.4"), Outcome: domain.OutcomeYes},
		{Name: "no", Price: d("0.6"), Outcome: domain.OutcomeNo},
	}}
	national := &domain.Market{ID: "us", Title: "trump_win_election", Conditions: []domain.Condition{
		{Name: "yes", Price: d("0.5"), Outcome: domain.OutcomeYes},
		{Name: "no", Price: d("0.5"), Outcome: domain.OutcomeNo},
	}}
	state.Entities = entity.Extract(state.Title)
	national.Entities = entity.Extract(national.Title)

	assert.Empty(t, NewDetector().Combinatorial(state, national))

	state.Conditions[0].Price = d("0.55")
	opps := NewDetector().Combinatorial(state, national)
	require.Len(t, opps, 1)
	assert.Equal(t, "pa", opps[0].MarketID)
	assert.Equal(t, "us", opps[0].RelatedMarketID)
	assert.True(t, d("0.05").Equal(opps[0].Profit))
}

func TestScan(t *testing.T) {
	markets := []domain.Market{
		*priced("a", "0.40", "0.40"),
		*priced("b", "0.5", "0.5"),
	}
	opps := NewDetector().Scan(markets, []relation.Edge{{I: 0, J: 1}})
	require.Len(t, opps, 1)
	assert.Equal(t, "a", opps[0].MarketID)
	assert.True(t, d("0.2").Equal(opps[0].Profit))
}
