package dependency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/entity"
)

func market(id, title string, conds ...domain.Condition) *domain.Market {
	return &domain.Market{
		ID:         id,
		Title:      title,
		Conditions: conds,
		Entities:   entity.Extract(title),
	}
}

func yes(name string) domain.Condition {
	return domain.Condition{Name: name, Label: name, Outcome: domain.OutcomeYes, Price: decimal.RequireFromString("0.5")}
}

func no(name string) domain.Condition {
	return domain.Condition{Name: name, Label: name, Outcome: domain.OutcomeNo, Price: decimal.RequireFromString("0.5")}
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name    string
		a, b    *domain.Market
		pattern domain.PatternKind
		dir     domain.Direction
	}{
		{
			name:    "winner margin: margin implies winner",
			a:       market("m1", "trump_win_presidential_election", yes("donald_trump")),
			b:       market("m2", "trump_margin_victory", yes("5-10")),
			pattern: domain.PatternWinnerMargin,
			dir:     domain.SecondImpliesFirst,
		},
		{
			name:    "winner margin via by token",
			a:       market("m1", "harris_win_by_5_points", yes("yes")),
			b:       market("m2", "harris_win_popular_vote", yes("yes")),
			pattern: domain.PatternWinnerMargin,
			dir:     domain.FirstImpliesSecond,
		},
		{
			name:    "subset: containing title implies contained",
			a:       market("m1", "trump_win", yes("yes")),
			b:       market("m2", "trump_win_pennsylvania_landslide", yes("yes")),
			pattern: domain.PatternSubsetImplication,
			dir:     domain.SecondImpliesFirst,
		},
		{
			name:    "numeric range narrow implies wide",
			a:       market("m1", "trump_margin", yes("5-10%")),
			b:       market("m2", "trump_margin", yes("0-20%")),
			pattern: domain.PatternNumericRange,
			dir:     domain.FirstImpliesSecond,
		},
		{
			name:    "state implies national",
			a:       market("m1", "trump_win_pennsylvania", yes("yes")),
			b:       market("m2", "trump_win_election", yes("yes")),
			pattern: domain.PatternStateNational,
			dir:     domain.FirstImpliesSecond,
		},
		{
			name:    "presidency implies senate",
			a:       market("m1", "republicans_senate_control_trump", yes("yes")),
			b:       market("m2", "trump_presidency_2024", yes("yes")),
			pattern: domain.PatternBalanceOfPower,
			dir:     domain.SecondImpliesFirst,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep, ok := Classify(tt.a, &tt.a.Conditions[0], tt.b, &tt.b.Conditions[0])
			require.True(t, ok)
			assert.Equal(t, tt.pattern, dep.Pattern)
			assert.Equal(t, tt.dir, dep.Direction)
		})
	}
}

func TestClassifyDirectionConsistentOnSwap(t *testing.T) {
	pairs := [][2]*domain.Market{
		{market("m1", "trump_win_presidential_election", yes("donald_trump")), market("m2", "trump_margin_victory", yes("5-10"))},
		{market("m1", "trump_win", yes("yes")), market("m2", "trump_win_pennsylvania", yes("yes"))},
		{market("m1", "btc_price", yes(">100")), market("m2", "btc_price", yes("<50"))},
		{market("m1", "btc_price_range", yes("60-70")), market("m2", "btc_price_range", yes("50-80"))},
		{market("m1", "trump_win_georgia", yes("yes")), market("m2", "trump_win_presidency", yes("yes"))},
		{market("m1", "trump_white_house", yes("yes")), market("m2", "trump_senate", yes("yes"))},
		{market("m1", "trump_win_arizona", no("no")), market("m2", "trump_win_election", yes("yes"))},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		ab, okAB := Classify(a, &a.Conditions[0], b, &b.Conditions[0])
		ba, okBA := Classify(b, &b.Conditions[0], a, &a.Conditions[0])
		require.Equal(t, okAB, okBA, "%s vs %s", a.Title, b.Title)
		if okAB {
			assert.Equal(t, ab.Pattern, ba.Pattern)
			assert.Equal(t, ab.Direction.Flip(), ba.Direction, "%s vs %s", a.Title, b.Title)
		}
	}
}

func TestClassifyNoSelfDependency(t *testing.T) {
	m := market("same", "trump_margin", yes("5-10%"), yes("0-20%"))
	_, ok := Classify(m, &m.Conditions[0], m, &m.Conditions[1])
	assert.False(t, ok)
}

func TestClassifyShortCircuitsUnrelated(t *testing.T) {
	a := market("m1", "fed_cut_rates_december", yes("5-10%"))
	b := market("m2", "nba_finals_mvp", yes("0-20%"))
	_, ok := Classify(a, &a.Conditions[0], b, &b.Conditions[0])
	assert.False(t, ok, "range rule must not run without shared entities or substring titles")
}

func TestClassifyRequiresAffirmative(t *testing.T) {
	a := market("m1", "trump_win", no("no"))
	b := market("m2", "trump_win_pennsylvania", yes("yes"))
	_, ok := Classify(a, &a.Conditions[0], b, &b.Conditions[0])
	assert.False(t, ok)
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Both subset and state/national would match; subset is earlier.
	a := market("m1", "trump_win_election", yes("yes"))
	b := market("m2", "trump_win_election_pennsylvania", yes("yes"))
	dep, ok := Classify(a, &a.Conditions[0], b, &b.Conditions[0])
	require.True(t, ok)
	assert.Equal(t, domain.PatternSubsetImplication, dep.Pattern)
	assert.Equal(t, domain.SecondImpliesFirst, dep.Direction)
}

func TestBalanceOfPowerHasNoConverse(t *testing.T) {
	a := market("m1", "trump_senate", yes("yes"))
	b := market("m2", "trump_white_house", yes("yes"))
	dep, ok := Classify(a, &a.Conditions[0], b, &b.Conditions[0])
	require.True(t, ok)
	// The senate market is first, so the executive (second) implies it.
	assert.Equal(t, domain.SecondImpliesFirst, dep.Direction)
}
