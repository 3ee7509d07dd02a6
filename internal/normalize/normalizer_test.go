package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Will Donald Trump win?", "donald_trump_win"},
		{"The outcome of the election is...", "election"},
		{"NBA: Lakers vs Warriors", "nba_lakers_vs_warriors"},
		{"5-10%", "5-10"},
		{"  Bitcoin   above $100k  ", "bitcoin_above_100k"},
		{"", ""},
		{"the a an", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"Will Donald Trump win?",
		"Fed cuts rates by 50+ bps in December?",
		"Trump wins Pennsylvania by 5-10%",
		"Élection présidentielle: Macron?",
		"trump_win_pennsylvania",
		"__weird__spacing__",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAlignGroupDates(t *testing.T) {
	markets := []domain.Market{
		{ID: "a", GroupKey: "g1", EndDate: date(2024, 11, 5)},
		{ID: "b", GroupKey: "g1", EndDate: date(2024, 11, 30)},
		{ID: "c", GroupKey: "g2", EndDate: date(2025, 1, 1)},
		{ID: "d", EndDate: date(2024, 1, 1)},
		{ID: "e", GroupKey: "g1", EndDate: date(2024, 11, 6)},
	}
	AlignGroupDates(markets)

	assert.Equal(t, date(2024, 11, 30), markets[0].EndDate)
	assert.Equal(t, date(2024, 11, 30), markets[1].EndDate)
	assert.Equal(t, date(2025, 1, 1), markets[2].EndDate)
	assert.Equal(t, date(2024, 1, 1), markets[3].EndDate)
	assert.Equal(t, date(2024, 11, 30), markets[4].EndDate)
}

func TestMarketsKeepsRawLabel(t *testing.T) {
	markets := []domain.Market{{
		ID:    "m1",
		Title: "Will Trump win Pennsylvania?",
		Conditions: []domain.Condition{
			{Name: ">5%"},
			{Name: "Yes", Label: "Yes"},
		},
	}}
	Markets(markets)

	require.Len(t, markets[0].Conditions, 2)
	assert.Equal(t, "trump_win_pennsylvania", markets[0].Title)
	assert.Equal(t, "5", markets[0].Conditions[0].Name)
	assert.Equal(t, ">5%", markets[0].Conditions[0].Label)
	assert.Equal(t, "yes", markets[0].Conditions[1].Name)
}
