package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		tags  []string
		want  domain.Category
	}{
		{"tag politics", "Anything", []string{"US Election"}, domain.CategoryPolitics},
		{"tag crypto", "Anything", []string{"Bitcoin"}, domain.CategoryCrypto},
		{"tag sports", "Anything", []string{"NBA"}, domain.CategorySports},
		{"tag economics", "Anything", []string{"Fed Rates"}, domain.CategoryEconomics},
		{"tag science", "Anything", []string{"Climate"}, domain.CategoryScience},
		{"first matching tag wins", "Anything", []string{"misc", "NFL", "Politics"}, domain.CategorySports},
		{"tags beat title", "Will Trump win?", []string{"Crypto"}, domain.CategoryCrypto},
		{"title politics", "Will Trump win Pennsylvania?", nil, domain.CategoryPolitics},
		{"title crypto", "BTC above 100k?", nil, domain.CategoryCrypto},
		{"title sports", "Who wins the league?", nil, domain.CategorySports},
		{"title crypto full name", "Ethereum above $5k?", nil, domain.CategoryCrypto},
		{"title solana", "Solana flips BNB?", nil, domain.CategoryCrypto},
		{"word match only", "Solar output in Ethiopia", nil, domain.CategoryOther},
		{"senate title word", "Senate resolution passes?", []string{"congress"}, domain.CategoryPolitics},
		{"resolution is not solana", "Court resolution by May?", nil, domain.CategoryOther},
		{"other", "Will it rain?", []string{"weather"}, domain.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(domain.Market{Title: tt.title, Tags: tt.tags})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyLeavesTagsAlone(t *testing.T) {
	markets := []domain.Market{
		{Title: "Will Trump win?", Tags: []string{"US"}},
		{Title: "x", Tags: []string{"other"}},
		{Title: "BTC above 100k?"},
	}
	Apply(markets)
	assert.Equal(t, domain.CategoryPolitics, markets[0].Category)
	assert.Equal(t, []string{"US"}, markets[0].Tags)
	assert.Equal(t, domain.CategoryOther, markets[1].Category)
	assert.Equal(t, []string{"other"}, markets[1].Tags)
	assert.Equal(t, domain.CategoryCrypto, markets[2].Category)
	assert.Empty(t, markets[2].Tags)
}
