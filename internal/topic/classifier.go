// Package topic assigns a coarse category to markets from their tags and
// title.
package topic

import (
	"strings"
	"unicode"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type keywordSet struct {
	category domain.Category
	words    []string
}

// Tag keywords match as substrings of a lowercased tag. Order decides ties.
var tagKeywords = []keywordSet{
	{domain.CategoryPolitics, []string{"politics", "election", "white house"}},
	{domain.CategoryCrypto, []string{"crypto", "bitcoin", "ethereum", "nft"}},
	{domain.CategorySports, []string{"sport", "nba", "nfl", "soccer"}},
	{domain.CategoryEconomics, []string{"economy", "fed", "rates", "inflation"}},
	{domain.CategoryScience, []string{"science", "space", "covid", "climate"}},
}

// Title keywords match whole words of the lowercased title.
var titleKeywords = []keywordSet{
	{domain.CategoryPolitics, []string{"trump", "biden", "senate"}},
	{domain.CategoryCrypto, []string{"btc", "bitcoin", "eth", "ethereum", "sol", "solana"}},
	{domain.CategorySports, []string{"game", "match", "league"}},
}

// Classify returns the category of m. Tags are checked first, then the
// title, falling back to CategoryOther.
func Classify(m domain.Market) domain.Category {
	for _, tag := range m.Tags {
		t := strings.ToLower(tag)
		for _, ks := range tagKeywords {
			for _, w := range ks.words {
				if strings.Contains(t, w) {
					return ks.category
				}
			}
		}
	}

	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(m.Title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	for _, ks := range titleKeywords {
		for _, w := range ks.words {
			if _, ok := words[w]; ok {
				return ks.category
			}
		}
	}
	return domain.CategoryOther
}

// Apply sets each market's Category. Tags stay the event's own labels so
// that the grapher's shared-tag gate never matches on a category alone.
func Apply(markets []domain.Market) {
	for i := range markets {
		markets[i].Category = Classify(markets[i])
	}
}
