// Package normalize canonicalizes market text and aligns resolution dates
// across markets that share a grouping key.
package normalize

import (
	"strings"
	"unicode"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// stopWords are dropped from normalized text.
var stopWords = map[string]struct{}{
	"the": {}, "will": {}, "be": {}, "outcome": {}, "a": {},
	"an": {}, "is": {}, "of": {}, "in": {}, "and": {},
}

// Text lowercases s, replaces every rune that is not a letter, digit,
// whitespace, or hyphen with a space, drops stop words and joins the
// surviving tokens with underscores. Text(Text(s)) == Text(s).
func Text(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			return r
		}
		return ' '
	}, strings.ToLower(s))

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, "_")
}

// AlignGroupDates sets every grouped market's end date to the latest end date
// in its group. Ungrouped markets are left alone.
func AlignGroupDates(markets []domain.Market) {
	latest := make(map[string]int)
	for i := range markets {
		key := markets[i].GroupKey
		if key == "" {
			continue
		}
		j, seen := latest[key]
		if !seen || markets[i].EndDate.After(markets[j].EndDate) {
			latest[key] = i
		}
	}
	for i := range markets {
		if j, ok := latest[markets[i].GroupKey]; ok && markets[i].GroupKey != "" {
			markets[i].EndDate = markets[j].EndDate
		}
	}
}

// Markets aligns group dates and normalizes every title and condition name
// in place. Condition labels keep their raw text.
func Markets(markets []domain.Market) {
	AlignGroupDates(markets)
	for i := range markets {
		m := &markets[i]
		m.Title = Text(m.Title)
		for j := range m.Conditions {
			c := &m.Conditions[j]
			if c.Label == "" {
				c.Label = c.Name
			}
			c.Name = Text(c.Name)
		}
	}
}
