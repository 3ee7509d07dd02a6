// Package entity extracts named entities from normalized market text using a
// fixed keyword vocabulary.
package entity

import (
	"strings"
	"unicode"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Extract splits normalized text on underscores and returns every token found
// in the vocabulary as a candidate entity. Matching is exact.
func Extract(normalized string) domain.EntitySet {
	out := make(domain.EntitySet)
	for _, tok := range strings.Split(normalized, "_") {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok == "" || !InVocabulary(tok) {
			continue
		}
		out.Add(domain.Candidate(tok))
	}
	return out
}

// Markets computes the entity set of every market from its normalized title.
// Call it once, after normalization.
func Markets(markets []domain.Market) {
	for i := range markets {
		markets[i].Entities = Extract(markets[i].Title)
	}
}
