// Package dependency decides whether one market condition logically implies
// a condition of another market, using an ordered list of pattern rules.
package dependency

import (
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Classify returns the implication between (ma, ca) and (mb, cb), if any.
// Markets with the same id never depend on each other. Pairs with no shared
// entity where neither title contains the other are skipped without running
// the rules. Otherwise the first matching rule decides.
func Classify(ma *domain.Market, ca *domain.Condition, mb *domain.Market, cb *domain.Condition) (domain.Dependency, bool) {
	if ma.ID == mb.ID {
		return domain.Dependency{}, false
	}
	shared := ma.Entities.Intersect(mb.Entities)
	if len(shared) == 0 && !strings.Contains(ma.Title, mb.Title) && !strings.Contains(mb.Title, ma.Title) {
		return domain.Dependency{}, false
	}

	a := side{m: ma, c: ca}
	b := side{m: mb, c: cb}
	for _, r := range rules {
		if r.implies(a, b, shared) {
			return domain.Dependency{Pattern: r.kind(), Direction: domain.FirstImpliesSecond}, true
		}
		if r.implies(b, a, shared) {
			return domain.Dependency{Pattern: r.kind(), Direction: domain.SecondImpliesFirst}, true
		}
	}
	return domain.Dependency{}, false
}
