package dependency

import (
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// side is one (market, condition) argument of a classification.
type side struct {
	m *domain.Market
	c *domain.Condition
}

func (s side) affirmative() bool { return s.c.Outcome == domain.OutcomeYes }

// rule is one implication pattern. implies reports whether x's condition
// implies y's condition under the pattern; the classifier tries both
// orientations so every rule answers consistently when arguments swap.
type rule interface {
	kind() domain.PatternKind
	implies(x, y side, shared domain.EntitySet) bool
}

// rules are evaluated in this order and the first match wins.
var rules = []rule{
	winnerMargin{},
	subsetImplication{},
	numericRange{},
	stateNational{},
	balanceOfPower{},
}

// winnerMargin: "X wins by N points" implies "X wins".
type winnerMargin struct{}

func (winnerMargin) kind() domain.PatternKind { return domain.PatternWinnerMargin }

func (winnerMargin) implies(x, y side, shared domain.EntitySet) bool {
	if !isMarginTitle(x.m.Title) || !isWinnerTitle(y.m.Title) {
		return false
	}
	if !x.affirmative() || !y.affirmative() {
		return false
	}
	for e := range shared {
		if e.Kind != domain.EntityCandidate {
			continue
		}
		if references(x, e.Value) && references(y, e.Value) {
			return true
		}
	}
	return false
}

func isWinnerTitle(t string) bool {
	return !isMarginTitle(t) && containsAny(t, "win", "victory")
}

func isMarginTitle(t string) bool {
	return containsAny(t, "margin", "points") || hasToken(t, "by")
}

func references(s side, name string) bool {
	return strings.Contains(s.m.Title, name) || strings.Contains(s.c.Name, name)
}

// subsetImplication: a title that literally contains another is the more
// specific question, so its affirmative condition implies the other's.
type subsetImplication struct{}

func (subsetImplication) kind() domain.PatternKind { return domain.PatternSubsetImplication }

func (subsetImplication) implies(x, y side, _ domain.EntitySet) bool {
	if y.m.Title == "" || x.m.Title == y.m.Title {
		return false
	}
	return strings.Contains(x.m.Title, y.m.Title) && x.affirmative() && y.affirmative()
}

// numericRange: a condition whose interval lies strictly inside another
// condition's interval implies it.
type numericRange struct{}

func (numericRange) kind() domain.PatternKind { return domain.PatternNumericRange }

func (numericRange) implies(x, y side, _ domain.EntitySet) bool {
	rx, ok := conditionRange(x.c)
	if !ok {
		return false
	}
	ry, ok := conditionRange(y.c)
	if !ok {
		return false
	}
	return rx.StrictSubsetOf(ry)
}

// conditionRange parses the raw label first; normalization strips the
// comparison and decimal characters the grammar relies on.
func conditionRange(c *domain.Condition) (Range, bool) {
	if r, ok := ParseRange(c.Label); ok {
		return r, true
	}
	return ParseRange(c.Name)
}

// stateNational: winning a named state implies winning the national contest.
type stateNational struct{}

func (stateNational) kind() domain.PatternKind { return domain.PatternStateNational }

func (stateNational) implies(x, y side, _ domain.EntitySet) bool {
	return isStateTitle(x.m.Title) && isNationalTitle(y.m.Title) && x.affirmative() && y.affirmative()
}

func isStateTitle(t string) bool {
	return strings.Contains(t, "win") && containsAny(t, "pennsylvania", "georgia", "arizona")
}

func isNationalTitle(t string) bool {
	return !isStateTitle(t) && strings.Contains(t, "win") && containsAny(t, "election", "presidency")
}

// balanceOfPower: winning the presidency implies the senate market. There is
// deliberately no senate-to-presidency rule.
type balanceOfPower struct{}

func (balanceOfPower) kind() domain.PatternKind { return domain.PatternBalanceOfPower }

func (balanceOfPower) implies(x, y side, _ domain.EntitySet) bool {
	return isExecutiveTitle(x.m.Title) && isSenateTitle(y.m.Title) && x.affirmative() && y.affirmative()
}

func isExecutiveTitle(t string) bool {
	return !strings.Contains(t, "senate") && containsAny(t, "presidency", "white_house", "white house")
}

func isSenateTitle(t string) bool {
	return strings.Contains(t, "senate") && !containsAny(t, "presidency", "white_house", "white house")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasToken(s, tok string) bool {
	for _, t := range strings.Split(s, "_") {
		if t == tok {
			return true
		}
	}
	return false
}
