package domain

// Direction states which argument of a classification implies the other.
type Direction int

const (
	FirstImpliesSecond Direction = iota + 1
	SecondImpliesFirst
)

// Flip returns the direction as seen with the arguments swapped.
func (d Direction) Flip() Direction {
	if d == FirstImpliesSecond {
		return SecondImpliesFirst
	}
	return FirstImpliesSecond
}

func (d Direction) String() string {
	switch d {
	case FirstImpliesSecond:
		return "first_implies_second"
	case SecondImpliesFirst:
		return "second_implies_first"
	default:
		return "none"
	}
}

// PatternKind names the rule that produced a dependency.
type PatternKind string

const (
	PatternWinnerMargin      PatternKind = "winner_margin"
	PatternSubsetImplication PatternKind = "subset_implication"
	PatternNumericRange      PatternKind = "numeric_range"
	PatternStateNational     PatternKind = "state_national"
	PatternBalanceOfPower    PatternKind = "balance_of_power"
)

// Dependency is a logical implication between two conditions. It is
// recomputed on demand and never persisted.
type Dependency struct {
	Pattern   PatternKind
	Direction Direction
}
