package dependency

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Range grammar for numeric condition text. Patterns are tried in order:
// "A-B%", then ">A%", then "<A%". The percent sign is optional.
var (
	RangeExpr      = regexp.MustCompile(`(\d+\.?\d*)%?\s*-\s*(\d+\.?\d*)%?`)
	LowerBoundExpr = regexp.MustCompile(`>\s*(\d+\.?\d*)%?`)
	UpperBoundExpr = regexp.MustCompile(`<\s*(\d+\.?\d*)%?`)
)

// Unbounded stands in for +inf as the upper end of a ">A" range.
var Unbounded = decimal.NewFromInt(1_000_000)

// Range is an interval [Low, High] of exact decimals.
type Range struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// StrictSubsetOf reports whether r lies inside o and differs from it.
func (r Range) StrictSubsetOf(o Range) bool {
	inside := r.Low.GreaterThanOrEqual(o.Low) && r.High.LessThanOrEqual(o.High)
	return inside && (r.Low.GreaterThan(o.Low) || r.High.LessThan(o.High))
}

// ParseRange extracts a range from condition text. ">A" maps to
// [A, Unbounded) and "<A" to [0, A). Text that matches none of the forms, or
// whose numbers do not parse, yields ok=false.
func ParseRange(text string) (Range, bool) {
	if m := RangeExpr.FindStringSubmatch(text); m != nil {
		lo, err1 := decimal.NewFromString(m[1])
		hi, err2 := decimal.NewFromString(m[2])
		if err1 != nil || err2 != nil {
			return Range{}, false
		}
		return Range{Low: lo, High: hi}, true
	}
	if m := LowerBoundExpr.FindStringSubmatch(text); m != nil {
		lo, err := decimal.NewFromString(m[1])
		if err != nil {
			return Range{}, false
		}
		return Range{Low: lo, High: Unbounded}, true
	}
	if m := UpperBoundExpr.FindStringSubmatch(text); m != nil {
		hi, err := decimal.NewFromString(m[1])
		if err != nil {
			return Range{}, false
		}
		return Range{Low: decimal.Zero, High: hi}, true
	}
	return Range{}, false
}
