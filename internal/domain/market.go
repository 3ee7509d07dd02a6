package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the polarity of a condition: yes, no, or not known.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeYes
	OutcomeNo
)

// String returns the lowercase outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	default:
		return "unknown"
	}
}

// ParseOutcome maps raw outcome text to a polarity. Only "yes" and "no"
// (case-insensitive) carry a polarity.
func ParseOutcome(s string) Outcome {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "yes"):
		return OutcomeYes
	case strings.EqualFold(s, "no"):
		return OutcomeNo
	default:
		return OutcomeUnknown
	}
}

// Condition is one tradable outcome of a market.
type Condition struct {
	Name    string          // normalized
	Label   string          // raw outcome text as ingested
	Price   decimal.Decimal // probability in [0,1]
	Outcome Outcome
	AssetID string // empty when the condition cannot receive ticks
}

// Tradable reports whether ticks can be routed to this condition.
func (c Condition) Tradable() bool { return c.AssetID != "" }

// Market is a prediction-market question and its outcome conditions.
type Market struct {
	ID         string
	Title      string
	EndDate    time.Time // date only, UTC midnight
	Conditions []Condition
	GroupKey   string // neg-risk market id; empty when ungrouped
	Tags       []string
	Category   Category
	Entities   EntitySet
}

// PriceSum returns the exact sum of all condition prices.
func (m Market) PriceSum() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range m.Conditions {
		sum = sum.Add(c.Price)
	}
	return sum
}

// HasTag reports whether the market carries the given topic tag.
func (m Market) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can read a market outside a lock.
func (m Market) Clone() Market {
	out := m
	out.Conditions = append([]Condition(nil), m.Conditions...)
	out.Tags = append([]string(nil), m.Tags...)
	out.Entities = m.Entities.Clone()
	return out
}
