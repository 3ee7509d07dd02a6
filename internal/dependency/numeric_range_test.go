package dependency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseRange(t *testing.T) {
	tests := []struct {
		in     string
		ok     bool
		lo, hi string
	}{
		{"5-10%", true, "5", "10"},
		{"0 - 20", true, "0", "20"},
		{"2.5%-5%", true, "2.5", "5"},
		{">15%", true, "15", "1000000"},
		{"> 3.5", true, "3.5", "1000000"},
		{"<5%", true, "0", "5"},
		{"yes", false, "", ""},
		{"", false, "", ""},
		{"more than five", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, ok := ParseRange(tt.in)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.True(t, d(tt.lo).Equal(r.Low), "low %s", r.Low)
			assert.True(t, d(tt.hi).Equal(r.High), "high %s", r.High)
		})
	}
}

func TestStrictSubsetOf(t *testing.T) {
	r := func(lo, hi string) Range { return Range{Low: d(lo), High: d(hi)} }

	assert.True(t, r("5", "10").StrictSubsetOf(r("0", "20")))
	assert.True(t, r("0", "10").StrictSubsetOf(r("0", "20")))
	assert.False(t, r("0", "20").StrictSubsetOf(r("0", "20")))
	assert.False(t, r("0", "20").StrictSubsetOf(r("5", "10")))
	assert.False(t, r("5", "25").StrictSubsetOf(r("0", "20")))
	assert.True(t, r("20", "1000000").StrictSubsetOf(r("10", "1000000")))
}
