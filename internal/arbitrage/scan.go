package arbitrage

import (
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/relation"
)

// Scan evaluates a whole catalog once: rebalancing for every market and
// combinatorial for every relatedness edge.
func (d *Detector) Scan(markets []domain.Market, edges []relation.Edge) []domain.Opportunity {
	var out []domain.Opportunity
	for i := range markets {
		if opp, ok := d.Rebalancing(&markets[i]); ok {
			out = append(out, opp)
		}
	}
	for _, e := range edges {
		out = append(out, d.Combinatorial(&markets[e.I], &markets[e.J])...)
	}
	return out
}
