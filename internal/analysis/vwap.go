package analysis

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// VWAP returns total taker amount over total maker amount. Fills with a zero
// maker amount are skipped; zero total volume yields zero.
func VWAP(fills []domain.Fill) decimal.Decimal {
	volume, cost := decimal.Zero, decimal.Zero
	for _, f := range fills {
		if f.MakerAmountFilled.IsZero() {
			continue
		}
		volume = volume.Add(f.MakerAmountFilled)
		cost = cost.Add(f.TakerAmountFilled)
	}
	if volume.IsZero() {
		return decimal.Zero
	}
	return cost.Div(volume)
}

// VWAPByAsset computes VWAP per maker asset.
func VWAPByAsset(fills []domain.Fill) map[string]decimal.Decimal {
	groups := make(map[string][]domain.Fill)
	for _, f := range fills {
		groups[f.MakerAssetID] = append(groups[f.MakerAssetID], f)
	}
	out := make(map[string]decimal.Decimal, len(groups))
	for asset, fs := range groups {
		out[asset] = VWAP(fs)
	}
	return out
}
