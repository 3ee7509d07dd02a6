// Package analysis inspects on-chain fills for arbitrage-style behaviour.
package analysis

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// NormalizeWallet returns the checksummed form of a hex address, or false
// when s is not an address.
func NormalizeWallet(s string) (string, bool) {
	if !common.IsHexAddress(s) {
		return "", false
	}
	return common.HexToAddress(s).Hex(), true
}

// Executions derives per-wallet executions from fills. The outcome token of a
// fill is whichever side's asset maps to a catalog market; the other side is
// collateral. Both maker and taker get an execution in that market. Fills
// touching no known market or carrying malformed wallets are skipped.
func Executions(fills []domain.Fill, assetToMarket map[string]string) []domain.Execution {
	var out []domain.Execution
	for _, f := range fills {
		assetID, amount := f.MakerAssetID, f.MakerAmountFilled
		marketID, ok := assetToMarket[assetID]
		if !ok {
			assetID, amount = f.TakerAssetID, f.TakerAmountFilled
			if marketID, ok = assetToMarket[assetID]; !ok {
				continue
			}
		}
		for _, raw := range []string{f.Maker, f.Taker} {
			wallet, ok := NormalizeWallet(raw)
			if !ok {
				continue
			}
			out = append(out, domain.Execution{
				Wallet:    wallet,
				MarketID:  marketID,
				AssetID:   assetID,
				Amount:    amount,
				Timestamp: f.Timestamp,
			})
		}
	}
	return out
}

// FlagWallets groups executions by wallet and flags each wallet that
// executed more than once in at least one market, which suggests a
// multi-leg position. Results are sorted by wallet.
func FlagWallets(execs []domain.Execution, now time.Time) []domain.FlaggedWallet {
	perWallet := make(map[string]map[string]int)
	totals := make(map[string]int)
	for _, e := range execs {
		markets, ok := perWallet[e.Wallet]
		if !ok {
			markets = make(map[string]int)
			perWallet[e.Wallet] = markets
		}
		markets[e.MarketID]++
		totals[e.Wallet]++
	}

	var flagged []domain.FlaggedWallet
	for wallet, markets := range perWallet {
		var repeated []string
		for marketID, n := range markets {
			if n > 1 {
				repeated = append(repeated, marketID)
			}
		}
		if len(repeated) == 0 {
			continue
		}
		sort.Strings(repeated)
		flagged = append(flagged, domain.FlaggedWallet{
			Wallet:     wallet,
			MarketIDs:  repeated,
			Executions: totals[wallet],
			FlaggedAt:  now,
		})
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Wallet < flagged[j].Wallet })
	return flagged
}
