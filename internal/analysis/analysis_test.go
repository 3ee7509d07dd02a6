package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	walletA = "0x52908400098527886e0f7030069857d2e4169ee7"
	walletB = "0x8617e340b3d01fa5f11f306f4090fd50e238070d"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalizeWallet(t *testing.T) {
	got, ok := NormalizeWallet(walletA)
	require.True(t, ok)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", got)

	_, ok = NormalizeWallet("not-a-wallet")
	assert.False(t, ok)
}

func TestExecutionsAndFlagging(t *testing.T) {
	assets := map[string]string{"yes1": "m1", "no1": "m1", "yes2": "m2"}
	ts := time.Unix(1700000000, 0).UTC()
	fills := []domain.Fill{
		// A buys YES in m1 from B (collateral "0" on the maker side)
		{Maker: walletB, MakerAssetID: "0", MakerAmountFilled: d("4"), Taker: walletA, TakerAssetID: "yes1", TakerAmountFilled: d("10"), Timestamp: ts},
		// A buys NO in m1
		{Maker: walletA, MakerAssetID: "no1", MakerAmountFilled: d("10"), Taker: "bogus", TakerAssetID: "0", TakerAmountFilled: d("5"), Timestamp: ts},
		// B trades once in m2
		{Maker: walletB, MakerAssetID: "yes2", MakerAmountFilled: d("3"), Taker: "bogus", TakerAssetID: "0", TakerAmountFilled: d("1"), Timestamp: ts},
		// unknown market
		{Maker: walletA, MakerAssetID: "zzz", Taker: walletB, TakerAssetID: "0", Timestamp: ts},
	}

	execs := Executions(fills, assets)
	assert.Len(t, execs, 4) // 2 for fill one, 1 each for fills two and three
	assert.Equal(t, "yes1", execs[0].AssetID)
	assert.Equal(t, "10", execs[0].Amount.String())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	flagged := FlagWallets(execs, now)
	require.Len(t, flagged, 1)
	want, _ := NormalizeWallet(walletA)
	assert.Equal(t, want, flagged[0].Wallet)
	assert.Equal(t, []string{"m1"}, flagged[0].MarketIDs)
	assert.Equal(t, 2, flagged[0].Executions)
	assert.Equal(t, now, flagged[0].FlaggedAt)
}

func TestFlagWalletsNeedsRepeatInSameMarket(t *testing.T) {
	execs := []domain.Execution{
		{Wallet: "w", MarketID: "m1"},
		{Wallet: "w", MarketID: "m2"},
	}
	assert.Empty(t, FlagWallets(execs, time.Now()))
}

func TestVWAP(t *testing.T) {
	tests := []struct {
		name  string
		fills []domain.Fill
		want  string
	}{
		{"empty", nil, "0"},
		{"all zero maker", []domain.Fill{{MakerAmountFilled: d("0"), TakerAmountFilled: d("5")}}, "0"},
		{
			"weighted",
			[]domain.Fill{
				{MakerAmountFilled: d("100"), TakerAmountFilled: d("40")},
				{MakerAmountFilled: d("100"), TakerAmountFilled: d("60")},
				{MakerAmountFilled: d("0"), TakerAmountFilled: d("999")},
			},
			"0.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VWAP(tt.fills).String())
		})
	}
}

func TestVWAPByAsset(t *testing.T) {
	got := VWAPByAsset([]domain.Fill{
		{MakerAssetID: "a", MakerAmountFilled: d("10"), TakerAmountFilled: d("2")},
		{MakerAssetID: "b", MakerAmountFilled: d("4"), TakerAmountFilled: d("3")},
	})
	assert.Equal(t, "0.2", got["a"].String())
	assert.Equal(t, "0.75", got["b"].String())
}
