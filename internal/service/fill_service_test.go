package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type staticFills struct {
	fills []domain.Fill
	since time.Time
}

func (s *staticFills) FetchOrderFills(_ context.Context, since time.Time, _ int) ([]domain.Fill, error) {
	s.since = since
	return s.fills, nil
}

type memBlob struct{ objects map[string]string }

func (m *memBlob) Write(_ context.Context, obj domain.BlobObject) error {
	m.objects[obj.Key] = string(obj.Body)
	return nil
}

type memWallets struct{ flagged []domain.FlaggedWallet }

func (m *memWallets) UpsertFlagged(_ context.Context, ws []domain.FlaggedWallet) error {
	m.flagged = append(m.flagged, ws...)
	return nil
}

func (m *memWallets) ListFlagged(context.Context, domain.ListOpts) ([]domain.FlaggedWallet, error) {
	return m.flagged, nil
}

const testWallet = "0x52908400098527886e0f7030069857d2e4169ee7"

func TestFillServiceRun(t *testing.T) {
	t1 := time.Unix(1700000000, 0).UTC()
	t2 := t1.Add(time.Minute)
	fetcher := &staticFills{fills: []domain.Fill{
		{TransactionHash: "0x1", Timestamp: t1, Maker: testWallet, MakerAssetID: "yes1", MakerAmountFilled: decimal.NewFromInt(10), Taker: "x", TakerAssetID: "0", TakerAmountFilled: decimal.NewFromInt(6)},
		{TransactionHash: "0x2", Timestamp: t2, Maker: testWallet, MakerAssetID: "no1", MakerAmountFilled: decimal.NewFromInt(10), Taker: "x", TakerAssetID: "0", TakerAmountFilled: decimal.NewFromInt(3)},
	}}
	blob := &memBlob{objects: map[string]string{}}
	wallets := &memWallets{}
	svc := NewFillService(FillConfig{Fetcher: fetcher, Writer: blob, Wallets: wallets, Logger: discard()})
	svc.now = func() time.Time { return time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC) }

	report, err := svc.Run(t.Context(), t1.Add(-time.Hour), map[string]string{"yes1": "m1", "no1": "m1"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fills)
	assert.Equal(t, 2, report.Executions)
	assert.Equal(t, t2, report.Latest)
	require.Len(t, report.Flagged, 1)
	assert.Equal(t, []string{"m1"}, report.Flagged[0].MarketIDs)
	assert.Equal(t, "0.6", report.VWAP["yes1"].String())
	assert.Len(t, wallets.flagged, 1)

	csvBody := blob.objects["goldsky/orderFilled/2026-02-03.csv"]
	lines := strings.Split(strings.TrimSpace(csvBody), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1700000000,"))
}

func TestFillServiceNoFills(t *testing.T) {
	since := time.Unix(1700000000, 0).UTC()
	svc := NewFillService(FillConfig{Fetcher: &staticFills{}, Logger: discard()})
	report, err := svc.Run(t.Context(), since, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Fills)
	assert.Equal(t, since, report.Latest)
}
