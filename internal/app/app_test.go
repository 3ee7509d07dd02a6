package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/metrics"
	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memOpps struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (m *memOpps) Insert(_ context.Context, opp domain.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opps = append(m.opps, opp)
	return nil
}
func (m *memOpps) ListRecent(context.Context, domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}
func (m *memOpps) ListByMarket(context.Context, string, domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

const gammaEvents = `[{
  "id": "e1",
  "title": "Senate 2026",
  "endDate": "2026-11-03T00:00:00Z",
  "tags": [{"label": "Politics"}],
  "markets": [{
    "id": "m1",
    "question": "Will the Democrats win the Senate in 2026?",
    "endDate": "2026-11-03T00:00:00Z",
    "outcomes": "[\"Yes\", \"No\"]",
    "outcomePrices": "[\"0.40\", \"0.50\"]",
    "clobTokenIds": "[\"a-yes\", \"a-no\"]"
  }]
}]`

func TestScanModeDeliversRebalancing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") != "0" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(gammaEvents))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Mode = config.ModeScan
	opps := &memOpps{}
	deps := &Dependencies{
		Metrics:          metrics.New("test"),
		Gamma:            polymarket.NewGammaClient(srv.URL),
		OpportunityStore: opps,
	}

	a := New(&cfg, discard())
	require.NoError(t, a.ScanMode(context.Background(), deps))

	require.Len(t, opps.opps, 1)
	opp := opps.opps[0]
	assert.Equal(t, domain.OpportunityRebalancing, opp.Kind)
	assert.Equal(t, domain.SideLong, opp.Side)
	assert.Equal(t, "m1", opp.MarketID)
	assert.True(t, opp.Profit.Equal(decimal.RequireFromString("0.10")), opp.Profit.String())
}

func TestScanModeEmptyCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := config.Defaults()
	a := New(&cfg, discard())
	err := a.ScanMode(context.Background(), &Dependencies{
		Metrics: metrics.New("test"),
		Gamma:   polymarket.NewGammaClient(srv.URL),
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
}

func TestRunStreamNeedsLock(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, discard())
	err := a.StreamMode(context.Background(), &Dependencies{})
	assert.Error(t, err)
}

type fakeLocks struct {
	mu      sync.Mutex
	extends int
	failAt  int
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

func (f *fakeLocks) Extend(context.Context, string, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extends++
	if f.failAt > 0 && f.extends >= f.failAt {
		return domain.ErrLockHeld
	}
	return nil
}

func TestHoldLockStopsWhenLockLost(t *testing.T) {
	locks := &fakeLocks{failAt: 3}
	err := holdLock(context.Background(), locks, StreamWriterLock, time.Second, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, 3, locks.extends)
}

func TestHoldLockExitsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := holdLock(ctx, &fakeLocks{}, StreamWriterLock, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type memPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (m *memPrices) SetPrice(_ context.Context, id string, p decimal.Decimal, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "broken" {
		return errors.New("cache down")
	}
	m.prices[id] = p
	return nil
}
func (m *memPrices) GetPrice(context.Context, string) (decimal.Decimal, time.Time, error) {
	return decimal.Zero, time.Time{}, domain.ErrNotFound
}
func (m *memPrices) GetPrices(context.Context, []string) (map[string]decimal.Decimal, error) {
	return nil, nil
}
func (m *memPrices) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prices)
}

func TestMirrorPricesSurvivesCacheErrors(t *testing.T) {
	ticks := make(chan domain.Tick, 3)
	ticks <- domain.Tick{AssetID: "broken", Price: decimal.RequireFromString("0.1")}
	ticks <- domain.Tick{AssetID: "a", Price: decimal.RequireFromString("0.2")}
	ticks <- domain.Tick{AssetID: "b", Price: decimal.RequireFromString("0.3")}

	cache := &memPrices{prices: map[string]decimal.Decimal{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mirrorPrices(ctx, ticks, cache, discard()) }()

	assert.Eventually(t, func() bool { return cache.len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type countingArchiver struct {
	mu     sync.Mutex
	sinces []time.Time
}

func (c *countingArchiver) ArchiveOpportunities(_ context.Context, since time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinces = append(c.sinces, since)
	if len(c.sinces) == 1 {
		return 0, errors.New("bucket unavailable")
	}
	return 1, nil
}

func (c *countingArchiver) calls() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.sinces...)
}

func TestArchiveLoopKeepsCursorOnFailure(t *testing.T) {
	arch := &countingArchiver{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- archiveLoop(ctx, arch, 5*time.Millisecond, discard()) }()

	assert.Eventually(t, func() bool { return len(arch.calls()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	calls := arch.calls()
	assert.Equal(t, calls[0], calls[1], "failed pass retries the same window")
	assert.True(t, calls[2].After(calls[1]))
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "backtest"
	a := New(&cfg, discard())
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "backtest"`)
	a.Close()
	a.Close()
}
