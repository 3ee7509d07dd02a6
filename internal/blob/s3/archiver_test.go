package s3blob

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	meta    map[string]map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (w *memWriter) Write(_ context.Context, obj domain.BlobObject) error {
	w.objects[obj.Key] = obj.Body
	w.meta[obj.Key] = obj.Metadata
	return nil
}

type fakeLister struct {
	opps  []domain.Opportunity
	since *time.Time
}

func (f *fakeLister) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	f.since = opts.Since
	return f.opps, nil
}

func TestArchiveCatalog(t *testing.T) {
	w := newMemWriter()
	a := NewArchiver(w, nil)
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	markets := []domain.Market{{
		ID:      "m1",
		Title:   "trump_win_election",
		EndDate: time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
		Conditions: []domain.Condition{
			{Name: "yes", Label: "Yes", Price: decimal.RequireFromString("0.55"), Outcome: domain.OutcomeYes, AssetID: "a1"},
		},
		Entities: domain.NewEntitySet(domain.Candidate("trump")),
	}}
	edges := []domain.RelatednessEdge{{MarketA: "m1", MarketB: "m2", Similarity: 0.7}}

	path, err := a.ArchiveCatalog(t.Context(), "run-1", at, markets, edges)
	require.NoError(t, err)
	assert.Equal(t, "archive/catalog/2026-05-02/run-1/markets.jsonl", path)

	body := string(w.objects[path])
	assert.Contains(t, body, `"end_date":"2026-11-03"`)
	assert.Contains(t, body, `"price":"0.55"`)
	assert.Contains(t, body, `"entities":["trump"]`)
	assert.True(t, strings.HasSuffix(body, "\n"))
	assert.Contains(t, string(w.objects["archive/catalog/2026-05-02/run-1/relations.jsonl"]), `"similarity":0.7`)
	assert.Equal(t, map[string]string{"kind": "markets", "records": "1"}, w.meta[path])
}

func TestArchiveOpportunities(t *testing.T) {
	w := newMemWriter()
	lister := &fakeLister{opps: []domain.Opportunity{
		{ID: "o1", Kind: domain.OpportunityRebalancing, MarketID: "m1", Side: domain.SideLong, Profit: decimal.RequireFromString("0.05")},
		{ID: "o2", Kind: domain.OpportunityCombinatorial, MarketID: "m1", RelatedMarketID: "m2", Profit: decimal.RequireFromString("0.1")},
	}}
	a := NewArchiver(w, lister)
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	n, err := a.ArchiveOpportunities(t.Context(), since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NotNil(t, lister.since)
	assert.True(t, since.Equal(*lister.since))

	lines := bytes.Split(bytes.TrimSpace(w.objects["archive/opportunities/2026-05-01.jsonl"]), []byte("\n"))
	assert.Len(t, lines, 2)
}
