package postgres

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func TestConditionsJSON(t *testing.T) {
	in := []domain.Condition{
		{Name: "yes", Label: "Yes", Price: decimal.RequireFromString("0.415"), Outcome: domain.OutcomeYes, AssetID: "111"},
		{Name: "10_20", Label: "10-20%", Price: decimal.RequireFromString("0.1"), Outcome: domain.OutcomeUnknown},
	}
	data, err := encodeConditions(in)
	require.NoError(t, err)

	out, err := decodeConditions(data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, in[0].Price.Equal(out[0].Price))
	assert.Equal(t, domain.OutcomeYes, out[0].Outcome)
	assert.Equal(t, "111", out[0].AssetID)
	assert.Equal(t, "10-20%", out[1].Label)
	assert.False(t, out[1].Tradable())
}

func TestDecodeConditionsBadPrice(t *testing.T) {
	_, err := decodeConditions([]byte(`[{"name":"yes","price":"abc"}]`))
	assert.Error(t, err)
}

func TestListingBuild(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		listing   listing
		base      string
		args      []any
		opts      domain.ListOpts
		wantQuery string
		wantArgs  int
	}{
		{
			name:      "no options",
			listing:   opportunityListing,
			base:      "SELECT x FROM opportunities",
			wantQuery: "SELECT x FROM opportunities ORDER BY detected_at DESC",
		},
		{
			name:      "since and paging",
			listing:   opportunityListing,
			base:      "SELECT x FROM opportunities",
			opts:      domain.ListOpts{Limit: 10, Offset: 20, Since: &since},
			wantQuery: "SELECT x FROM opportunities WHERE detected_at >= $1 ORDER BY detected_at DESC LIMIT $2 OFFSET $3",
			wantArgs:  3,
		},
		{
			name:      "existing where",
			listing:   opportunityListing,
			base:      "SELECT x FROM opportunities WHERE market_id = $1",
			args:      []any{"m1"},
			opts:      domain.ListOpts{Limit: 5, Since: &since},
			wantQuery: "SELECT x FROM opportunities WHERE market_id = $1 AND detected_at >= $2 ORDER BY detected_at DESC LIMIT $3",
			wantArgs:  3,
		},
		{
			name:      "wallets",
			listing:   walletListing,
			base:      "SELECT w FROM flagged_wallets",
			opts:      domain.ListOpts{Offset: 4, Since: &since},
			wantQuery: "SELECT w FROM flagged_wallets WHERE flagged_at >= $1 ORDER BY executions DESC, wallet OFFSET $2",
			wantArgs:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := tt.listing.build(tt.base, tt.args, tt.opts)
			assert.Equal(t, tt.wantQuery, q)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestNonNilTags(t *testing.T) {
	assert.Equal(t, []string{}, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/polyarb?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "polyarb"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestDSNEscapesCredentials(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", Port: 6543, User: "arb", Password: "p@ss/word", Database: "polyarb", SSLMode: "require"})
	assert.Equal(t, "postgres://arb:p%40ss%2Fword@db:6543/polyarb?sslmode=require", got)
}

func TestMigrationNames(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_wallets.sql": {Data: []byte("SELECT 2")},
		"migrations/001_init.sql":    {Data: []byte("SELECT 1")},
		"migrations/README.md":       {Data: []byte("notes")},
	}
	names, err := migrationNames(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_wallets.sql"}, names)

	embedded, err := migrationNames(migrationsFS)
	require.NoError(t, err)
	assert.Contains(t, embedded, "001_init.sql")
}
