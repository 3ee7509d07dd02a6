package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// MarketStore persists the normalized catalog of each ingestion cycle.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	Count(ctx context.Context) (int64, error)
}

// OpportunityStore persists emitted opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Opportunity, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Opportunity, error)
}

// RelationStore persists relatedness edges per ingestion run.
type RelationStore interface {
	ReplaceRun(ctx context.Context, runID string, edges []RelatednessEdge) error
	ListByMarket(ctx context.Context, marketID string) ([]RelatednessEdge, error)
}

// WalletStore persists wallets flagged by execution analysis.
type WalletStore interface {
	UpsertFlagged(ctx context.Context, wallets []FlaggedWallet) error
	ListFlagged(ctx context.Context, opts ListOpts) ([]FlaggedWallet, error)
}
