package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// OpportunityStore keeps the detection log. Profit is stored as NUMERIC and
// read back as text so no precision is lost.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore returns a store over pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, kind, market_id, condition_name,
	related_market_id, related_condition, side, pattern,
	profit::text, detected_at`

// Insert stores a new opportunity. Re-inserting an existing id is a no-op.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, kind, market_id, condition_name,
			related_market_id, related_condition, side, pattern,
			profit, detected_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9::numeric, $10
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, string(opp.Kind), opp.MarketID, opp.ConditionName,
		opp.RelatedMarketID, opp.RelatedCondition, string(opp.Side), string(opp.Pattern),
		opp.Profit.String(), opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities`
	query, args := opportunityListing.build(query, nil, opts)
	return collect(ctx, s.pool, "list recent opportunities", scanOpportunity, query, args...)
}

// ListByMarket returns opportunities that involve marketID on either side.
func (s *OpportunityStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities
		WHERE (market_id = $1 OR related_market_id = $1)`
	query, args := opportunityListing.build(query, []any{marketID}, opts)
	return collect(ctx, s.pool, "list opportunities by market", scanOpportunity, query, args...)
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		opp                 domain.Opportunity
		kind, side, pattern string
		profit              string
	)
	if err := row.Scan(
		&opp.ID, &kind, &opp.MarketID, &opp.ConditionName,
		&opp.RelatedMarketID, &opp.RelatedCondition, &side, &pattern,
		&profit, &opp.DetectedAt,
	); err != nil {
		return domain.Opportunity{}, err
	}
	p, err := decimal.NewFromString(profit)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("profit %q: %w", profit, err)
	}
	opp.Kind = domain.OpportunityKind(kind)
	opp.Side = domain.Side(side)
	opp.Pattern = domain.PatternKind(pattern)
	opp.Profit = p
	opp.DetectedAt = opp.DetectedAt.UTC()
	return opp, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
