package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// RelationStore implements domain.RelationStore using PostgreSQL.
type RelationStore struct {
	pool *pgxpool.Pool
}

// NewRelationStore creates a new RelationStore.
func NewRelationStore(pool *pgxpool.Pool) *RelationStore {
	return &RelationStore{pool: pool}
}

// ReplaceRun stores the edges of one ingestion run and drops every edge left
// over from earlier runs, in one transaction.
func (s *RelationStore) ReplaceRun(ctx context.Context, runID string, edges []domain.RelatednessEdge) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace relations %s: %w", runID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM relatedness_edges WHERE run_id <> $1`, runID); err != nil {
		return fmt.Errorf("postgres: clear relations: %w", err)
	}

	rows := make([][]any, len(edges))
	for i, e := range edges {
		rows[i] = []any{runID, e.MarketA, e.MarketB, e.Similarity, e.CreatedAt}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"relatedness_edges"},
		[]string{"run_id", "market_a", "market_b", "similarity", "created_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("postgres: copy relations %s: %w", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit relations %s: %w", runID, err)
	}
	return nil
}

// ListByMarket returns the edges touching marketID, strongest first.
func (s *RelationStore) ListByMarket(ctx context.Context, marketID string) ([]domain.RelatednessEdge, error) {
	const query = `SELECT run_id, market_a, market_b, similarity, created_at
		FROM relatedness_edges
		WHERE market_a = $1 OR market_b = $1
		ORDER BY similarity DESC`

	rows, err := s.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list relations %s: %w", marketID, err)
	}
	defer rows.Close()

	var edges []domain.RelatednessEdge
	for rows.Next() {
		var e domain.RelatednessEdge
		if err := rows.Scan(&e.RunID, &e.MarketA, &e.MarketB, &e.Similarity, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan relation: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list relations rows: %w", err)
	}
	return edges, nil
}

var _ domain.RelationStore = (*RelationStore)(nil)
