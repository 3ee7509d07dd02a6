package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Conditions are
// kept as a JSONB array on the market row.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore returns a store over pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// conditionRow is the JSONB shape of a condition.
type conditionRow struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Price   string `json:"price"`
	Outcome string `json:"outcome"`
	AssetID string `json:"asset_id,omitempty"`
}

func encodeConditions(conds []domain.Condition) ([]byte, error) {
	rows := make([]conditionRow, len(conds))
	for i, c := range conds {
		rows[i] = conditionRow{
			Name:    c.Name,
			Label:   c.Label,
			Price:   c.Price.String(),
			Outcome: c.Outcome.String(),
			AssetID: c.AssetID,
		}
	}
	return json.Marshal(rows)
}

func decodeConditions(data []byte) ([]domain.Condition, error) {
	var rows []conditionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	conds := make([]domain.Condition, len(rows))
	for i, r := range rows {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("condition %q price: %w", r.Name, err)
		}
		conds[i] = domain.Condition{
			Name:    r.Name,
			Label:   r.Label,
			Price:   price,
			Outcome: domain.ParseOutcome(r.Outcome),
			AssetID: r.AssetID,
		}
	}
	return conds, nil
}

const upsertMarketQuery = `
	INSERT INTO markets (
		id, title, end_date, group_key, category, tags, conditions, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		title      = EXCLUDED.title,
		end_date   = EXCLUDED.end_date,
		group_key  = EXCLUDED.group_key,
		category   = EXCLUDED.category,
		tags       = EXCLUDED.tags,
		conditions = EXCLUDED.conditions,
		updated_at = NOW()`

// UpsertBatch writes markets in one round trip, replacing rows with the same
// id.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	var batch pgx.Batch
	for _, m := range markets {
		conds, err := encodeConditions(m.Conditions)
		if err != nil {
			return fmt.Errorf("postgres: encode conditions %s: %w", m.ID, err)
		}
		batch.Queue(upsertMarketQuery,
			m.ID, m.Title, m.EndDate, m.GroupKey, string(m.Category), nonNil(m.Tags), conds,
		)
	}
	return execBatch(ctx, s.pool, &batch, "upsert markets")
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// GetByID returns domain.ErrNotFound for an unknown id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	const query = `SELECT id, title, end_date, group_key, category, tags, conditions
		FROM markets WHERE id = $1`

	var (
		m        domain.Market
		endDate  time.Time
		category string
		conds    []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Title, &endDate, &m.GroupKey, &category, &m.Tags, &conds,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	case err != nil:
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	m.EndDate = endDate.UTC()
	m.Category = domain.Category(category)
	if m.Conditions, err = decodeConditions(conds); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: decode market %s: %w", id, err)
	}
	return m, nil
}

// Count is the number of stored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
