package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// WalletStore keeps the wallets flagged by fill analysis, one row each.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore returns a store over pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// UpsertFlagged records flagged wallets, replacing earlier findings.
func (s *WalletStore) UpsertFlagged(ctx context.Context, wallets []domain.FlaggedWallet) error {
	if len(wallets) == 0 {
		return nil
	}
	const upsert = `
		INSERT INTO flagged_wallets (wallet, market_ids, executions, flagged_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet) DO UPDATE SET
			market_ids = EXCLUDED.market_ids,
			executions = EXCLUDED.executions,
			flagged_at = EXCLUDED.flagged_at`

	var batch pgx.Batch
	for _, w := range wallets {
		batch.Queue(upsert, w.Wallet, w.MarketIDs, w.Executions, w.FlaggedAt)
	}
	return execBatch(ctx, s.pool, &batch, "upsert flagged wallets")
}

// ListFlagged returns flagged wallets, most active first.
func (s *WalletStore) ListFlagged(ctx context.Context, opts domain.ListOpts) ([]domain.FlaggedWallet, error) {
	query, args := walletListing.build(
		`SELECT wallet, market_ids, executions, flagged_at FROM flagged_wallets`, nil, opts)
	return collect(ctx, s.pool, "list flagged wallets", scanWallet, query, args...)
}

func scanWallet(row pgx.Row) (domain.FlaggedWallet, error) {
	var w domain.FlaggedWallet
	err := row.Scan(&w.Wallet, &w.MarketIDs, &w.Executions, &w.FlaggedAt)
	return w, err
}

var _ domain.WalletStore = (*WalletStore)(nil)
