package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// listing turns domain.ListOpts into SQL for one table: Since filters on
// timeCol and rows come back in orderBy order.
type listing struct {
	timeCol string
	orderBy string
}

var (
	opportunityListing = listing{timeCol: "detected_at", orderBy: "detected_at DESC"}
	walletListing      = listing{timeCol: "flagged_at", orderBy: "executions DESC, wallet"}
)

// build appends the filter, ordering and paging clauses to base, numbering
// placeholders after the args base already uses.
func (l listing) build(base string, args []any, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.Since != nil {
		if strings.Contains(strings.ToUpper(base), " WHERE ") {
			b.WriteString(" AND ")
		} else {
			b.WriteString(" WHERE ")
		}
		b.WriteString(l.timeCol + " >= " + next(*opts.Since))
	}
	b.WriteString(" ORDER BY " + l.orderBy)
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + next(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + next(opts.Offset))
	}
	return b.String(), args
}

// collect runs query and scans every row with scan.
func collect[T any](ctx context.Context, pool *pgxpool.Pool, op string, scan func(pgx.Row) (T, error), query string, args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) { return scan(row) })
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return out, nil
}

// execBatch sends the queued statements in one round trip and reports the
// first that failed.
func execBatch(ctx context.Context, pool *pgxpool.Pool, b *pgx.Batch, op string) error {
	results := pool.SendBatch(ctx, b)
	for i := range b.Len() {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("postgres: %s: statement %d: %w", op, i, err)
		}
	}
	return results.Close()
}
