// Package postgres persists catalog snapshots, relatedness edges,
// opportunities and flagged wallets in PostgreSQL via pgx.
package postgres

import (
	"cmp"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID serialises schema changes when several polyarb processes
// start against the same database.
const migrationLockID int64 = 0x706f6c7961726221

// ClientConfig holds connection parameters. DSN wins over the discrete
// fields when set.
type ClientConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN renders cfg as a postgres:// URL with credentials escaped.
func DSN(cfg ClientConfig) string {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cmp.Or(cfg.Port, 5432))),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {cmp.Or(cfg.SSLMode, "disable")}}.Encode(),
	}
	return u.String()
}

// Client owns the pgx pool shared by every store.
type Client struct {
	pool *pgxpool.Pool
}

// New connects, tags the session with application_name=polyarb and pings.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cmp.Or(cfg.MaxConns, int(poolCfg.MaxConns)))
	poolCfg.MinConns = int32(cmp.Or(cfg.MinConns, int(poolCfg.MinConns)))
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = "polyarb"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Pool is handed to the stores.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Ping checks connectivity for the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close waits for borrowed connections and closes the pool.
func (c *Client) Close() { c.pool.Close() }

// migrationNames lists the embedded .sql files in apply order.
func migrationNames(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// RunMigrations applies pending embedded migrations in name order, each in
// its own transaction, while holding a session advisory lock.
func (c *Client) RunMigrations(ctx context.Context) error {
	names, err := migrationNames(migrationsFS)
	if err != nil {
		return fmt.Errorf("postgres: list migrations: %w", err)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire for migrations: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("postgres: migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	const tracker = `CREATE TABLE IF NOT EXISTS polyarb_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := conn.Exec(ctx, tracker); err != nil {
		return fmt.Errorf("postgres: create migrations table: %w", err)
	}

	for _, name := range names {
		if err := applyMigration(ctx, conn.Conn(), name); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, conn *pgx.Conn, name string) error {
	sql, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("postgres: read migration %s: %w", name, err)
	}
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"INSERT INTO polyarb_migrations (filename) VALUES ($1) ON CONFLICT DO NOTHING", name)
		if err != nil {
			return fmt.Errorf("postgres: record migration %s: %w", name, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("postgres: apply migration %s: %w", name, err)
		}
		return nil
	})
}
