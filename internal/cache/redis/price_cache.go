package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// PriceCache mirrors tick prices as plain strings at "price:{assetID}",
// encoded "<decimal>@<unix nanos>" so a single MGET serves batch reads.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache returns a cache whose entries expire ttl after their last
// update. ttl <= 0 keeps entries forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.rdb, ttl: max(ttl, 0)}
}

func priceKey(assetID string) string { return "price:" + assetID }

func encodePrice(p decimal.Decimal, ts time.Time) string {
	return p.String() + "@" + strconv.FormatInt(ts.UnixNano(), 10)
}

func decodePrice(v string) (decimal.Decimal, time.Time, error) {
	ps, ts, ok := strings.Cut(v, "@")
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("malformed entry %q", v)
	}
	p, err := decimal.NewFromString(ps)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return p, time.Unix(0, nanos).UTC(), nil
}

// SetPrice overwrites the asset's entry and refreshes its expiry.
func (pc *PriceCache) SetPrice(ctx context.Context, assetID string, price decimal.Decimal, ts time.Time) error {
	if err := pc.rdb.Set(ctx, priceKey(assetID), encodePrice(price, ts), pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", assetID, err)
	}
	return nil
}

// GetPrice returns domain.ErrNotFound for a missing or expired asset.
func (pc *PriceCache) GetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, error) {
	v, err := pc.rdb.Get(ctx, priceKey(assetID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: price %s: %w", assetID, domain.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", assetID, err)
	}
	p, ts, err := decodePrice(v)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: price %s: %w", assetID, err)
	}
	return p, ts, nil
}

// GetPrices reads every asset in one MGET. Missing and undecodable entries
// are left out.
func (pc *PriceCache) GetPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(assetIDs))
	for i, id := range assetIDs {
		keys[i] = priceKey(id)
	}
	vals, err := pc.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget %d prices: %w", len(keys), err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if p, _, err := decodePrice(s); err == nil {
			out[assetIDs[i]] = p
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
