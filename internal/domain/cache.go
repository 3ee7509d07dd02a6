package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache mirrors the latest tick price per asset for other processes.
type PriceCache interface {
	SetPrice(ctx context.Context, assetID string, price decimal.Decimal, ts time.Time) error
	// GetPrice returns ErrNotFound for an asset never mirrored.
	GetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, error)
	// GetPrices skips assets that have no price.
	GetPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error)
}

// LockManager hands out expiring exclusive locks. Acquire and Extend return
// ErrLockHeld when someone else owns the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
	Extend(ctx context.Context, key string, ttl time.Duration) error
}

// StreamMessage is one stream entry.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the cross-process opportunity channel: live pub/sub plus a
// capped history stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamRecent returns up to count entries, newest first.
	StreamRecent(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// RateLimiter is a limiter shared across processes. Allow counts one request
// against an explicit budget; Wait blocks under the limiter's own budget.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}
