package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// Wait never sleeps longer than this between attempts, so a cancelled or
// shortened window is noticed promptly.
const maxWaitStep = time.Second

var slidingWindow = redis.NewScript(slidingWindowLua)

// RateLimiter is a sliding-window limiter shared by every process using the
// same redis. Keys live under "ratelimit:".
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter returns a limiter whose Wait enforces limit requests per
// window. Allow takes its own limit and window per call.
func NewRateLimiter(c *Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:    c.rdb,
		limit:  max(limit, 1),
		window: orDefault(window, time.Second),
		now:    time.Now,
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Allow records a request under key if fewer than limit were recorded in the
// last window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ok, _, err := rl.try(ctx, key, limit, window)
	return ok, err
}

func (rl *RateLimiter) try(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	res, err := slidingWindow.Run(ctx, rl.rdb, []string{"ratelimit:" + key},
		rl.now().UnixMicro(), window.Microseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return false, 0, fmt.Errorf("redis: rate limit %s: got %d results, want 3", key, len(res))
	}
	return res[0] == 1, time.Duration(res[2]) * time.Microsecond, nil
}

// Wait blocks until key has capacity under the limiter's own rate, sleeping
// until the oldest request in the window expires.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		ok, retry, err := rl.try(ctx, key, rl.limit, rl.window)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(min(max(retry, time.Millisecond), maxWaitStep))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
