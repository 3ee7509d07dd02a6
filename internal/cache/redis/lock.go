package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

var (
	//go:embed scripts/lock_release.lua
	lockReleaseLua string
	//go:embed scripts/lock_extend.lua
	lockExtendLua string

	lockRelease = redis.NewScript(lockReleaseLua)
	lockExtend  = redis.NewScript(lockExtendLua)
)

// LockManager hands out expiring locks at "polyarb:lock:{name}". Each
// acquisition stores a random token, and release and extend only act while
// the key still holds it, so an expired holder cannot touch a successor's
// lock.
type LockManager struct {
	rdb *redis.Client

	mu   sync.Mutex
	held map[string]string // name -> token
}

// NewLockManager returns a LockManager on c.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.rdb, held: make(map[string]string)}
}

func lockKey(name string) string { return "polyarb:lock:" + name }

// Acquire takes name for ttl or returns domain.ErrLockHeld. The returned
// unlock is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	err := lm.rdb.SetArgs(ctx, lockKey(name), token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("redis: lock %s: %w", name, err)
	}

	lm.mu.Lock()
	lm.held[name] = token
	lm.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { lm.release(name, token) }) }, nil
}

func (lm *LockManager) release(name, token string) {
	lm.mu.Lock()
	if lm.held[name] == token {
		delete(lm.held, name)
	}
	lm.mu.Unlock()

	// Runs on shutdown paths where the caller's context is already done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = lockRelease.Run(ctx, lm.rdb, []string{lockKey(name)}, token).Err()
}

// Extend resets the expiry of a lock held through this manager. It wraps
// domain.ErrLockHeld when the lock expired or changed hands.
func (lm *LockManager) Extend(ctx context.Context, name string, ttl time.Duration) error {
	lm.mu.Lock()
	token, ok := lm.held[name]
	lm.mu.Unlock()
	if !ok {
		return fmt.Errorf("redis: extend %s: not held here: %w", name, domain.ErrLockHeld)
	}
	n, err := lockExtend.Run(ctx, lm.rdb, []string{lockKey(name)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis: extend %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("redis: extend %s: lost: %w", name, domain.ErrLockHeld)
	}
	return nil
}

var _ domain.LockManager = (*LockManager)(nil)
