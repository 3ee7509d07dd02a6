package executor

import (
	"sync"
	"time"
)

// Dedup remembers opportunity keys for a fixed window.
type Dedup struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewDedup returns a Dedup whose keys are forgotten ttl after first sight.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{ttl: ttl, now: time.Now, expires: make(map[string]time.Time)}
}

// Seen reports whether key is still inside its window. An unseen or expired
// key is recorded and reported as new. The window is not extended by repeats.
func (d *Dedup) Seen(key string) bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if until, ok := d.expires[key]; ok && now.Before(until) {
		return true
	}
	d.expires[key] = now.Add(d.ttl)
	return false
}

// Sweep drops expired keys.
func (d *Dedup) Sweep() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, until := range d.expires {
		if !now.Before(until) {
			delete(d.expires, key)
		}
	}
}

// Len is the number of keys held, expired or not.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expires)
}
