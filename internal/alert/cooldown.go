package alert

import (
	"sync"
	"time"
)

// Cooldown tracks the last emission time per IP. Entries are never evicted
// for the life of the process; Len exposes the growth so it can be watched.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{last: make(map[string]time.Time)}
}

// Allow reports whether ip may alert at now, recording now only when the
// alert is allowed. A suppressed IP keeps its original timestamp, so the
// interval is always measured from the last emitted alert. A zero interval
// disables suppression but still tracks emissions.
func (c *Cooldown) Allow(ip string, interval time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.last[ip]; ok && interval > 0 && now.Sub(ts) < interval {
		return false
	}
	c.last[ip] = now
	return true
}

func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
