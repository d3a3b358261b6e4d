package rolesync

import (
	"sync"
	"time"
)

// CooldownTracker rate-limits per-member syncs in memory. Entries are swept
// lazily and by the scheduler.
type CooldownTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	last  map[cooldownKey]time.Time
	clock func() time.Time
}

type cooldownKey struct {
	guildID string
	userID  string
}

func NewCooldownTracker(ttl time.Duration) *CooldownTracker {
	return &CooldownTracker{
		ttl:   ttl,
		last:  make(map[cooldownKey]time.Time),
		clock: time.Now,
	}
}

// Check reports whether the member may sync now. If allowed it records the
// attempt; otherwise it returns the remaining wait.
func (t *CooldownTracker) Check(guildID, userID string) (bool, time.Duration) {
	if t.ttl <= 0 {
		return true, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	key := cooldownKey{guildID, userID}
	if at, ok := t.last[key]; ok {
		if remaining := t.ttl - now.Sub(at); remaining > 0 {
			return false, remaining
		}
	}
	t.last[key] = now
	return true, 0
}

// Reset clears the member's cooldown, used after moderator-forced syncs.
func (t *CooldownTracker) Reset(guildID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, cooldownKey{guildID, userID})
}

// Sweep drops expired entries and returns how many were removed.
func (t *CooldownTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	removed := 0
	for key, at := range t.last {
		if now.Sub(at) >= t.ttl {
			delete(t.last, key)
			removed++
		}
	}
	return removed
}
