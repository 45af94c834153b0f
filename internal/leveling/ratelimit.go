package leveling

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter enforces the hourly XP budget per (guild, user). The window
// is a reset-on-expiry counter, not a true sliding window: the first
// check after the hour elapses resets the bucket. Entries idle for more
// than a day are evicted by the underlying expirable cache, which
// replaces a manual sweep.
type Limiter struct {
	mu      sync.Mutex
	cap     int
	window  time.Duration
	clock   Clock
	entries *expirable.LRU[string, *rateEntry]
}

type rateEntry struct {
	awarded     int
	windowStart time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewLimiter(hourlyCap int) *Limiter {
	return &Limiter{
		cap:     hourlyCap,
		window:  time.Hour,
		clock:   realClock{},
		entries: expirable.NewLRU[string, *rateEntry](0, nil, 24*time.Hour),
	}
}

func (l *Limiter) WithClock(clock Clock) {
	l.clock = clock
}

func (l *Limiter) IsRateLimited(guildID, userID string) bool {
	if l.cap <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries.Get(guildID + ":" + userID)
	if !ok {
		return false
	}
	now := l.clock.Now()
	if now.Sub(entry.windowStart) >= l.window {
		entry.awarded = 0
		entry.windowStart = now
		return false
	}
	return entry.awarded >= l.cap
}

func (l *Limiter) RecordAward(guildID, userID string, amount int) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := guildID + ":" + userID
	now := l.clock.Now()
	entry, ok := l.entries.Get(key)
	if !ok || now.Sub(entry.windowStart) >= l.window {
		entry = &rateEntry{windowStart: now}
	}
	entry.awarded += amount
	l.entries.Add(key, entry)
}
