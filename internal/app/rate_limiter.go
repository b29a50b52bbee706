package app

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/StudioRelay/internal/domain"
)

var ErrRateLimited = errors.New("rate limited")

// JoinLimiter caps how many joins one connection may issue per interval.
type JoinLimiter struct {
	mu       sync.Mutex
	history  map[domain.ConnectionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewJoinLimiter returns nil when limit <= 0; a nil limiter allows everything.
func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	if limit <= 0 {
		return nil
	}
	return &JoinLimiter{
		history:  make(map[domain.ConnectionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *JoinLimiter) Allow(cid domain.ConnectionID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[cid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[cid] = fresh
		return false
	}

	rl.history[cid] = append(fresh, now)
	return true
}

func (rl *JoinLimiter) Forget(cid domain.ConnectionID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, cid)
}
