package guard

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// limiterCacheSize bounds how many distinct actors hold a live limiter.
// Evicted actors simply start a fresh window on their next request.
const limiterCacheSize = 4096

// RateLimiter enforces a sliding-window request budget per actor. Actors
// are usually moderator ids, so the key space is small and the expirable
// cache mostly exists to shed long-gone actors.
type RateLimiter struct {
	limit  int64
	window time.Duration

	mu       sync.Mutex
	limiters *expirable.LRU[string, *slidingwindow.Limiter]
}

// NewRateLimiter allows limit requests per actor per window.
func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	// Keep idle limiters around for two windows, then let them expire.
	cache := expirable.NewLRU[string, *slidingwindow.Limiter](
		limiterCacheSize, nil, 2*window,
	)

	return &RateLimiter{
		limit:    limit,
		window:   window,
		limiters: cache,
	}
}

// Allow reports whether the actor may proceed. When the budget is
// exhausted it also returns when the caller should retry.
func (r *RateLimiter) Allow(actor string) (bool, time.Time) {
	lim := r.limiterFor(actor)

	if lim.Allow() {
		return true, time.Time{}
	}

	// The precise moment the window slides past the oldest request is
	// internal to the limiter; a full window from now is always a safe
	// retry point.
	return false, time.Now().Add(r.window)
}

func (r *RateLimiter) limiterFor(actor string) *slidingwindow.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters.Get(actor); ok {
		return lim
	}

	lim, _ := slidingwindow.NewLimiter(
		r.window, r.limit,
		func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		},
	)
	r.limiters.Add(actor, lim)

	return lim
}
