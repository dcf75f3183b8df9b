package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterEnforcesBudget(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow("mod-a")
		require.True(t, ok, "request %d within budget", i+1)
	}

	ok, resetAt := limiter.Allow("mod-a")
	require.False(t, ok)
	require.True(t, resetAt.After(time.Now()),
		"reset time must be in the future")
}

func TestRateLimiterIsolatesActors(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)

	ok, _ := limiter.Allow("mod-a")
	require.True(t, ok)
	ok, _ = limiter.Allow("mod-a")
	require.False(t, ok)

	// An exhausted budget for one moderator never affects another.
	ok, _ = limiter.Allow("mod-b")
	require.True(t, ok)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(2, 50*time.Millisecond)

	ok, _ := limiter.Allow("mod-a")
	require.True(t, ok)
	ok, _ = limiter.Allow("mod-a")
	require.True(t, ok)
	ok, _ = limiter.Allow("mod-a")
	require.False(t, ok)

	// After a full window the budget is available again.
	time.Sleep(120 * time.Millisecond)

	ok, _ = limiter.Allow("mod-a")
	require.True(t, ok)
}
