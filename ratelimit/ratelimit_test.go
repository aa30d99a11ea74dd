package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(max int) (*RateLimiter, *time.Time) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(&RateLimiterConfig{MaxRequests: max, WindowSize: time.Second})
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestSlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(2)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	*clock = clock.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")
	assert.Equal(t, 2, rl.Count("a"))

	// the first request leaves the window
	*clock = clock.Add(600 * time.Millisecond)
	assert.Equal(t, 1, rl.Count("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	rl.Reset("a")
	assert.True(t, rl.Allow("a"))

	*clock = clock.Add(time.Hour)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}

func TestDisabledLimiter(t *testing.T) {
	rl, _ := newTestLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("a"))
	}
	rl.Stop()
	rl.Stop()
}

func TestSubmissionLimiter(t *testing.T) {
	sl := NewSubmissionLimiter(&SubmissionLimiterConfig{
		IPConfig:          &RateLimiterConfig{MaxRequests: 1, WindowSize: time.Minute},
		ParticipantConfig: &RateLimiterConfig{MaxRequests: 1, WindowSize: time.Minute},
		GlobalConfig:      &RateLimiterConfig{MaxRequests: 2, WindowSize: time.Minute},
	})
	defer sl.Stop()

	require.NoError(t, sl.AllowIP("10.0.0.1"))
	err := sl.AllowIP("10.0.0.1")
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "ip", rle.Type)

	require.NoError(t, sl.AllowIP("10.0.0.2"))
	err = sl.AllowIP("10.0.0.3")
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "global", rle.Type)

	require.NoError(t, sl.AllowParticipant("C001"))
	assert.Error(t, sl.AllowParticipant("C001"))
	assert.NoError(t, sl.AllowParticipant("C002"))
}
