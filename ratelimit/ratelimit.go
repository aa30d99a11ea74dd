package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/zakat/exception"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MaxRequests     int           // Maximum number of requests allowed
	WindowSize      time.Duration // Time window for rate limiting
	CleanupInterval time.Duration // How often to clean up expired entries
}

// DefaultConfig returns a default configuration
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     10,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter implements sliding window rate limiting
type RateLimiter struct {
	config      *RateLimiterConfig
	requests    map[string][]time.Time // key -> request timestamps inside the window
	mu          sync.Mutex
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// MaxRequests <= 0 disables limiting.
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	rl := &RateLimiter{
		config:      config,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		exception.SafeGo("RateLimiterCleanup", rl.cleanupExpiredEntries)
	}
	return rl
}

// Allow records a request for key and reports whether it fits the window.
// A refused request is not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.config.MaxRequests <= 0 {
		return true
	}
	now := rl.now()
	cutoff := now.Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := prune(rl.requests[key], cutoff)
	if len(valid) >= rl.config.MaxRequests {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Count returns how many requests of key are inside the current window.
func (rl *RateLimiter) Count(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(prune(rl.requests[key], rl.now().Add(-rl.config.WindowSize)))
}

// Reset removes all entries for a given key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, requests := range rl.requests {
		if valid := prune(requests, cutoff); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the survivors are a suffix.
func prune(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}

// SubmissionLimiter throttles ledger submissions per client IP, per sending
// participant and overall.
type SubmissionLimiter struct {
	ipLimiter          *RateLimiter
	participantLimiter *RateLimiter
	globalLimiter      *RateLimiter
}

type SubmissionLimiterConfig struct {
	IPConfig          *RateLimiterConfig
	ParticipantConfig *RateLimiterConfig
	GlobalConfig      *RateLimiterConfig
}

func DefaultSubmissionConfig() *SubmissionLimiterConfig {
	return &SubmissionLimiterConfig{
		IPConfig: &RateLimiterConfig{
			MaxRequests:     50,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		ParticipantConfig: &RateLimiterConfig{
			MaxRequests:     10,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		GlobalConfig: &RateLimiterConfig{
			MaxRequests:     1000,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

func NewSubmissionLimiter(config *SubmissionLimiterConfig) *SubmissionLimiter {
	if config == nil {
		config = DefaultSubmissionConfig()
	}
	return &SubmissionLimiter{
		ipLimiter:          NewRateLimiter(config.IPConfig),
		participantLimiter: NewRateLimiter(config.ParticipantConfig),
		globalLimiter:      NewRateLimiter(config.GlobalConfig),
	}
}

// AllowIP checks the per-IP and the global limit.
func (sl *SubmissionLimiter) AllowIP(ip string) error {
	if !sl.ipLimiter.Allow(ip) {
		return NewRateLimitError("ip", ip, "too many requests")
	}
	if !sl.globalLimiter.Allow("global") {
		return NewRateLimitError("global", "global", "ledger is busy")
	}
	return nil
}

// AllowParticipant checks the limit of the sending participant.
func (sl *SubmissionLimiter) AllowParticipant(id string) error {
	if !sl.participantLimiter.Allow(id) {
		return NewRateLimitError("participant", id, "too many submissions")
	}
	return nil
}

func (sl *SubmissionLimiter) Stop() {
	sl.ipLimiter.Stop()
	sl.participantLimiter.Stop()
	sl.globalLimiter.Stop()
}

// RateLimitError represents a rate limit error
type RateLimitError struct {
	Type    string
	Key     string
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s '%s': %s", e.Type, e.Key, e.Message)
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(rateType, key, message string) *RateLimitError {
	return &RateLimitError{
		Type:    rateType,
		Key:     key,
		Message: message,
	}
}
