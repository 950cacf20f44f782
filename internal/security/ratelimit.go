package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Default limits applied when RateLimitConfig leaves a field at zero.
const (
	DefaultRequestsPerMinute = 60
	DefaultBurst             = 10
	DefaultIdleAfter         = 30 * time.Minute
)

// RateLimitConfig holds configurable rate limits.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate allowed per key.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// Burst is the number of requests a key may issue at once.
	Burst int `yaml:"burst"`
	// IdleAfter evicts limiters for keys that have been quiet this long.
	IdleAfter time.Duration `yaml:"idle_after"`
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = DefaultIdleAfter
	}
	return c
}

// RateLimiter keeps one token bucket per key (client address, owner id).
// All methods are safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	config  RateLimitConfig
	now     func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter with the given config, filling zero
// fields with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		config:  cfg.withDefaults(),
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) error {
	return rl.AllowN(key, 1)
}

// AllowN consumes n tokens for key, or returns ErrRateLimited without
// consuming any. A nil limiter allows everything.
func (rl *RateLimiter) AllowN(key string, n int) error {
	if rl == nil {
		return nil
	}

	rl.mu.Lock()
	now := rl.now()
	rl.evictLocked(now)
	e, ok := rl.entries[key]
	if !ok {
		perSecond := rate.Limit(float64(rl.config.RequestsPerMinute) / 60)
		e = &limiterEntry{limiter: rate.NewLimiter(perSecond, rl.config.Burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, n)
	rl.mu.Unlock()

	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// Len returns the number of keys currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

func (rl *RateLimiter) evictLocked(now time.Time) {
	for key, e := range rl.entries {
		if now.Sub(e.lastSeen) > rl.config.IdleAfter {
			delete(rl.entries, key)
		}
	}
}
