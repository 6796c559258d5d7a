// Package ratelimit provides per-user rate limiting for bot commands.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures rate limiting behavior.
type Config struct {
	// Window is the fixed counting window.
	Window time.Duration `yaml:"window"`
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int `yaml:"max_requests"`
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		Window:      time.Minute,
		MaxRequests: 30,
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per user in fixed windows. The first request in a
// window starts it; once MaxRequests is reached further requests are denied
// until the window resets.
type Limiter struct {
	mu      sync.Mutex
	windows map[int64]*window
	cfg     Config
	now     func() time.Time
}

// Option configures the limiter.
type Option func(*Limiter)

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates a limiter with the given configuration.
func NewLimiter(cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 30
	}
	l := &Limiter{
		windows: make(map[int64]*window),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for userID and reports whether it is within the
// limit. When denied, retryAfter is how long until the window resets.
func (l *Limiter) Allow(userID int64) (allowed bool, retryAfter time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[userID]
	if !ok || now.After(w.resetAt) {
		l.windows[userID] = &window{count: 1, resetAt: now.Add(l.cfg.Window)}
		l.pruneLocked(now)
		return true, 0
	}

	if w.count >= l.cfg.MaxRequests {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// Reset forgets the window for userID.
func (l *Limiter) Reset(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, userID)
}

// Size returns the number of tracked users.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// pruneLocked drops expired windows so idle users do not accumulate.
func (l *Limiter) pruneLocked(now time.Time) {
	for id, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
