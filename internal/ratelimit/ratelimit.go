// Package ratelimit provides a fixed-window per-key limiter. The ledger
// uses it two ways: per-client request limiting in the HTTP layer, and
// per-owner throttling of recurrence materialization so a backlog of due
// templates cannot stampede one user's account.
package ratelimit

import (
	"net/http"
	"sync"
	"time"
)

type Limiter struct {
	mu           sync.Mutex
	keys         map[string]*keyInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	limit           int
	window          time.Duration
	cleanupInterval time.Duration
}

type keyInfo struct {
	windowStart time.Time
	count       int
}

// Config holds rate limiter configuration.
type Config struct {
	Limit           int           // allowed events per window
	Window          time.Duration // window length
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func NewLimiter(config Config) *Limiter {
	if config.Limit <= 0 || config.Window <= 0 {
		def := DefaultConfig()
		if config.Limit <= 0 {
			config.Limit = def.Limit
		}
		if config.Window <= 0 {
			config.Window = def.Window
		}
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	l := &Limiter{
		keys:            make(map[string]*keyInfo),
		stopCleanup:     make(chan struct{}),
		limit:           config.Limit,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go l.startCleanup()
	return l
}

// Allow reports whether an event for the given key fits in the current
// window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	info, exists := l.keys[key]

	if !exists || now.Sub(info.windowStart) > l.window {
		l.keys[key] = &keyInfo{windowStart: now, count: 1}
		return true
	}

	info.count++
	return info.count <= l.limit
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * l.window)
	for key, info := range l.keys {
		if info.windowStart.Before(cutoff) {
			delete(l.keys, key)
		}
	}
}

// ActiveKeys returns the number of currently tracked keys.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Middleware creates HTTP middleware that limits by the extracted key.
func (l *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(extractKey(r)) {
				if onLimit != nil {
					onLimit(w, r)
				} else {
					w.Header().Set("Retry-After", "60")
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
