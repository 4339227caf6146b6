// Package ratelimit limits requests per client over a fixed one-minute window.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window  = time.Minute
	idleTTL = 10 * time.Minute
)

// Limiter counts requests per client key. Counters reset when a client's
// window ends, not continuously.
type Limiter struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*clientWindow
	denied  atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	start time.Time
	seen  time.Time
	count int
}

type Config struct {
	RequestsPerMinute int
	// CleanupInterval is how often idle clients are forgotten.
	CleanupInterval time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60, CleanupInterval: 5 * time.Minute}
}

// NewLimiter starts a limiter and its cleanup loop. Call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Limiter{
		limit:    cfg.RequestsPerMinute,
		interval: cfg.CleanupInterval,
		now:      cfg.Now,
		windows:  make(map[string]*clientWindow),
		stop:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records a request from key and reports whether it is within the
// limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= window {
		l.windows[key] = &clientWindow{start: now, seen: now, count: 1}
		return true
	}

	w.count++
	w.seen = now
	if w.count <= l.limit {
		return true
	}
	l.denied.Add(1)
	return false
}

// RetryAfter returns how long key has to wait for its next window.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		return 0
	}
	return max(window-l.now().Sub(w.start), 0)
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stop:
			return
		}
	}
}

// cleanupStaleEntries forgets clients idle for longer than idleTTL and
// returns how many were dropped.
func (l *Limiter) cleanupStaleEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleTTL)
	n := 0
	for key, w := range l.windows {
		if w.seen.Before(cutoff) {
			delete(l.windows, key)
			n++
		}
	}
	return n
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	TotalHits   int64 `json:"totalHits"`
	ClientCount int64 `json:"clientCount"`
}

// GetMetrics reports denied requests so far and tracked clients.
func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	clients := int64(len(l.windows))
	l.mu.Unlock()
	return Metrics{TotalHits: l.denied.Load(), ClientCount: clients}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header in whole seconds. onLimit writes the body; nil sends plain text.
func (l *Limiter) Middleware(clientKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if l.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			wait := int(l.RetryAfter(key)/time.Second) + 1
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			onLimit(w, r)
		})
	}
}
