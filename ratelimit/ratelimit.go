// Package ratelimit bounds the number of accepted submissions per
// client identifier using a fixed-window counter held entirely in
// memory. A client can in principle issue up to twice the limit across
// a window boundary; that is the accepted cost of O(1) bookkeeping per
// request.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired records are purged.
const DefaultSweepInterval = 10 * time.Minute

type record struct {
	count     int
	resetTime time.Time
}

// Limiter is a per-client fixed-window counter. Construct with New,
// call Start to begin the background expiry sweep, and Stop on
// shutdown. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record

	max           int
	window        time.Duration
	sweepInterval time.Duration

	// now is swapped out in tests.
	now func() time.Time

	done chan struct{}
	once sync.Once
}

// New returns a Limiter admitting up to max requests per key per
// window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		records:       make(map[string]*record),
		max:           max,
		window:        window,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		done:          make(chan struct{}),
	}
}

// Allow records a request from key and reports whether it is within
// the limit. The first request in a window creates a fresh record;
// requests arriving after the window's reset time overwrite the stale
// record in place.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok {
		l.records[key] = &record{count: 1, resetTime: now.Add(l.window)}
		return true
	}
	if now.After(rec.resetTime) {
		rec.count = 1
		rec.resetTime = now.Add(l.window)
		return true
	}
	if rec.count >= l.max {
		return false
	}
	rec.count++
	return true
}

// Start launches the periodic sweep that removes expired records,
// bounding memory growth from abandoned identifiers.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.done:
				return
			}
		}
	}()
}

// Stop cancels the background sweep. Safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, rec := range l.records {
		if now.After(rec.resetTime) {
			delete(l.records, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// ClientKey derives the rate-limit identifier for a request: the first
// forwarded-for address when present, else the socket address, else
// the literal "unknown".
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
