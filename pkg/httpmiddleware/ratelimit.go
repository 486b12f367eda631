package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures the per-client sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per Window.
	Max    int
	Window time.Duration
	// TrustProxy makes the default key honour X-Forwarded-For and X-Real-IP.
	// Leave it off unless a proxy in front of the server overwrites them.
	TrustProxy bool
	// KeyFunc overrides how clients are identified.
	KeyFunc func(*http.Request) string
}

// window holds the request counts of a client for the current fixed window
// and the one before it. The sliding count weights prev by how much of the
// previous window still overlaps [now-Window, now].
type window struct {
	start time.Time
	curr  int
	prev  int
}

type decision struct {
	allowed   bool
	remaining int
	reset     time.Time
}

type limiter struct {
	max    int
	size   time.Duration
	keyFor func(*http.Request) string

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	keyFor := cfg.KeyFunc
	if keyFor == nil {
		keyFor = func(r *http.Request) string { return clientIP(r, cfg.TrustProxy) }
	}
	return &limiter{
		max:     cfg.Max,
		size:    cfg.Window,
		keyFor:  keyFor,
		clients: make(map[string]*window),
	}
}

// take counts one request of key at now, unless the client is over the limit.
func (l *limiter) take(key string, now time.Time) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.size)
	w, ok := l.clients[key]
	switch {
	case !ok:
		w = &window{start: start}
		l.clients[key] = w
	case start.Sub(w.start) == l.size:
		w.prev, w.curr, w.start = w.curr, 0, start
	case start.After(w.start):
		w.prev, w.curr, w.start = 0, 0, start
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	used := float64(w.prev)*overlap + float64(w.curr)
	d := decision{reset: w.start.Add(l.size)}
	if used >= float64(l.max) {
		return d
	}

	w.curr++
	d.allowed = true
	d.remaining = max(0, l.max-int(math.Ceil(used+1)))
	return d
}

// evict drops clients that have been idle for two windows; their counts no
// longer affect any decision.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.clients, key)
		}
	}
}

func (l *limiter) evictEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit limits every client to cfg.Max requests per sliding cfg.Window.
// Responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; rejected requests get 429 with Retry-After. Idle
// clients are evicted in the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.evictEvery(ctx, 2*cfg.Window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.keyFor(r)
			d := l.take(key, time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

			if !d.allowed {
				wait := max(0, time.Until(d.reset))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				zctx.From(r.Context()).Debug("Rate limited", zap.String("client", key))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP identifies the caller by remote address, or by the first
// X-Forwarded-For hop (then X-Real-IP) when proxies are trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
