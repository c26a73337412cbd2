package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// staleLimiterTTL is how long a per-IP limiter may sit idle before the
	// sweeper drops it.
	staleLimiterTTL = 10 * time.Minute

	// sweepInterval is how often idle limiters are swept.
	sweepInterval = 1 * time.Minute
)

// endpointRule binds a method+path-prefix pattern to a token bucket shape.
// A rule with rps == rate.Inf exempts the endpoint entirely.
type endpointRule struct {
	method string // empty matches any method
	prefix string // empty matches any path
	rps    rate.Limit
	burst  int
}

// key is the per-endpoint half of the limiter map key.
func (r endpointRule) key() string { return r.method + ":" + r.prefix }

// limiterEntry is one client's bucket plus the last time it was touched.
type limiterEntry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies per-endpoint, per-client-IP rate limits to the
// query API. Proof endpoints serve multi-hundred-KB blobs and get a tighter
// budget; /healthz is exempt so liveness probes never starve.
type RateLimitMiddleware struct {
	rules   []endpointRule
	logger  *slog.Logger
	nowFunc func() time.Time // injectable clock for testing

	mu       sync.Mutex
	limiters map[string]*limiterEntry // key: "method:prefix|clientIP"

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimitMiddleware creates the middleware with the default rule set and
// starts the background sweeper; call Stop to release it.
func NewRateLimitMiddleware(logger *slog.Logger) *RateLimitMiddleware {
	rl := &RateLimitMiddleware{
		rules: []endpointRule{
			{method: http.MethodGet, prefix: "/healthz", rps: rate.Inf},
			{method: http.MethodGet, prefix: "/v1/proofs", rps: 2, burst: 5},
			{rps: 10, burst: 20}, // catch-all
		},
		logger:   logger,
		nowFunc:  time.Now,
		limiters: make(map[string]*limiterEntry),
		stopCh:   make(chan struct{}),
	}

	go rl.sweepLoop()
	return rl
}

// Stop shuts down the background sweeper. Safe to call more than once.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimitMiddleware) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-t.C:
			rl.evictStale()
		}
	}
}

// evictStale drops limiter entries idle past the TTL.
func (rl *RateLimitMiddleware) evictStale() {
	cutoff := rl.nowFunc().Add(-staleLimiterTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// LimiterCount reports the number of live per-client buckets.
func (rl *RateLimitMiddleware) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Wrap returns a handler that enforces the rate rules before calling next.
func (rl *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := rl.match(r.Method, r.URL.Path)
		if rule.rps == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !rl.bucketFor(rule, ip).Allow() {
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			rl.logger.Warn("query API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", ip,
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// match returns the first rule matching the request; the catch-all rule
// guarantees a hit.
func (rl *RateLimitMiddleware) match(method, path string) endpointRule {
	for _, rule := range rl.rules {
		if rule.method != "" && !strings.EqualFold(rule.method, method) {
			continue
		}
		if !strings.HasPrefix(path, rule.prefix) {
			continue
		}
		return rule
	}
	return endpointRule{rps: 10, burst: 20}
}

// bucketFor returns the client's bucket for the rule, creating it on first
// sight and refreshing its idle timestamp otherwise.
func (rl *RateLimitMiddleware) bucketFor(rule endpointRule, ip string) *rate.Limiter {
	key := rule.key() + "|" + ip

	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{bucket: rate.NewLimiter(rule.rps, rule.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = rl.nowFunc()
	return e.bucket
}

// clientIP resolves the originating client address, honoring proxy headers
// in order: X-Forwarded-For (first hop), X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
