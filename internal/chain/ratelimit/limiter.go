package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zkUSD-Protocol/services/internal/metrics"
)

// Limiter paces outbound RPC calls to one endpoint with a token bucket.
type Limiter struct {
	bucket   *rate.Limiter
	endpoint string
}

// NewLimiter allows rps requests per second with the given burst headroom.
func NewLimiter(rps float64, burst int, endpoint string) *Limiter {
	return &Limiter{
		bucket:   rate.NewLimiter(rate.Limit(rps), burst),
		endpoint: endpoint,
	}
}

// Wait consumes exactly one token, sleeping until the bucket refills. The
// reservation is handed back when ctx is done so an aborted call does not
// starve the next one.
func (l *Limiter) Wait(ctx context.Context) error {
	res := l.bucket.Reserve()
	if !res.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}

	delay := res.Delay()
	if delay == 0 {
		return nil
	}

	metrics.RPCRateLimitWaits.WithLabelValues(l.endpoint).Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}

// RecordRPCCall counts one call against the endpoint/method pair, labeled
// with the classified outcome.
func RecordRPCCall(endpoint, method string, err error) {
	metrics.RPCCallsTotal.WithLabelValues(endpoint, method, ClassifyRPCError(err)).Inc()
}

// rpcErrorCategories is checked in order; the first category with a matching
// token wins, so a rate-limited 429 is never misread as a client error.
var rpcErrorCategories = []struct {
	status string
	tokens []string
}{
	{"timeout", []string{"timeout", "deadline exceeded"}},
	{"rate_limited", []string{"rate limit", "429", "too many requests"}},
	{"server_error", []string{"500", "502", "503", "internal server error"}},
	{"network_error", []string{
		"connection refused", "connection reset", "network is unreachable",
		"no such host", "broken pipe", "eof",
	}},
}

// ClassifyRPCError maps an RPC failure onto a small stable set of metric
// statuses.
func ClassifyRPCError(err error) string {
	if err == nil {
		return "ok"
	}
	msg := strings.ToLower(err.Error())
	for _, cat := range rpcErrorCategories {
		for _, token := range cat.tokens {
			if strings.Contains(msg, token) {
				return cat.status
			}
		}
	}
	return "client_error"
}
