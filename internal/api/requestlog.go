package api

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder remembers the first status code a handler writes. A zero
// value means the handler never called WriteHeader, which net/http treats
// as an implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.code == 0 {
		sr.code = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) status() int {
	if sr.code == 0 {
		return http.StatusOK
	}
	return sr.code
}

func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b[:])
}

// RequestLogMiddleware logs every completed query API request. /healthz is
// skipped so liveness probes do not flood the log, mirroring its rate limit
// exemption.
func RequestLogMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	access := logger.With("component", "api_access")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)

		access.Info("query API request",
			"request_id", newRequestID(),
			"remote_addr", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
