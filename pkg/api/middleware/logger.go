package middleware

import (
	"net/http"
	"time"

	"github.com/goclaw/hyperagent/pkg/logger"
)

// Logger writes one access log line per request. Server errors log at
// error level, client errors at warn, and probe endpoints at debug.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrapWriter(w)

			next.ServeHTTP(sw, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern(r),
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", sw.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			ctx := r.Context()
			switch {
			case sw.status >= http.StatusInternalServerError:
				log.ErrorContext(ctx, "HTTP request", args...)
			case sw.status >= http.StatusBadRequest:
				log.WarnContext(ctx, "HTTP request", args...)
			case isProbe(r.URL.Path):
				log.DebugContext(ctx, "HTTP request", args...)
			default:
				log.InfoContext(ctx, "HTTP request", args...)
			}
		})
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/ready"
}
