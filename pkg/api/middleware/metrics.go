package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsRecorder receives one sample per HTTP request.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// ContextMetricsRecorder is implemented by recorders that correlate samples
// with the request's trace.
type ContextMetricsRecorder interface {
	RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration)
}

// Metrics records request count, latency and in-flight requests. Samples
// are labelled with the chi route pattern so goal ids do not explode label
// cardinality.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			sw := wrapWriter(w)
			defer func() {
				if rec := recover(); rec != nil {
					record(recorder, r, http.StatusInternalServerError, time.Since(start))
					panic(rec)
				}
			}()

			next.ServeHTTP(sw, r)
			record(recorder, r, sw.status, time.Since(start))
		})
	}
}

func record(recorder MetricsRecorder, r *http.Request, status int, duration time.Duration) {
	path := metricPath(r)
	code := strconv.Itoa(status)
	if cr, ok := recorder.(ContextMetricsRecorder); ok {
		cr.RecordHTTPRequestWithContext(r.Context(), r.Method, path, code, duration)
		return
	}
	recorder.RecordHTTPRequest(r.Method, path, code, duration)
}

// metricPath prefers the matched route. Unmatched paths have numeric
// segments collapsed to ":id".
func metricPath(r *http.Request) string {
	if pattern := routePattern(r); pattern != r.URL.Path {
		return pattern
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseUint(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
