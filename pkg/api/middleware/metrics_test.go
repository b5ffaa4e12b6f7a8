package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type sample struct {
	method, path, status string
	traceID              string
}

type fakeRecorder struct {
	mu      sync.Mutex
	samples []sample
	active  int
	peak    int
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample{method: method, path: path, status: status})
}

func (f *fakeRecorder) IncActiveConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active++
	f.peak = max(f.peak, f.active)
}

func (f *fakeRecorder) DecActiveConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}

// traceRecorder also implements ContextMetricsRecorder.
type traceRecorder struct {
	fakeRecorder
}

func (f *traceRecorder) RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample{
		method:  method,
		path:    path,
		status:  status,
		traceID: trace.SpanContextFromContext(ctx).TraceID().String(),
	})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	rec := &fakeRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(rec))
	r.Get("/api/v1/goals/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"7", "8", "9"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/goals/"+id, nil))
	}

	require.Len(t, rec.samples, 3)
	for _, s := range rec.samples {
		assert.Equal(t, sample{method: "GET", path: "/api/v1/goals/{id}", status: "404"}, s)
	}
	assert.Equal(t, 0, rec.active)
	assert.Equal(t, 1, rec.peak)
}

func TestMetrics_UnroutedPathNormalized(t *testing.T) {
	rec := &fakeRecorder{}
	h := Metrics(rec)(statusHandler(http.StatusOK, "ok"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/goals/42/cycles", nil))

	require.Len(t, rec.samples, 1)
	assert.Equal(t, "/api/v1/goals/:id/cycles", rec.samples[0].path)
	assert.Equal(t, "200", rec.samples[0].status)
}

func TestMetrics_SkipsMetricsEndpoint(t *testing.T) {
	rec := &fakeRecorder{}
	h := Metrics(rec)(statusHandler(http.StatusOK, ""))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Empty(t, rec.samples)
	assert.Zero(t, rec.peak)
}

func TestMetrics_PanicRecordedAndRepanicked(t *testing.T) {
	rec := &fakeRecorder{}
	h := Metrics(rec)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.PanicsWithValue(t, "boom", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cycles", nil))
	})
	require.Len(t, rec.samples, 1)
	assert.Equal(t, "500", rec.samples[0].status)
	assert.Equal(t, 0, rec.active)
}

func TestMetrics_ContextRecorderGetsTrace(t *testing.T) {
	_, shutdown := setTracingTestProvider(t)
	defer shutdown()

	rec := &traceRecorder{}
	h := Tracing(DefaultTracingOptions())(Metrics(rec)(statusHandler(http.StatusOK, "")))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Len(t, rec.samples, 1)
	assert.NotEqual(t, trace.TraceID{}.String(), rec.samples[0].traceID)
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/goals":        "/api/v1/goals",
		"/api/v1/goals/12":     "/api/v1/goals/:id",
		"/api/v1/goals/abc":    "/api/v1/goals/abc",
		"/":                    "/",
		"/api/v1/provenance/1": "/api/v1/provenance/:id",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}
