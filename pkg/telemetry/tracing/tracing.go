// Package tracing installs the process-wide OpenTelemetry tracer provider
// used by the agent engine and the HTTP API.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goclaw/hyperagent/config"
	"github.com/goclaw/hyperagent/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// Option adds resource attributes describing this agent process.
type Option func(*settings)

type settings struct {
	version     string
	environment string
	attrs       []attribute.KeyValue
}

// WithServiceVersion sets service.version.
func WithServiceVersion(v string) Option {
	return func(s *settings) { s.version = v }
}

// WithEnvironment sets deployment.environment.name.
func WithEnvironment(env string) Option {
	return func(s *settings) { s.environment = env }
}

// WithAttributes adds arbitrary resource attributes.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

var newOTLPExporter = func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint cannot be empty")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Init installs the global tracer provider and W3C propagators. With tracing
// disabled a no-op provider is installed and the returned ShutdownFunc does
// nothing.
func Init(ctx context.Context, cfg config.TracingConfig, serviceName string, opts ...Option) (ShutdownFunc, error) {
	setPropagator()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	exp, err := newOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}
	guarded := newGuardedExporter(exp, strings.ToLower(strings.TrimSpace(cfg.Exporter)), normalizeEndpoint(cfg.Endpoint))

	res, err := resource.New(ctx, resource.WithAttributes(s.resourceAttributes(serviceName)...))
	if err != nil {
		_ = guarded.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(guarded),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(shutdownCtx context.Context) error {
		var errs []error
		if err := tp.ForceFlush(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush spans: %w", err))
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		return errors.Join(errs...)
	}, nil
}

func setPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func validate(cfg config.TracingConfig) error {
	switch {
	case strings.TrimSpace(cfg.Exporter) == "":
		return fmt.Errorf("tracing exporter cannot be empty")
	case strings.TrimSpace(cfg.Endpoint) == "":
		return fmt.Errorf("tracing endpoint cannot be empty")
	case cfg.Timeout <= 0:
		return fmt.Errorf("tracing timeout must be > 0")
	}
	return nil
}

func (s settings) resourceAttributes(serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if s.version != "" {
		attrs = append(attrs, semconv.ServiceVersion(s.version))
	}
	if s.environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(s.environment))
	}
	return append(attrs, s.attrs...)
}

// guardedExporter swallows export errors. It logs once when the exporter
// starts failing and once when it recovers.
type guardedExporter struct {
	exporter sdktrace.SpanExporter
	kind     string
	endpoint string
	log      logger.Logger

	mu      sync.Mutex
	failing bool
	dropped int
}

func newGuardedExporter(exp sdktrace.SpanExporter, kind, endpoint string) *guardedExporter {
	return &guardedExporter{
		exporter: exp,
		kind:     kind,
		endpoint: endpoint,
		log:      logger.Global().Named("tracing"),
	}
}

func (e *guardedExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := e.exporter.ExportSpans(ctx, spans)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.dropped += len(spans)
		if !e.failing {
			e.failing = true
			e.log.Warn("Span exporter unavailable",
				"exporter", e.kind,
				"endpoint", e.endpoint,
				"span_count", len(spans),
				"error", err,
			)
		}
		return nil
	}
	if e.failing {
		e.log.Info("Span exporter recovered",
			"exporter", e.kind,
			"endpoint", e.endpoint,
			"dropped_spans", e.dropped,
		)
		e.failing = false
		e.dropped = 0
	}
	return nil
}

func (e *guardedExporter) Shutdown(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

func selectSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

// normalizeEndpoint strips scheme and path, since the gRPC exporter wants
// host:port.
func normalizeEndpoint(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return raw
}
