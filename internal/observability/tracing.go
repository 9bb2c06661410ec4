// Package observability wires OpenTelemetry tracing around the conversation
// pipeline. Tracing is opt-in: with no exporter configured every span is a
// no-op.
package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is the service name attached to traces.
const DefaultServiceName = "patient-appointments"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// Config holds tracing configuration.
type Config struct {
	// ServiceName is the name of the service (defaults to "patient-appointments").
	ServiceName string

	// ExporterType specifies the exporter: "otlp", "stdout", or "none".
	ExporterType string

	// OTLPEndpoint is the OTLP/HTTP endpoint (host:port). Empty uses the
	// exporter's default.
	OTLPEndpoint string

	// OTLPHeaders are additional headers for OTLP requests.
	OTLPHeaders map[string]string
}

// InitFromEnv initializes tracing from standard OpenTelemetry environment
// variables:
//   - OTEL_SERVICE_NAME: service name
//   - OTEL_TRACES_EXPORTER: "otlp", "stdout", or "none" (default: "none")
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
//   - OTEL_EXPORTER_OTLP_HEADERS: "key1=value1,key2=value2"
func InitFromEnv() error {
	return Init(Config{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		ExporterType: getEnv("OTEL_TRACES_EXPORTER", "none"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:  parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	})
}

// Init initializes tracing with the given configuration.
func Init(config Config) error {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	if config.ExporterType == "" || config.ExporterType == "none" {
		tracer = otel.GetTracerProvider().Tracer(config.ServiceName)
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch config.ExporterType {
	case "otlp":
		exporter, err = createOTLPExporter(config)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}

	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}

	default:
		return fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(config.ServiceName)

	return nil
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	return tracerProvider.Shutdown(ctx)
}

// StartSpan creates a span from a parent context with optional attributes.
func StartSpan(ctx context.Context, name string, data map[string]any) (context.Context, *Span) {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(DefaultServiceName)
	}

	spanCtx, span := tracer.Start(ctx, name)

	if data != nil {
		attrs := make([]attribute.KeyValue, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, convertToAttribute(k, v))
		}
		span.SetAttributes(attrs...)
	}

	return spanCtx, &Span{
		ctx:  spanCtx,
		span: span,
		name: name,
	}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	ctx   context.Context
	span  trace.Span
	name  string
	ended bool
}

// End finishes the span.
func (s *Span) End() {
	if !s.ended && s.span != nil {
		s.span.End()
		s.ended = true
	}
}

// Name returns the span name.
func (s *Span) Name() string {
	return s.name
}

// Context returns the span's context.
func (s *Span) Context() context.Context {
	return s.ctx
}

// SetAttribute adds an attribute to the span.
func (s *Span) SetAttribute(key string, value any) {
	if s.span != nil {
		s.span.SetAttributes(convertToAttribute(key, value))
	}
}

// SetError marks the span as having an error.
func (s *Span) SetError(err error) {
	if s.span != nil && err != nil {
		s.span.RecordError(err)
	}
}

// IsEnded returns whether the span has been ended.
func (s *Span) IsEnded() bool {
	return s.ended
}

func createOTLPExporter(config Config) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if config.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(config.OTLPEndpoint))
	}
	if len(config.OTLPHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(config.OTLPHeaders))
	}

	client := otlptracehttp.NewClient(opts...)
	return otlptrace.New(context.Background(), client)
}

func convertToAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseHeaders(headerStr string) map[string]string {
	if headerStr == "" {
		return nil
	}

	headers := make(map[string]string)
	var current string
	flush := func() {
		if current == "" {
			return
		}
		for i, char := range current {
			if char == '=' {
				headers[current[:i]] = current[i+1:]
				break
			}
		}
		current = ""
	}
	for _, char := range headerStr {
		if char == ',' {
			flush()
			continue
		}
		current += string(char)
	}
	flush()
	return headers
}
