package tracer

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const defaultEndpoint = "localhost:4318"

// Options come from config.TracingConfig.
type Options struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Version     string
	Environment string
	// SampleRatio applies to root spans; children follow their parent. Zero samples all.
	SampleRatio float64
}

// InitTracer installs an OTLP HTTP exporter (Jaeger accepts OTLP on 4318) as the
// global tracer provider. The returned shutdown flushes pending spans. With
// tracing disabled both are no-ops.
func InitTracer(opts Options) func(context.Context) error {
	if !opts.Enabled {
		log.Println("OpenTelemetry tracing is disabled (set OTEL_ENABLED=true to enable)")
		return func(context.Context) error { return nil }
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Printf("Warning: Failed to create OTLP exporter: %v (tracing disabled)", err)
		return func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(opts)),
		sdktrace.WithSampler(newSampler(opts.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Printf("✅ OpenTelemetry tracer initialized (service: %s, endpoint: %s)", opts.ServiceName, endpoint)

	return tp.Shutdown
}

func newResource(opts Options) *resource.Resource {
	name := opts.ServiceName
	if name == "" {
		name = "ai-mediagen-be"
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(name)}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(opts.Version))
	}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(opts.Environment))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
