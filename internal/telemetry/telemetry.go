// Package telemetry sets up OpenTelemetry export and instruments calls to the gate
// network API with a span and a latency histogram.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer and meter used by library code.
const InstrumentationName = "github.com/starseeker/starseeker"

// Config controls OTLP export. With Enabled false nothing is exported and the global
// no-op providers stay in place.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool

	// MetricInterval is the OTLP metric push period. Default: 15 seconds
	MetricInterval time.Duration
}

// Provider owns the SDK providers installed by Init.
type Provider struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
}

// Shutdown flushes pending spans and metrics. It is safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	if p.metrics != nil {
		errs = append(errs, p.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Init installs OTLP/gRPC trace and metric exporters as the global providers.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.MetricInterval == 0 {
		cfg.MetricInterval = 15 * time.Second
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	spanExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = spanExporter.Shutdown(ctx) //nolint:errcheck // already failing
		return nil, err
	}

	p := &Provider{
		traces: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
		),
		metrics: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval))),
			sdkmetric.WithResource(res),
		),
	}

	otel.SetTracerProvider(p.traces)
	otel.SetMeterProvider(p.metrics)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// callLatency looks the histogram up on the current global meter. The SDK returns the
// same instrument for repeated lookups.
func callLatency() (metric.Float64Histogram, error) {
	return otel.Meter(InstrumentationName).Float64Histogram("starseeker.gateway.call.duration",
		metric.WithDescription("Duration of gate network API calls including retries"),
		metric.WithUnit("s"),
	)
}

// Call is one traced and timed operation against the gate network API.
type Call struct {
	ctx   context.Context
	span  trace.Span
	name  string
	start time.Time
}

// StartCall starts a span named name. End must be called exactly once.
func StartCall(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Call{ctx: ctx, span: span, name: name, start: time.Now()}
}

// End records err on the span, adds extra attributes, and observes the call duration
// labelled by operation and outcome.
func (c *Call) End(err error, extra ...attribute.KeyValue) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	c.span.SetAttributes(extra...)
	c.span.End()

	h, herr := callLatency()
	if herr != nil {
		otel.Handle(herr)
		return
	}
	h.Record(c.ctx, time.Since(c.start).Seconds(), metric.WithAttributes(
		attribute.String("operation", c.name),
		attribute.String("outcome", outcome),
	))
}
