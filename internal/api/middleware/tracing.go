package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/starseeker/starseeker/internal/api/middleware"

// Tracing starts a server span per request, continuing any W3C trace context the caller
// sent. The span is named after the chi route pattern once the handler returns, so
// /v1/gates/SOL and /v1/gates/PRX share one span name.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r, serviceName)...),
			)
			defer span.End()

			rec := newStatusRecorder(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			finishSpan(span, r, rec)
		})
	}
}

func requestAttributes(r *http.Request, serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("http.request.method", r.Method),
		attribute.String("url.path", r.URL.Path),
		attribute.String("url.scheme", scheme(r)),
		attribute.String("server.address", r.Host),
		attribute.String("client.address", r.RemoteAddr),
		attribute.String("user_agent.original", r.UserAgent()),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, attribute.String("url.query", r.URL.RawQuery))
	}
	if id := GetRequestID(r.Context()); id != "" {
		attrs = append(attrs, attribute.String("request.id", id))
	}
	return attrs
}

func finishSpan(span trace.Span, r *http.Request, rec *statusRecorder) {
	route := routePattern(r)
	span.SetName(r.Method + " " + route)
	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", rec.statusCode),
		attribute.Int64("http.response.body.size", rec.written),
	)
	// 4xx are the caller's mistake and leave the span unset.
	if rec.statusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
	}
}

func scheme(r *http.Request) string {
	switch {
	case r.TLS != nil:
		return "https"
	case r.Header.Get("X-Forwarded-Proto") != "":
		return r.Header.Get("X-Forwarded-Proto")
	default:
		return "http"
	}
}
