package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	httpMeter              = otel.Meter("shadowledger/http")
	httpRequestDuration, _ = httpMeter.Float64Histogram("http.server.route.duration",
		metric.WithDescription("HTTP request duration per route in seconds"),
		metric.WithUnit("s"),
	)
	httpRequestTotal, _ = httpMeter.Int64Counter("http.server.route.total",
		metric.WithDescription("Total HTTP requests per route"),
	)
)

// RouteResolver maps a request to its registered pattern; *http.ServeMux
// satisfies it.
type RouteResolver interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// Tracing names the active server span after the matched route pattern
// (e.g. "GET /api/accounts/{id}") and records per-route metrics. It runs
// inside Telemetry, which owns the span itself.
func Tracing(routes RouteResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := "unmatched"
			if _, pattern := routes.Handler(r); pattern != "" {
				route = pattern
			}
			// Method-qualified patterns ("GET /x") carry the method already.
			if _, path, ok := strings.Cut(route, " "); ok {
				route = path
			}

			ctx := r.Context()
			span := trace.SpanFromContext(ctx)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := wrapped.status
			if status == 0 {
				status = http.StatusOK
			}
			if status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			httpRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			httpRequestTotal.Add(ctx, 1, attrs)
		})
	}
}
