package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// quietPaths are scraped or probed on a timer; spans and completion logs for
// them would drown out real operator traffic.
var quietPaths = map[string]bool{
	"/metrics": true,
	"/healthz": true,
	"/readyz":  true,
}

// responseWriter captures the status code on its way out.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets [http.ResponseController] reach the real writer, which the
// websocket upgrade on /ws needs to hijack the connection.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware traces each request, stamps X-Correlation-ID from the trace ID,
// records the duration on [Metrics.HTTPRequestDuration] and logs completion.
// Scrape and probe paths skip tracing and logging but keep the metric.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			quiet := quietPaths[r.URL.Path]
			rec := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			ctx := r.Context()
			if !quiet {
				ctx = prop.Extract(ctx, propagation.HeaderCarrier(r.Header))
				var span trace.Span
				ctx, span = StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						semconv.HTTPRequestMethodKey.String(r.Method),
						semconv.URLPath(r.URL.Path),
					),
				)
				defer span.End()

				if cid := CorrelationID(ctx); cid != "" {
					w.Header().Set("X-Correlation-ID", cid)
				}
				prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

				defer func() {
					span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
				}()
			}

			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
				),
			)
			if quiet {
				return
			}
			slog.LogAttrs(ctx, slog.LevelInfo, "request completed",
				slog.String("trace_id", CorrelationID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
