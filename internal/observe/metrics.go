// Package observe provides application-wide observability primitives for
// VerseCast: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all VerseCast metrics.
const meterName = "github.com/versecast/versecast"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscribeDuration tracks segment transcription latency.
	TranscribeDuration metric.Float64Histogram

	// MatchDuration tracks verse matcher search latency.
	MatchDuration metric.Float64Histogram

	// --- Counters ---

	// Fragments counts transcript fragments entering the detection gate.
	// Use with attribute: attribute.String("strategy", ...)
	Fragments metric.Int64Counter

	// Detections counts emitted detection events. Use with attribute:
	//   attribute.String("source", "matcher"|"pre_resolved")
	Detections metric.Int64Counter

	// SegmentUploads counts chunked segment uploads. Use with attribute:
	//   attribute.String("status", "ok"|"error"|"skipped")
	SegmentUploads metric.Int64Counter

	// StrategyFallbacks counts continuous-to-chunked capture swaps.
	StrategyFallbacks metric.Int64Counter

	// Retries counts retry attempts against transcription and search
	// backends. Use with attribute: attribute.String("op", ...)
	Retries metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live capture sessions (0 or 1).
	ActiveSessions metric.Int64UpDownCounter

	// OperatorConnections tracks the number of connected operator clients.
	OperatorConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for live-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// instruments wraps a meter and collects creation errors so NewMetrics can
// declare every instrument in one flat block and check once at the end.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) latency(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) histogram(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
	)
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return g
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}

	met := &Metrics{
		TranscribeDuration: in.latency("versecast.transcribe.duration",
			"Latency of segment transcription."),
		MatchDuration: in.latency("versecast.match.duration",
			"Latency of verse matcher searches."),

		Fragments: in.counter("versecast.fragments",
			"Total transcript fragments by capture strategy."),
		Detections: in.counter("versecast.detections",
			"Total detection events by source."),
		SegmentUploads: in.counter("versecast.segment.uploads",
			"Total chunked segment uploads by status."),
		StrategyFallbacks: in.counter("versecast.strategy.fallbacks",
			"Total capture strategy fallback swaps."),
		Retries: in.counter("versecast.retries",
			"Total retry attempts by operation."),

		ProviderErrors: in.counter("versecast.provider.errors",
			"Total provider errors by provider and kind."),

		ActiveSessions: in.gauge("versecast.active_sessions",
			"Number of live capture sessions."),
		OperatorConnections: in.gauge("versecast.operator_connections",
			"Number of connected operator clients."),

		HTTPRequestDuration: in.histogram("versecast.http.request.duration",
			"HTTP request latency by method and path."),
	}

	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFragment records one fragment entering the pipeline.
func (m *Metrics) RecordFragment(ctx context.Context, strategy string) {
	m.Fragments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("strategy", strategy)),
	)
}

// RecordDetection records one emitted detection event.
func (m *Metrics) RecordDetection(ctx context.Context, source string) {
	m.Detections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordSegmentUpload records one chunked segment upload outcome.
func (m *Metrics) RecordSegmentUpload(ctx context.Context, status string) {
	m.SegmentUploads.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
