// Package observe provides application-wide observability primitives for
// intervoq: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all intervoq metrics.
const meterName = "github.com/intervoq/intervoq"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TurnDuration tracks one full answer-to-next-question cycle.
	TurnDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// LLMDuration tracks gateway completion latency. Use with attribute:
	//   attribute.String("task", ...)
	LLMDuration metric.Float64Histogram

	// ReportDuration tracks final report generation latency.
	ReportDuration metric.Float64Histogram

	// --- Counters ---

	// TurnsProcessed counts processed answers. Use with attributes:
	//   attribute.String("phase", ...), attribute.String("outcome", ...)
	TurnsProcessed metric.Int64Counter

	// QuestionsAsked counts questions delivered to candidates. Use with
	// attributes:
	//   attribute.String("phase", ...), attribute.String("source", ...)
	QuestionsAsked metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("account", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// STTReconnects counts STT stream re-establishments.
	STTReconnects metric.Int64Counter

	// --- Gauges ---

	// ActiveInterviews tracks the number of interviews currently in progress.
	ActiveInterviews metric.Int64UpDownCounter

	// ActiveConnections tracks live candidate WebSocket connections.
	ActiveConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for interview-turn latencies: sub-second STT events up to multi-second
// LLM calls and report generation.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("intervoq.turn.duration",
		metric.WithDescription("Latency of one answer-to-next-question cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("intervoq.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("intervoq.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("intervoq.llm.duration",
		metric.WithDescription("Latency of gateway completions by task."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReportDuration, err = m.Float64Histogram("intervoq.report.duration",
		metric.WithDescription("Latency of final report generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TurnsProcessed, err = m.Int64Counter("intervoq.turns.processed",
		metric.WithDescription("Total processed answers by phase and outcome."),
	); err != nil {
		return nil, err
	}
	if met.QuestionsAsked, err = m.Int64Counter("intervoq.questions.asked",
		metric.WithDescription("Total questions delivered by phase and source."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("intervoq.provider.requests",
		metric.WithDescription("Total provider API requests by provider, account, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("intervoq.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.STTReconnects, err = m.Int64Counter("intervoq.stt.reconnects",
		metric.WithDescription("Total STT stream re-establishments."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveInterviews, err = m.Int64UpDownCounter("intervoq.active_interviews",
		metric.WithDescription("Number of interviews currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("intervoq.active_connections",
		metric.WithDescription("Number of live candidate WebSocket connections."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("intervoq.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
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

// RecordTurn records one processed answer with its duration.
func (m *Metrics) RecordTurn(ctx context.Context, phase, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	)
	m.TurnsProcessed.Add(ctx, 1, attrs)
	m.TurnDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordQuestion records a question delivered to the candidate.
func (m *Metrics) RecordQuestion(ctx context.Context, phase, source string) {
	m.QuestionsAsked.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("source", source),
		),
	)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, account, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("account", account),
			attribute.String("status", status),
		),
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
