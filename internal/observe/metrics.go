// Package observe provides application-wide observability primitives for
// voxgate: OpenTelemetry metrics bridged to Prometheus via [InitProvider],
// and a package-level default [Metrics] instance for convenience.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxgate metrics.
const meterName = "github.com/riftwave/voxgate"

// Metrics holds all OpenTelemetry metric instruments for the gateway. All
// fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscribeDuration tracks whisper.cpp inference latency per call.
	TranscribeDuration metric.Float64Histogram

	// TranscribeTotal counts transcription attempts. Use with attribute
	// attribute.String("status", "ok"|"error").
	TranscribeTotal metric.Int64Counter

	// ActiveSessions tracks the number of live WebSocket sessions.
	ActiveSessions metric.Int64UpDownCounter

	// LimiterInFlight tracks the number of transcription calls currently
	// holding a limiter lease.
	LimiterInFlight metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time for the
	// control endpoints (/healthz, /readyz, /metrics). Use with attributes
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// one-shot whisper.cpp inference calls, which run from tens of milliseconds
// to several seconds depending on utterance length.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("voxgate.transcribe.duration",
		metric.WithDescription("Latency of whisper.cpp transcription calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeTotal, err = m.Int64Counter("voxgate.transcribe.total",
		metric.WithDescription("Total transcription attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxgate.active_sessions",
		metric.WithDescription("Number of live WebSocket sessions."),
	); err != nil {
		return nil, err
	}
	if met.LimiterInFlight, err = m.Int64UpDownCounter("voxgate.limiter.in_flight",
		metric.WithDescription("Number of transcription calls currently holding a limiter lease."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxgate.http.request.duration",
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

// RecordTranscribe implements [engine.Recorder]. It records a transcription
// attempt's duration and outcome.
func (m *Metrics) RecordTranscribe(ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	ctx := context.Background()
	m.TranscribeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
	m.TranscribeTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// LimiterInFlightDelta implements [engine.Recorder]. It adjusts the
// in-flight-lease gauge by delta.
func (m *Metrics) LimiterInFlightDelta(delta int64) {
	m.LimiterInFlight.Add(context.Background(), delta)
}

// SessionOpened increments the active-session gauge.
func (m *Metrics) SessionOpened() { m.ActiveSessions.Add(context.Background(), 1) }

// SessionClosed decrements the active-session gauge.
func (m *Metrics) SessionClosed() { m.ActiveSessions.Add(context.Background(), -1) }
