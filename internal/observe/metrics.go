// Package observe provides application-wide observability primitives for
// geoquiz: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all geoquiz metrics.
const meterName = "github.com/MrWong99/geoquiz"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RoundDuration tracks how long players take to resolve a round. Use with
	// attributes: attribute.String("mode", ...), attribute.String("outcome", ...)
	RoundDuration metric.Float64Histogram

	// StoreDuration tracks point set store latency. Use with attribute:
	//   attribute.String("op", ...)
	StoreDuration metric.Float64Histogram

	// --- Counters ---

	// RoundsResolved counts resolved rounds by mode and outcome.
	RoundsResolved metric.Int64Counter

	// Transcripts counts graded transcripts. Use with attribute:
	//   attribute.String("verdict", ...)
	Transcripts metric.Int64Counter

	// GamesStarted counts started games by mode.
	GamesStarted metric.Int64Counter

	// GamesCompleted counts games that reached the results screen by mode.
	GamesCompleted metric.Int64Counter

	// RecognizerRestarts counts automatic speech recognition restarts.
	RecognizerRestarts metric.Int64Counter

	// ProviderRequests counts STT provider stream openings. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// RecognizerErrors counts recognition errors by kind
	// ("permission_denied", "unsupported", "transient").
	RecognizerErrors metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveGames tracks the number of games with an open session.
	ActiveGames metric.Int64UpDownCounter

	// ActiveListeners tracks the number of sessions currently listening.
	ActiveListeners metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// roundBuckets defines histogram bucket boundaries (in seconds) for the time
// a player needs to answer.
var roundBuckets = []float64{
	0.5, 1, 1.5, 2, 3, 5, 8, 13, 21, 34, 60,
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// backend operations.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RoundDuration, err = m.Float64Histogram("geoquiz.round.duration",
		metric.WithDescription("Time from round start to resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(roundBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreDuration, err = m.Float64Histogram("geoquiz.store.duration",
		metric.WithDescription("Latency of point set store operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RoundsResolved, err = m.Int64Counter("geoquiz.rounds.resolved",
		metric.WithDescription("Total resolved rounds by mode and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("geoquiz.transcripts",
		metric.WithDescription("Total graded transcripts by verdict."),
	); err != nil {
		return nil, err
	}
	if met.GamesStarted, err = m.Int64Counter("geoquiz.games.started",
		metric.WithDescription("Total started games by mode."),
	); err != nil {
		return nil, err
	}
	if met.GamesCompleted, err = m.Int64Counter("geoquiz.games.completed",
		metric.WithDescription("Total games played to the end by mode."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerRestarts, err = m.Int64Counter("geoquiz.recognizer.restarts",
		metric.WithDescription("Total automatic speech recognition restarts."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("geoquiz.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.RecognizerErrors, err = m.Int64Counter("geoquiz.recognizer.errors",
		metric.WithDescription("Total speech recognition errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("geoquiz.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveGames, err = m.Int64UpDownCounter("geoquiz.active_games",
		metric.WithDescription("Number of games with an open session."),
	); err != nil {
		return nil, err
	}
	if met.ActiveListeners, err = m.Int64UpDownCounter("geoquiz.active_listeners",
		metric.WithDescription("Number of sessions currently listening for answers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("geoquiz.http.request.duration",
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

// RecordRound records a resolved round and how long it took.
func (m *Metrics) RecordRound(ctx context.Context, mode, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	m.RoundsResolved.Add(ctx, 1, attrs)
	m.RoundDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTranscript records one graded transcript.
func (m *Metrics) RecordTranscript(ctx context.Context, verdict string) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// RecordGameStarted records a started game.
func (m *Metrics) RecordGameStarted(ctx context.Context, mode string) {
	m.GamesStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordGameCompleted records a game that reached its results.
func (m *Metrics) RecordGameCompleted(ctx context.Context, mode string) {
	m.GamesCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordRecognizerError records a speech recognition error.
func (m *Metrics) RecordRecognizerError(ctx context.Context, kind string) {
	m.RecognizerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordStoreOp records the latency of a store operation.
func (m *Metrics) RecordStoreOp(ctx context.Context, op string, d time.Duration) {
	m.StoreDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
