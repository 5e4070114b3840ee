// Package observe provides observability primitives for the transcription
// service: OpenTelemetry metrics and the provider setup that bridges them to
// a Prometheus /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all service metrics.
const meterName = "github.com/wirgen/wyoming-vosk"

// Metrics holds all OpenTelemetry metric instruments for the service. All
// fields are safe for concurrent use; the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// TranscribeDuration tracks time from the end of an utterance to the
	// emitted transcript. Use with attribute.String("language", ...).
	TranscribeDuration metric.Float64Histogram

	// ModelLoadDuration tracks how long loading a speech model from disk
	// takes. Use with attribute.String("model", ...).
	ModelLoadDuration metric.Float64Histogram

	// MatchScore tracks the similarity scores produced while correcting
	// transcripts against the sentence corpus, on a 0-100 scale.
	MatchScore metric.Float64Histogram

	// Transcripts counts emitted transcripts. Use with attributes:
	//   attribute.String("language", ...), attribute.String("mode", ...)
	Transcripts metric.Int64Counter

	// Corrections counts correction outcomes. Use with attributes:
	//   attribute.String("language", ...), attribute.String("outcome", ...)
	// where outcome is one of "exact", "corrected", "rejected" or "unknown".
	Corrections metric.Int64Counter

	// AudioBytes counts PCM bytes accepted from clients, after conversion
	// to the recogniser format.
	AudioBytes metric.Int64Counter

	// ActiveClients tracks the number of currently connected clients.
	ActiveClients metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// on-device speech decoding and model loading.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// scoreBuckets defines bucket boundaries for the 0-100 match score scale.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("wyoming_vosk.transcribe.duration",
		metric.WithDescription("Latency from end of utterance to emitted transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadDuration, err = m.Float64Histogram("wyoming_vosk.model.load.duration",
		metric.WithDescription("Time spent loading a speech model from disk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchScore, err = m.Float64Histogram("wyoming_vosk.match.score",
		metric.WithDescription("Similarity scores from sentence correction, 0-100."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Transcripts, err = m.Int64Counter("wyoming_vosk.transcripts",
		metric.WithDescription("Total transcripts emitted by language and mode."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("wyoming_vosk.corrections",
		metric.WithDescription("Total correction outcomes by language and outcome."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Counter("wyoming_vosk.audio.bytes",
		metric.WithDescription("Total PCM bytes accepted from clients."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if met.ActiveClients, err = m.Int64UpDownCounter("wyoming_vosk.active_clients",
		metric.WithDescription("Number of currently connected clients."),
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

// RecordTranscript records an emitted transcript with the standard attribute
// set.
func (m *Metrics) RecordTranscript(ctx context.Context, language, mode string) {
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("mode", mode),
		),
	)
}

// RecordCorrection records a correction outcome and, when the corpus was
// actually scanned, the best similarity score.
func (m *Metrics) RecordCorrection(ctx context.Context, language, outcome string, score float64) {
	m.Corrections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("outcome", outcome),
		),
	)
	if score >= 0 {
		m.MatchScore.Record(ctx, score)
	}
}

// RecordTranscribeDuration records the end-of-utterance to transcript latency
// in seconds.
func (m *Metrics) RecordTranscribeDuration(ctx context.Context, language string, seconds float64) {
	m.TranscribeDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("language", language)),
	)
}

// RecordModelLoad records how long loading the named model took, in seconds.
func (m *Metrics) RecordModelLoad(ctx context.Context, model string, seconds float64) {
	m.ModelLoadDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("model", model)),
	)
}
