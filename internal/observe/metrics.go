// Package observe holds the OpenTelemetry instruments for hansardgest.
//
// Instruments are created from any [metric.MeterProvider]; production wires
// the SDK provider to a Prometheus exporter through [InitProvider], tests use
// a manual reader. [DefaultMetrics] returns an instance built on the global
// provider.
package observe

import (
	"context"
	"sync"
	"time"

	"github.com/dgallion1/hansardgest/internal/extract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dgallion1/hansardgest"

// Metrics holds every instrument the service records. All fields are safe
// for concurrent use.
type Metrics struct {
	// ExtractDuration is wall time spent in the extraction engine per
	// document.
	ExtractDuration metric.Float64Histogram

	// Documents counts processed documents by outcome:
	//   attribute.String("status", "completed" | "empty" | "failed" | "duplicate_skipped")
	Documents metric.Int64Counter

	// Utterances counts extracted utterances by attribute.String("kind", ...).
	Utterances metric.Int64Counter

	// Interjections counts interjections attached to extracted utterances.
	Interjections metric.Int64Counter

	// ExtractFailures counts engine failures by attribute.String("kind", ...).
	ExtractFailures metric.Int64Counter

	// HTTPRequestDuration is API request latency by method, route and
	// status.
	HTTPRequestDuration metric.Float64Histogram
}

// Extraction of a large transcript can take several seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExtractDuration, err = m.Float64Histogram("hansardgest.extract.duration",
		metric.WithDescription("Latency of transcript extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Documents, err = m.Int64Counter("hansardgest.documents",
		metric.WithDescription("Processed documents by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("hansardgest.utterances",
		metric.WithDescription("Extracted utterances by kind."),
	); err != nil {
		return nil, err
	}
	if met.Interjections, err = m.Int64Counter("hansardgest.interjections",
		metric.WithDescription("Interjections attached to extracted utterances."),
	); err != nil {
		return nil, err
	}
	if met.ExtractFailures, err = m.Int64Counter("hansardgest.extract.failures",
		metric.WithDescription("Extraction failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("hansardgest.http.request.duration",
		metric.WithDescription("Latency of API requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on
// [otel.GetMeterProvider]. Call it after [InitProvider].
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

// RecordExtraction records one engine run. A nil err means results were
// produced, even if every segment came back empty.
func (m *Metrics) RecordExtraction(ctx context.Context, elapsed time.Duration, results []extract.ChamberResult, err error) {
	m.ExtractDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		m.ExtractFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("kind", extract.FailureKind(err))),
		)
		return
	}

	byKind := make(map[extract.Kind]int64)
	var interjections int64
	count := func(u extract.Utterance) {
		byKind[u.Kind]++
		interjections += int64(len(u.Interjections))
	}
	for _, r := range results {
		for _, u := range r.Utterances {
			count(u)
			if u.LinkedAnswer != nil {
				count(*u.LinkedAnswer)
			}
		}
	}
	for kind, n := range byKind {
		m.Utterances.Add(ctx, n, metric.WithAttributes(attribute.String("kind", string(kind))))
	}
	if interjections > 0 {
		m.Interjections.Add(ctx, interjections)
	}
}

// RecordDocument counts one processed document with its final status.
func (m *Metrics) RecordDocument(ctx context.Context, status string) {
	m.Documents.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
