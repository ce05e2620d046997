package observe

import (
	"context"
	"testing"
	"time"

	"github.com/dgallion1/hansardgest/internal/extract"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the data point carrying attr, or the
// total over all points when attr is the zero value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if attr.Key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.AsString() == attr.Value.AsString() {
			total += dp.Value
		}
	}
	return total
}

func TestRecordExtraction_Success(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	answer := extract.Utterance{Kind: extract.Answer, Text: "a"}
	results := []extract.ChamberResult{{
		Chamber: extract.QuestionsAndAnswers,
		Utterances: []extract.Utterance{
			{Kind: extract.Question, Text: "q", LinkedAnswer: &answer},
			{Kind: extract.Speech, Text: "s", Interjections: []extract.Interjection{{Sequence: 1}, {Sequence: 2}}},
		},
	}}
	m.RecordExtraction(ctx, 150*time.Millisecond, results, nil)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "hansardgest.utterances", attribute.String("kind", "answer")); got != 1 {
		t.Errorf("expected 1 answer, got %d", got)
	}
	if got := sumFor(t, rm, "hansardgest.utterances", attribute.KeyValue{}); got != 3 {
		t.Errorf("expected 3 utterances, got %d", got)
	}
	if got := sumFor(t, rm, "hansardgest.interjections", attribute.KeyValue{}); got != 2 {
		t.Errorf("expected 2 interjections, got %d", got)
	}

	met := findMetric(rm, "hansardgest.extract.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("expected one histogram observation, got %+v", met.Data)
	}
	if hist.DataPoints[0].Sum != 0.15 {
		t.Errorf("expected sum 0.15, got %f", hist.DataPoints[0].Sum)
	}
}

func TestRecordExtraction_Failure(t *testing.T) {
	m, reader := newTestMetrics(t)
	_, err := extract.Extract("", "")
	m.RecordExtraction(context.Background(), time.Millisecond, nil, err)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "hansardgest.extract.failures", attribute.String("kind", "empty_document")); got != 1 {
		t.Errorf("expected 1 empty_document failure, got %d", got)
	}
}

func TestRecordDocument(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordDocument(ctx, "completed")
	m.RecordDocument(ctx, "completed")
	m.RecordDocument(ctx, "failed")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "hansardgest.documents", attribute.String("status", "completed")); got != 2 {
		t.Errorf("expected 2 completed, got %d", got)
	}
	if got := sumFor(t, rm, "hansardgest.documents", attribute.String("status", "failed")); got != 1 {
		t.Errorf("expected 1 failed, got %d", got)
	}
}
