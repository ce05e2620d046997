package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/observe"
	"github.com/dgallion1/hansardgest/internal/store"
)

// Fetcher downloads a transcript by URL. *source.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Worker processes a single transcript job.
type Worker struct {
	engine  *extract.Engine
	store   store.Store
	fetcher Fetcher
	stats   *Stats
	metrics *observe.Metrics
	log     *slog.Logger

	// storeSem bounds concurrent writes across all workers.
	storeSem   chan struct{}
	retryDelay func(err error, attempt int) time.Duration
}

func NewWorker(engine *extract.Engine, st store.Store, fetcher Fetcher, stats *Stats, metrics *observe.Metrics, log *slog.Logger, storeSem chan struct{}) *Worker {
	if storeSem == nil {
		storeSem = make(chan struct{}, 1)
	}
	return &Worker{
		engine:     engine,
		store:      st,
		fetcher:    fetcher,
		stats:      stats,
		metrics:    metrics,
		log:        log,
		storeSem:   storeSem,
		retryDelay: RetryDelay,
	}
}

// Process runs fetch, extraction and storage for a job. Every outcome ends
// in a terminal job status; nothing is returned.
func (w *Worker) Process(ctx context.Context, job *Job) {
	ctx, span := observe.Tracer().Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("job_id", job.ID)),
	)
	defer span.End()

	status := w.process(ctx, job)
	span.SetAttributes(
		attribute.String("document", job.Name()),
		attribute.String("status", string(status)),
	)
	if status == StatusFailed {
		span.SetStatus(codes.Error, job.Snapshot().FailureKind)
	}
	w.metrics.RecordDocument(ctx, string(status))
}

func (w *Worker) process(ctx context.Context, job *Job) JobStatus {
	log := w.log.With("job_id", job.ID, "document", job.Name())

	// Phase 1: Fetch
	if job.Text() == "" && job.SourceURL != "" {
		job.SetStatus(StatusFetching, "fetching")
		text, err := w.fetch(ctx, job.SourceURL, log)
		if err != nil {
			log.Error("fetch failed", "url", job.SourceURL, "error", err)
			job.Fail("fetch", "fetching", err)
			return StatusFailed
		}
		job.SetText(text)
	}
	text := job.Text()
	name := job.Name()

	// Phase 1.5: Dedup check
	exists, err := w.store.HasDocument(ctx, name)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if exists {
		log.Info("document already stored, skipping")
		job.SetStatus(StatusDupSkipped, "dedup")
		return StatusDupSkipped
	}

	// Phase 2: Extract
	job.SetStatus(StatusExtracting, "extracting")
	start := time.Now()
	results, err := w.engine.Extract(extract.RawTranscript{
		Text:      text,
		DateHint:  job.DateHint,
		HouseHint: job.House,
	})
	elapsed := time.Since(start)
	w.metrics.RecordExtraction(ctx, elapsed, results, err)
	if err != nil {
		w.stats.RecordFailure(elapsed)
		kind := extract.FailureKind(err)
		log.Warn("extraction failed", "kind", kind, "error", err)
		job.Fail(kind, "extracting", err)
		return StatusFailed
	}

	utterances := extract.CountUtterances(results)
	w.stats.Record(elapsed, utterances)
	job.SetExtracted(len(results), utterances, countInterjections(results))
	log.Info("extraction complete", "segments", len(results), "utterances", utterances, "elapsed_ms", elapsed.Milliseconds())

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	select {
	case w.storeSem <- struct{}{}:
	case <-ctx.Done():
		job.Fail("internal", "storing", ctx.Err())
		return StatusFailed
	}
	doc := store.Document{Name: name, House: job.House, SourceURL: job.SourceURL, Text: text}
	stored, err := w.store.SaveDocument(ctx, doc, results)
	<-w.storeSem

	if errors.Is(err, store.ErrDuplicate) {
		log.Info("document stored concurrently, skipping")
		job.SetStatus(StatusDupSkipped, "storing")
		return StatusDupSkipped
	}
	if err != nil {
		log.Error("store failed", "error", err)
		job.Fail("store", "storing", err)
		return StatusFailed
	}
	job.SetStored(stored)
	log.Info("storage complete", "stored", stored)

	if utterances == 0 {
		job.SetStatus(StatusEmpty, "done")
		return StatusEmpty
	}
	job.SetStatus(StatusCompleted, "done")
	return StatusCompleted
}

// fetch downloads url, retrying transient failures.
func (w *Worker) fetch(ctx context.Context, url string, log *slog.Logger) (string, error) {
	if w.fetcher == nil {
		return "", fmt.Errorf("no fetcher configured for %s", url)
	}
	var lastErr error
	for attempt := range MaxRetries {
		text, err := w.fetcher.Fetch(ctx, url)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		delay := w.retryDelay(err, attempt)
		log.Warn("retryable fetch error", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func countInterjections(results []extract.ChamberResult) int {
	n := 0
	for _, r := range results {
		for _, u := range r.Utterances {
			n += len(u.Interjections)
			if u.LinkedAnswer != nil {
				n += len(u.LinkedAnswer.Interjections)
			}
		}
	}
	return n
}
