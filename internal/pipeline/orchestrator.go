package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/hansardgest/internal/config"
	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/observe"
	"github.com/dgallion1/hansardgest/internal/store"
)

// Orchestrator manages the transcript ingestion pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	engine   *extract.Engine
	store    store.Store
	fetcher  Fetcher
	stats    *Stats
	metrics  *observe.Metrics
	storeSem chan struct{}
	log      *slog.Logger
	cfg      config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, engine *extract.Engine, st store.Store, fetcher Fetcher, metrics *observe.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		engine:   engine,
		store:    st,
		fetcher:  fetcher,
		stats:    NewStats(time.Hour),
		metrics:  metrics,
		storeSem: make(chan struct{}, max(cfg.MaxConcurrentStore, 1)),
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) newWorker() *Worker {
	return NewWorker(o.engine, o.store, o.fetcher, o.stats, o.metrics, o.log, o.storeSem)
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Engine returns the extraction engine for synchronous use by API handlers.
func (o *Orchestrator) Engine() *extract.Engine {
	return o.engine
}

// Store returns the persistence collaborator.
func (o *Orchestrator) Store() store.Store {
	return o.store
}

// Stats returns the rolling extraction statistics.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Metrics returns the metric instruments.
func (o *Orchestrator) Metrics() *observe.Metrics {
	return o.metrics
}
