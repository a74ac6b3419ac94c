package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docjournal/internal/config"
	"github.com/dgallion1/docjournal/internal/convert"
	"github.com/dgallion1/docjournal/internal/sink"
	"github.com/dgallion1/docjournal/internal/source"
)

// Orchestrator manages the document conversion pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	sink  sink.Sink
	stats *Stats
	log   *slog.Logger
	cfg   config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. snk may be nil to skip publishing.
func NewOrchestrator(cfg config.Config, snk sink.Sink, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		sink:  snk,
		stats: NewStats(time.Hour),
		log:   log,
		cfg:   cfg,
	}
}

// ConvertOptions returns the conversion options derived from config.
func (o *Orchestrator) ConvertOptions() convert.Options {
	return convert.Options{
		TOCTitle:  o.cfg.TOCTitle,
		Policy:    o.cfg.PageOrderPolicy,
		CacheSize: o.cfg.IDCacheSize,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.sink, o.stats, o.log, o.ConvertOptions(), source.Options{
				PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext,
			})
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

// Stats returns the conversion latency tracker.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Sink returns the configured sink, or nil.
func (o *Orchestrator) Sink() sink.Sink {
	return o.sink
}
