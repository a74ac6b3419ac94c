package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docjournal/internal/convert"
	"github.com/dgallion1/docjournal/internal/sink"
	"github.com/dgallion1/docjournal/internal/source"
)

// Worker processes a single conversion job.
type Worker struct {
	sink       sink.Sink
	log        *slog.Logger
	stats      *Stats
	convOpts   convert.Options
	sourceOpts source.Options
	backoff    func(int) time.Duration
}

// NewWorker creates a worker. snk and stats may be nil.
func NewWorker(snk sink.Sink, stats *Stats, log *slog.Logger, convOpts convert.Options, sourceOpts source.Options) *Worker {
	return &Worker{
		sink:       snk,
		log:        log,
		stats:      stats,
		convOpts:   convOpts,
		sourceOpts: sourceOpts,
		backoff:    Backoff,
	}
}

// Process runs parse, convert and publish for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "mod_id", job.ModID, "filename", job.Filename)
	start := time.Now()

	fail := func(phase, msg string) {
		job.AddError(msg)
		job.SetStatus(StatusFailed, phase)
		if w.stats != nil {
			w.stats.RecordFailure(time.Since(start))
		}
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	src, err := source.ForFile(job.Filename, w.sourceOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		fail("parsing", err.Error())
		return
	}

	doc, err := src.Load(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		fail("parsing", fmt.Sprintf("parse: %s", err))
		return
	}
	job.releaseFileData()
	log.Info("parsed document", "pages", len(doc.Pages))

	// Phase 2: Convert
	job.SetStatus(StatusConverting, "converting")
	res, err := convert.RunLogged(log, convert.Request{
		ModID:    job.ModID,
		Title:    job.Title,
		Document: doc,
		Options:  w.convOpts,
	})
	if err != nil {
		fail("converting", fmt.Sprintf("convert: %s", err))
		return
	}
	job.SetResult(res)

	// Phase 3: Publish
	if w.sink != nil {
		job.SetStatus(StatusPublishing, "publishing")
		pub := sink.Publication{ModID: job.ModID, Title: res.IR.Title, Entries: res.All()}
		err := withRetry(ctx, w.backoff, func(attempt int, err error) {
			log.Warn("retryable publish error", "attempt", attempt, "error", err)
		}, func() error {
			return w.sink.Publish(ctx, pub)
		})
		if err != nil {
			log.Error("publish failed", "error", err)
			fail("publishing", fmt.Sprintf("publish: %s", err))
			return
		}
		log.Info("published", "entries", len(pub.Entries))
	}

	if w.stats != nil {
		w.stats.Record(time.Since(start))
	}
	job.SetStatus(StatusCompleted, "done")
}
