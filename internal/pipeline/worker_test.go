package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docjournal/internal/config"
	"github.com/dgallion1/docjournal/internal/convert"
	"github.com/dgallion1/docjournal/internal/sink"
	"github.com/dgallion1/docjournal/internal/source"
)

const sampleMarkdown = "# Guide\n\n## Install\n\nRun it.\n\n## Use\n\nCall it.\n"

type fakeSink struct {
	mu    sync.Mutex
	errs  []error
	calls int
	last  sink.Publication
}

func (f *fakeSink) Publish(_ context.Context, pub sink.Publication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = pub
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(snk sink.Sink, stats *Stats) *Worker {
	w := NewWorker(snk, stats, discardLogger(), convert.Options{}, source.Options{})
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_ProcessCompletes(t *testing.T) {
	snk := &fakeSink{}
	stats := NewStats(time.Hour)
	job := NewJob("mod", "Guide Book", "guide.md", []byte(sampleMarkdown))

	newTestWorker(snk, stats).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Entries != 1 || snap.Progress.Pages != 2 {
		t.Errorf("expected 1 entry / 2 pages, got %d / %d", snap.Progress.Entries, snap.Progress.Pages)
	}
	if snk.calls != 1 || len(snk.last.Entries) != 2 {
		t.Errorf("expected one publish with entries plus toc, got %d calls / %d entries", snk.calls, len(snk.last.Entries))
	}
	if snk.last.Title != "Guide Book" {
		t.Errorf("expected job title to be used, got %q", snk.last.Title)
	}
	if job.FileData() != nil {
		t.Error("expected upload to be released after parsing")
	}
	if stats.Snapshot().Count != 1 {
		t.Error("expected one latency sample")
	}
}

func TestWorker_RetriesTemporaryPublishErrors(t *testing.T) {
	snk := &fakeSink{errs: []error{
		&sink.StatusError{Code: 503},
		&sink.StatusError{Code: 429},
	}}
	job := NewJob("mod", "", "guide.md", []byte(sampleMarkdown))

	newTestWorker(snk, nil).Process(context.Background(), job)

	if job.Snapshot().Status != StatusCompleted {
		t.Fatalf("expected completed after retries, got %q", job.Snapshot().Status)
	}
	if snk.calls != 3 {
		t.Errorf("expected 3 publish attempts, got %d", snk.calls)
	}
}

func TestWorker_PermanentPublishError(t *testing.T) {
	snk := &fakeSink{errs: []error{&sink.StatusError{Code: 400}}}
	stats := NewStats(time.Hour)
	job := NewJob("mod", "", "guide.md", []byte(sampleMarkdown))

	newTestWorker(snk, stats).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "publishing" {
		t.Errorf("expected failed in publishing, got %q/%q", snap.Status, snap.Phase)
	}
	if snk.calls != 1 {
		t.Errorf("expected no retry, got %d calls", snk.calls)
	}
	if stats.Snapshot().Failures != 1 {
		t.Error("expected failure sample")
	}
}

func TestWorker_Failures(t *testing.T) {
	tests := []struct {
		name  string
		job   *Job
		phase string
	}{
		{"unsupported format", NewJob("mod", "", "file.exe", []byte("x")), "parsing"},
		{"bad bundle", NewJob("mod", "", "file.json", []byte(`{"pages": 1}`)), "parsing"},
		{"missing mod id", NewJob("", "", "guide.md", []byte(sampleMarkdown)), "converting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newTestWorker(nil, nil).Process(context.Background(), tt.job)
			snap := tt.job.Snapshot()
			if snap.Status != StatusFailed {
				t.Fatalf("expected failed, got %q", snap.Status)
			}
			if snap.Phase != tt.phase {
				t.Errorf("expected phase %q, got %q", tt.phase, snap.Phase)
			}
			if len(snap.Progress.Errors) == 0 {
				t.Error("expected an error message")
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&sink.StatusError{Code: 502}) {
		t.Error("expected 502 to be retryable")
	}
	if IsRetryable(&sink.StatusError{Code: 404}) {
		t.Error("expected 404 not to be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("expected plain error not to be retryable")
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		if d <= 0 || d > 45*time.Second {
			t.Errorf("attempt %d: backoff %s out of range", attempt, d)
		}
	}
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour}
	snk := &fakeSink{}
	o := NewOrchestrator(cfg, snk, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("mod", "", "guide.md", []byte(sampleMarkdown))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Status.Done() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.Snapshot().Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", job.Snapshot().Status)
	}
	if o.Stats().Snapshot().Count != 1 {
		t.Error("expected one stats sample")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, nil, discardLogger())
	// Not started, so nothing drains the queue.
	if err := o.Submit(NewJob("mod", "", "a.md", nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job := NewJob("mod", "", "b.md", nil)
	if err := o.Submit(job); err == nil {
		t.Fatal("expected queue full error")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}
}
