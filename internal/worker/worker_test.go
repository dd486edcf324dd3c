package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/the-hive/segmenter/internal/logger"
	"github.com/the-hive/segmenter/internal/pipeline"
	"github.com/the-hive/segmenter/internal/processor"
	"github.com/the-hive/segmenter/internal/queue"
)

func enqueuePaths(t *testing.T, q queue.Queue, paths ...string) {
	t.Helper()
	for _, p := range paths {
		job, err := queue.NewSegmentJob(queue.SegmentJob{Path: p})
		if err != nil {
			t.Fatalf("NewSegmentJob failed: %v", err)
		}
		if err := q.Enqueue(context.Background(), job); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
}

// runUntil starts the pool and cancels it once done reports true or the
// timeout expires.
func runUntil(t *testing.T, q queue.Queue, handler HandlerFunc, workers int, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	finished := make(chan error, 1)
	go func() {
		finished <- StartWorkers(ctx, q, handler, workers)
	}()

	deadline := time.Now().Add(4 * time.Second)
	for !done() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-finished; err != nil {
		t.Errorf("StartWorkers returned error: %v", err)
	}
}

func TestStartWorkers(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	enqueuePaths(t, q, "a.txt", "b.txt", "c.txt")

	var mu sync.Mutex
	var processed []queue.Job
	handler := func(ctx context.Context, job queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		processed = append(processed, job)
		return nil
	}

	runUntil(t, q, handler, 2, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	if len(processed) != 3 {
		t.Errorf("expected 3 jobs processed, got %d", len(processed))
	}
}

func TestStartWorkers_HandlerErrorAndPanic(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	enqueuePaths(t, q, "fail.txt", "panic.txt", "ok.txt")

	var mu sync.Mutex
	var seen []string
	handler := func(ctx context.Context, job queue.Job) error {
		sj, _ := queue.DecodeSegmentJob(job)
		mu.Lock()
		seen = append(seen, sj.Path)
		mu.Unlock()
		switch sj.Path {
		case "fail.txt":
			return errors.New("boom")
		case "panic.txt":
			panic("bad input")
		}
		return nil
	}

	runUntil(t, q, handler, 1, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[2] != "ok.txt" {
		t.Errorf("worker should survive errors and panics, saw %v", seen)
	}
}

func TestRunHandler_RecoversPanic(t *testing.T) {
	err := runHandler(context.Background(), func(ctx context.Context, job queue.Job) error {
		panic("nil map")
	}, queue.Job{})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Error() != "handler panic: nil map" {
		t.Errorf("unexpected message %q", pe.Error())
	}
}

func TestSegmentHandler(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "notes.txt")
	blank := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(good, []byte("Section 1 Scope\nThe supplier delivers goods.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(blank, []byte("   \n"), 0644); err != nil {
		t.Fatal(err)
	}

	p := pipeline.New(pipeline.Options{Logger: logger.New(io.Discard)})

	var mu sync.Mutex
	stored := map[string][]processor.Chunk{}
	sink := pipeline.SinkFunc(func(ctx context.Context, fileID string, chunks []processor.Chunk) error {
		mu.Lock()
		defer mu.Unlock()
		stored[fileID] = chunks
		return nil
	})

	var results []pipeline.FileResult
	handler := SegmentHandler(p, []pipeline.Sink{sink}, func(res pipeline.FileResult, warnings []string) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
	})

	goodJob, _ := queue.NewSegmentJob(queue.SegmentJob{Path: good, FileID: "notes"})
	if err := handler(context.Background(), goodJob); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(stored["notes"]) != 1 || stored["notes"][0].SectionHeader != "Section 1 Scope" {
		t.Errorf("unexpected stored chunks: %+v", stored["notes"])
	}

	blankJob, _ := queue.NewSegmentJob(queue.SegmentJob{Path: blank})
	if err := handler(context.Background(), blankJob); err == nil {
		t.Error("expected error for a file without chunks")
	}
	if _, ok := stored["blank.txt"]; ok {
		t.Error("empty file should not reach the sink")
	}

	if len(results) != 2 {
		t.Errorf("expected 2 observed results, got %d", len(results))
	}

	if err := handler(context.Background(), queue.Job{Type: "tag_file"}); err == nil {
		t.Error("expected error for foreign job type")
	}
}

func TestSegmentHandler_SinkFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.txt")
	if err := os.WriteFile(path, []byte("short memo"), 0644); err != nil {
		t.Fatal(err)
	}

	p := pipeline.New(pipeline.Options{Logger: logger.New(io.Discard)})
	failing := pipeline.SinkFunc(func(ctx context.Context, fileID string, chunks []processor.Chunk) error {
		return errors.New("ledger locked")
	})

	var warnings []string
	handler := SegmentHandler(p, []pipeline.Sink{failing}, func(res pipeline.FileResult, w []string) {
		warnings = w
	})

	job, _ := queue.NewSegmentJob(queue.SegmentJob{Path: path})
	if err := handler(context.Background(), job); err == nil {
		t.Error("expected sink failure to surface")
	}
	if len(warnings) != 1 || warnings[0] != "sink_failed:memo.txt:ledger locked" {
		t.Errorf("unexpected warnings %v", warnings)
	}
}
