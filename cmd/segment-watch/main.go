// Command segment-watch watches local folders and segments every supported
// file that appears or changes. Failures raise a desktop notification.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/the-hive/segmenter/internal/app"
	"github.com/the-hive/segmenter/internal/config"
	"github.com/the-hive/segmenter/internal/logger"
	"github.com/the-hive/segmenter/internal/notify"
	"github.com/the-hive/segmenter/internal/pipeline"
	"github.com/the-hive/segmenter/internal/queue"
	"github.com/the-hive/segmenter/internal/source"
	"github.com/the-hive/segmenter/internal/worker"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file")
	watchPaths = flag.String("paths", ".", "Comma-separated directories to watch")
	debounce   = flag.Duration("debounce", source.DefaultDebounce, "Quiet period before a changed file is processed")
	noNotify   = flag.Bool("no-notify", false, "Disable desktop notifications")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.Init(cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, err := app.BuildSinks(ctx, cfg, lg)
	if err != nil {
		lg.Fatalf("failed to open sinks: %v", err)
	}
	defer sinks.Close()

	var notifier *notify.Notifier
	if !*noNotify {
		notifier = notify.New(nil)
	}

	p := app.BuildPipeline(cfg, lg)
	handler := worker.SegmentHandler(p, sinks.List, func(res pipeline.FileResult, warnings []string) {
		sinks.RecordOutcome(ctx, res)
		if notifier != nil {
			notifier.Observe(res, warnings)
		}
	})

	// Watched files go through an in-process queue so a burst of changes is
	// bounded by the worker count.
	jobs := queue.NewMemoryQueue(256)
	w := source.NewWatcher(strings.Split(*watchPaths, ","), *debounce, func(ctx context.Context, path string, d source.Decision) {
		job, err := queue.NewSegmentJob(queue.SegmentJob{Path: path})
		if err != nil {
			lg.Errorf("segment-watch: %v", err)
			return
		}
		if err := jobs.Enqueue(ctx, job); err != nil {
			lg.Warnf("segment-watch: dropped %s: %v", path, err)
		}
	})
	if err := w.Start(ctx); err != nil {
		lg.Fatalf("failed to start watcher: %v", err)
	}
	lg.Printf("segment-watch: watching %v", w.Watched())

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.StartWorkers(ctx, jobs, handler, cfg.Pipeline.Workers)
	}()

	<-ctx.Done()
	lg.Printf("segment-watch: shutting down")
	w.Stop()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		lg.Warnf("segment-watch: workers did not stop in time")
	}
}
