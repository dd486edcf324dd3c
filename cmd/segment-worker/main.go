// Command segment-worker drains segment_file jobs from Redis and delivers
// the chunks to the configured sinks.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/the-hive/segmenter/internal/app"
	"github.com/the-hive/segmenter/internal/config"
	"github.com/the-hive/segmenter/internal/logger"
	"github.com/the-hive/segmenter/internal/pipeline"
	"github.com/the-hive/segmenter/internal/queue"
	"github.com/the-hive/segmenter/internal/worker"
)

var (
	configPath  = flag.String("config", "", "Path to a YAML config file")
	workerCount = flag.Int("worker-count", 0, "Number of queue workers (overrides pipeline.workers)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *workerCount > 0 {
		cfg.Pipeline.Workers = *workerCount
	}

	lg, err := logger.Init(cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		lg.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	jobQueue, err := queue.NewRedisQueue(ctx, redisClient, cfg.Redis.QueueKey)
	if err != nil {
		lg.Fatalf("failed to create job queue: %v", err)
	}

	sinks, err := app.BuildSinks(ctx, cfg, lg)
	if err != nil {
		lg.Fatalf("failed to open sinks: %v", err)
	}
	defer sinks.Close()

	p := app.BuildPipeline(cfg, lg)
	handler := worker.SegmentHandler(p, sinks.List, func(res pipeline.FileResult, warnings []string) {
		sinks.RecordOutcome(ctx, res)
	})

	lg.Printf("segment-worker: queue=%s workers=%d", jobQueue.Key(), cfg.Pipeline.Workers)
	if err := worker.StartWorkers(ctx, jobQueue, handler, cfg.Pipeline.Workers); err != nil {
		lg.Errorf("worker error: %v", err)
	}
	lg.Printf("segment-worker: shut down")
}
