// Command segment classifies, extracts and chunks a batch of documents from
// local paths or a Cloud Storage folder and prints the chunks as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"google.golang.org/api/option"

	"github.com/the-hive/segmenter/internal/app"
	"github.com/the-hive/segmenter/internal/classify"
	"github.com/the-hive/segmenter/internal/config"
	"github.com/the-hive/segmenter/internal/logger"
	"github.com/the-hive/segmenter/internal/parser"
	"github.com/the-hive/segmenter/internal/pipeline"
	"github.com/the-hive/segmenter/internal/queue"
	"github.com/the-hive/segmenter/internal/source"
)

var (
	configPath  = flag.String("config", "", "Path to a YAML config file")
	workerCount = flag.Int("workers", 0, "Concurrent files (overrides pipeline.workers)")
	gcsBucket   = flag.String("gcs-bucket", "", "Read inputs from this Cloud Storage bucket")
	gcsPrefix   = flag.String("gcs-prefix", "", "Object prefix (folder) inside -gcs-bucket")
	downloadDir = flag.String("download-dir", "", "Where Cloud Storage inputs are copied (default: temp dir)")
	outPath     = flag.String("out", "-", "Write JSON results to this file, gs://bucket/object, or - for stdout")
	enqueue     = flag.Bool("enqueue", false, "Push segment_file jobs to Redis instead of processing locally")
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
	if *gcsBucket != "" {
		cfg.GCS.Bucket = *gcsBucket
	}
	if *gcsPrefix != "" {
		cfg.GCS.Prefix = *gcsPrefix
	}

	lg, err := logger.Init(cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gcs *source.GCSSource
	if cfg.GCS.Bucket != "" || strings.HasPrefix(*outPath, "gs://") {
		var opts []option.ClientOption
		if cfg.GCS.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
		}
		gcs, err = source.NewGCSSource(ctx, *downloadDir, opts...)
		if err != nil {
			lg.Fatalf("failed to create Cloud Storage source: %v", err)
		}
		defer gcs.Close()
	}

	inputs, err := collectInputs(ctx, cfg, gcs, flag.Args())
	if err != nil {
		lg.Fatalf("failed to collect inputs: %v", err)
	}
	if len(inputs) == 0 {
		lg.Fatalf("no supported input files; pass paths or -gcs-bucket")
	}
	lg.Printf("segment: %d input files", len(inputs))

	if *enqueue {
		if err := enqueueInputs(ctx, cfg, inputs); err != nil {
			lg.Fatalf("failed to enqueue: %v", err)
		}
		return
	}

	sinks, err := app.BuildSinks(ctx, cfg, lg)
	if err != nil {
		lg.Fatalf("failed to open sinks: %v", err)
	}
	defer sinks.Close()

	p := app.BuildPipeline(cfg, lg)
	batch := p.ProcessBatch(ctx, inputs)
	p.Deliver(ctx, &batch, sinks.List...)
	for _, f := range batch.Files {
		sinks.RecordOutcome(ctx, f)
	}

	if err := writeResults(ctx, gcs, *outPath, batch); err != nil {
		lg.Fatalf("failed to write results: %v", err)
	}
}

func collectInputs(ctx context.Context, cfg *config.Config, gcs *source.GCSSource, args []string) ([]pipeline.FileInput, error) {
	var inputs []pipeline.FileInput

	if cfg.GCS.Bucket != "" {
		files, err := gcs.DownloadFolder(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			inputs = append(inputs, pipeline.FileInput{
				FileID: f.Name,
				Path:   f.LocalPath,
				MIME:   f.ContentType,
				Coarse: classify.CoarseType(f.ContentType),
			})
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, pipeline.FileInput{Path: arg})
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || parser.IsTemporaryFile(path) || !parser.IsSupportedFile(path) {
				return nil
			}
			rel, _ := filepath.Rel(arg, path)
			inputs = append(inputs, pipeline.FileInput{FileID: filepath.ToSlash(rel), Path: path})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

func enqueueInputs(ctx context.Context, cfg *config.Config, inputs []pipeline.FileInput) error {
	client, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	q, err := queue.NewRedisQueue(ctx, client, cfg.Redis.QueueKey)
	if err != nil {
		return err
	}

	for _, in := range inputs {
		abs, err := filepath.Abs(in.Path)
		if err != nil {
			return err
		}
		job, err := queue.NewSegmentJob(queue.SegmentJob{Path: abs, MIME: in.MIME, Coarse: in.Coarse, FileID: in.FileID})
		if err != nil {
			return err
		}
		if err := q.Enqueue(ctx, job); err != nil {
			return err
		}
	}
	log.Printf("segment: enqueued %d jobs on %s", len(inputs), q.Key())
	return nil
}

func writeResults(ctx context.Context, gcs *source.GCSSource, out string, batch pipeline.BatchResult) error {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	switch {
	case out == "" || out == "-":
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	case strings.HasPrefix(out, "gs://"):
		bucket, object, ok := strings.Cut(strings.TrimPrefix(out, "gs://"), "/")
		if !ok || object == "" {
			return fmt.Errorf("invalid Cloud Storage destination %q", out)
		}
		return gcs.WriteObject(ctx, bucket, object, data)
	default:
		return os.WriteFile(out, data, 0644)
	}
}
