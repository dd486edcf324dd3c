// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package worker

import (
	"context"
	"fmt"

	"github.com/the-hive/segmenter/internal/pipeline"
	"github.com/the-hive/segmenter/internal/queue"
)

// ResultFunc observes each finished file, e.g. to raise a desktop alert.
type ResultFunc func(res pipeline.FileResult, warnings []string)

// SegmentHandler returns a HandlerFunc for segment_file jobs. Each job runs
// through the pipeline and its chunks are delivered to sinks. A file that
// produced no chunks is reported as an error so the worker loop logs it;
// the job is not retried.
func SegmentHandler(p *pipeline.Pipeline, sinks []pipeline.Sink, onResult ResultFunc) HandlerFunc {
	return func(ctx context.Context, job queue.Job) error {
		sj, err := queue.DecodeSegmentJob(job)
		if err != nil {
			return err
		}

		res := p.ProcessFile(ctx, pipeline.FileInput{
			FileID: sj.FileID,
			Path:   sj.Path,
			MIME:   sj.MIME,
			Coarse: sj.Coarse,
		})

		batch := &pipeline.BatchResult{Files: []pipeline.FileResult{res}}
		p.Deliver(ctx, batch, sinks...)

		if onResult != nil {
			onResult(res, batch.Warnings)
		}

		if len(res.Chunks) == 0 {
			if res.Error != "" {
				return fmt.Errorf("file %s produced no chunks: %s", res.FileID, res.Error)
			}
			return fmt.Errorf("file %s produced no chunks", res.FileID)
		}
		if len(batch.Warnings) > 0 {
			return fmt.Errorf("file %s: %d sink failures", res.FileID, len(batch.Warnings))
		}
		return nil
	}
}
