package pipeline

import (
	"context"
	"fmt"

	"github.com/the-hive/segmenter/internal/processor"
)

// Sink receives the chunks of one file.
type Sink interface {
	Store(ctx context.Context, fileID string, chunks []processor.Chunk) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, fileID string, chunks []processor.Chunk) error

// Store implements Sink.
func (f SinkFunc) Store(ctx context.Context, fileID string, chunks []processor.Chunk) error {
	return f(ctx, fileID, chunks)
}

// Deliver hands every file's chunks to each sink in turn. Files without
// chunks are skipped. Sink errors are recorded as batch warnings and do not
// stop delivery of other files.
func (p *Pipeline) Deliver(ctx context.Context, batch *BatchResult, sinks ...Sink) {
	for _, f := range batch.Files {
		if len(f.Chunks) == 0 {
			continue
		}
		for _, sink := range sinks {
			if err := ctx.Err(); err != nil {
				batch.Warnings = append(batch.Warnings, fmt.Sprintf("sink_failed:%s:%v", f.FileID, err))
				return
			}
			if err := sink.Store(ctx, f.FileID, f.Chunks); err != nil {
				batch.Warnings = append(batch.Warnings, fmt.Sprintf("sink_failed:%s:%v", f.FileID, err))
				p.log.Warnf("Deliver: file=%s sink=%T failed: %v", f.FileID, sink, err)
				continue
			}
			p.log.Debugf("Deliver: file=%s sink=%T chunks=%d", f.FileID, sink, len(f.Chunks))
		}
	}
}
