// Package app assembles the pipeline and its sinks from configuration. The
// binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/api/option"

	"github.com/the-hive/segmenter/internal/config"
	"github.com/the-hive/segmenter/internal/embeddings"
	"github.com/the-hive/segmenter/internal/logger"
	"github.com/the-hive/segmenter/internal/ocr"
	"github.com/the-hive/segmenter/internal/pipeline"
	"github.com/the-hive/segmenter/internal/processor"
	"github.com/the-hive/segmenter/internal/store"
)

// BuildPipeline wires classifier, OCR router, extractor and chunker.
func BuildPipeline(cfg *config.Config, log *logger.Logger) *pipeline.Pipeline {
	var visionOpts []option.ClientOption
	if cfg.Vision.CredentialsFile != "" {
		visionOpts = append(visionOpts, option.WithCredentialsFile(cfg.Vision.CredentialsFile))
	}

	router := ocr.NewRouter(log,
		ocr.NewDocAIEngine(cfg.DocAI),
		ocr.NewVisionEngine(visionOpts...),
		ocr.NewTesseractEngine(nil, nil),
	)

	ocrCfg := cfg.OCR
	return pipeline.New(pipeline.Options{
		Router: router,
		Chunker: processor.NewChunker(
			processor.WithTargetTokens(cfg.Chunking.MinTokens, cfg.Chunking.MaxTokens),
			processor.WithOverlap(cfg.Chunking.MinOverlap, cfg.Chunking.MaxOverlap),
		),
		OCR:     &ocrCfg,
		Workers: cfg.Pipeline.Workers,
		Logger:  log,
	})
}

// Sinks are the configured chunk destinations.
type Sinks struct {
	List   []pipeline.Sink
	Ledger *store.SQLiteLedger

	closers []func() error
}

// Close releases every sink connection.
func (s *Sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// BuildSinks opens the SQLite ledger when sqlite.path is set and the Qdrant
// sink when qdrant.address is set. Neither is required.
func BuildSinks(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Sinks, error) {
	sinks := &Sinks{}

	if cfg.SQLite.Path != "" {
		ledger, err := store.OpenLedger(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		sinks.Ledger = ledger
		sinks.List = append(sinks.List, ledger)
		sinks.closers = append(sinks.closers, ledger.Close)
		log.Printf("BuildSinks: sqlite ledger at %s", cfg.SQLite.Path)
	}

	if cfg.Qdrant.Address != "" {
		embedder, err := embeddings.NewEmbedder(cfg.Embedder)
		if err != nil {
			sinks.Close()
			return nil, err
		}

		conn, err := store.DialQdrant(cfg.Qdrant.Address)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks.closers = append(sinks.closers, conn.Close)

		setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureCollection(setupCtx, qdrant.NewCollectionsClient(conn), cfg.Qdrant.Collection, embedder.Dimension()); err != nil {
			sinks.Close()
			return nil, fmt.Errorf("failed to prepare Qdrant: %w", err)
		}

		sink, err := store.NewQdrantSink(qdrant.NewPointsClient(conn), embedder, cfg.Qdrant.Collection)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks.List = append(sinks.List, sink)
		log.Printf("BuildSinks: qdrant collection=%s at %s embedder=%s dim=%d",
			cfg.Qdrant.Collection, cfg.Qdrant.Address, cfg.Embedder.Provider, embedder.Dimension())
	}

	return sinks, nil
}

// RecordOutcome logs a file's outcome in the ledger, when one is open.
func (s *Sinks) RecordOutcome(ctx context.Context, res pipeline.FileResult) {
	if s.Ledger == nil {
		return
	}
	eventType, details := "segmented", fmt.Sprintf("chunks=%d engine=%s", len(res.Chunks), res.Engine)
	switch {
	case len(res.Chunks) == 0 && res.Error != "":
		eventType, details = "failed", res.Error
	case len(res.Chunks) == 0:
		eventType, details = "skipped", string(res.RefinedType)
	}
	if err := s.Ledger.LogEvent(ctx, eventType, res.FileID, details); err != nil {
		logger.Warnf("RecordOutcome: file=%s: %v", res.FileID, err)
	}
}
