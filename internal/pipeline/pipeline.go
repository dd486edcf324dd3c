// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package pipeline turns downloaded files into tagged chunk sequences:
// classification, OCR or direct extraction, cleaning, sectioning and chunking.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/the-hive/segmenter/internal/classify"
	"github.com/the-hive/segmenter/internal/logger"
	"github.com/the-hive/segmenter/internal/ocr"
	"github.com/the-hive/segmenter/internal/parser"
	"github.com/the-hive/segmenter/internal/processor"
)

// Chunk type tags.
const (
	TypeWord            = "word_document"
	TypeText            = "text_document"
	TypeExcel           = "excel_sheet"
	TypePDFText         = "pdf_text"
	TypePDFTextFallback = "pdf_text_fallback"
	typeOCRPrefix       = "ocr_"
)

const defaultWorkers = 4

// Classifier assigns a refined type to a file.
type Classifier interface {
	Classify(path, mime, coarse string) (classify.RefinedType, bool)
}

// Router recognizes text in files that need OCR.
type Router interface {
	Route(ctx context.Context, path string, refined classify.RefinedType, cfg ocr.Config) ocr.Result
}

// Extractor reads text from files that carry it directly.
type Extractor interface {
	Extract(ctx context.Context, path string, refined classify.RefinedType) (parser.Extraction, error)
}

// FileInput names one file to process.
type FileInput struct {
	// FileID identifies the file in results; the base name is used when empty.
	FileID string `json:"file_id"`
	Path   string `json:"path"`
	MIME   string `json:"mime"`
	Coarse string `json:"coarse"`
}

func (in FileInput) id() string {
	if in.FileID != "" {
		return in.FileID
	}
	return filepath.Base(in.Path)
}

// FileResult is the outcome for one file. Warnings never stop processing;
// Error is set only when the file produced nothing usable.
type FileResult struct {
	FileID      string               `json:"file_id"`
	Path        string               `json:"path"`
	MIME        string               `json:"mime"`
	RefinedType classify.RefinedType `json:"refined_type"`
	OCRRequired bool                 `json:"ocr_required"`
	Engine      string               `json:"engine,omitempty"`
	Chunks      []processor.Chunk    `json:"chunks"`
	Warnings    []string             `json:"warnings,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// BatchResult holds per-file results in input order.
type BatchResult struct {
	Files    []FileResult `json:"files"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Chunks maps every file id to its chunks.
func (b BatchResult) Chunks() map[string][]processor.Chunk {
	out := make(map[string][]processor.Chunk, len(b.Files))
	for _, f := range b.Files {
		out[f.FileID] = f.Chunks
	}
	return out
}

// Options wires the pipeline's collaborators. Nil fields get the default
// implementation.
type Options struct {
	Classifier Classifier
	Router     Router
	Extractor  Extractor
	Chunker    *processor.Chunker
	OCR        *ocr.Config
	Workers    int
	Logger     *logger.Logger
}

// Pipeline processes files independently; it holds no per-file state.
type Pipeline struct {
	classifier Classifier
	router     Router
	extractor  Extractor
	chunker    *processor.Chunker
	ocrConfig  ocr.Config
	workers    int
	log        *logger.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		classifier: opts.Classifier,
		router:     opts.Router,
		extractor:  opts.Extractor,
		chunker:    opts.Chunker,
		workers:    opts.Workers,
		log:        opts.Logger,
	}
	if p.log == nil {
		p.log = logger.GetDefault()
	}
	if p.classifier == nil {
		p.classifier = classify.New(nil)
	}
	if p.extractor == nil {
		p.extractor = parser.NewExtractor()
	}
	if p.router == nil {
		p.router = ocr.NewRouter(p.log,
			ocr.NewDocAIEngine(ocr.DocAISettingsFromEnv()),
			ocr.NewVisionEngine(),
			ocr.NewTesseractEngine(nil, nil),
		)
	}
	if p.chunker == nil {
		p.chunker = processor.NewChunker()
	}
	if opts.OCR != nil {
		p.ocrConfig = *opts.OCR
	} else {
		p.ocrConfig = ocr.DefaultConfig()
	}
	if p.workers <= 0 {
		p.workers = defaultWorkers
	}
	return p
}

// ProcessFile classifies, extracts and chunks a single file. It never
// panics; failures are reported on the result.
func (p *Pipeline) ProcessFile(ctx context.Context, in FileInput) (res FileResult) {
	res = FileResult{FileID: in.id(), Path: in.Path, MIME: in.MIME}

	defer func() {
		if r := recover(); r != nil {
			res.Chunks = nil
			res.Error = fmt.Sprintf("extraction_failed:%s:%v", res.FileID, r)
			res.Warnings = append(res.Warnings, res.Error)
			p.log.Errorf("ProcessFile: file=%s panic: %v", res.FileID, r)
		}
		if len(res.Chunks) == 0 {
			res.Warnings = append(res.Warnings, "no_chunks:"+res.FileID)
		}
	}()

	if res.MIME == "" {
		res.MIME = classify.DetectMIME(in.Path)
	}
	coarse := in.Coarse
	if coarse == "" {
		coarse = classify.CoarseType(res.MIME)
	}

	res.RefinedType, res.OCRRequired = p.classifier.Classify(in.Path, res.MIME, coarse)
	p.log.Printf("ProcessFile: file=%s mime=%s refined=%s ocr=%v", res.FileID, res.MIME, res.RefinedType, res.OCRRequired)

	switch res.RefinedType {
	case classify.Word:
		p.direct(ctx, &res, TypeWord)
	case classify.Text:
		p.direct(ctx, &res, TypeText)
	case classify.Excel:
		p.direct(ctx, &res, TypeExcel)
	case classify.PDFText:
		if !p.direct(ctx, &res, TypePDFText) {
			res.Error = ""
			res.OCRRequired = true
			p.recognize(ctx, &res, classify.PDFScanned)
		}
	case classify.PDFScanned, classify.Image:
		p.recognize(ctx, &res, res.RefinedType)
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("skipped:%s:%s", res.FileID, res.RefinedType))
	}
	return res
}

// direct runs text extraction and chunks the result. It reports whether any
// chunk was produced.
func (p *Pipeline) direct(ctx context.Context, res *FileResult, chunkType string) bool {
	ext, err := p.extractor.Extract(ctx, res.Path, res.RefinedType)
	if err != nil {
		res.Error = fmt.Sprintf("extraction_failed:%s:%v", res.FileID, err)
		res.Warnings = append(res.Warnings, res.Error)
		p.log.Warnf("ProcessFile: file=%s extraction failed: %v", res.FileID, err)
		return false
	}
	p.chunkExtraction(res, ext, chunkType)
	return len(res.Chunks) > 0
}

// recognize sends the file through the OCR router.
func (p *Pipeline) recognize(ctx context.Context, res *FileResult, refined classify.RefinedType) {
	ocrRes := p.router.Route(ctx, res.Path, refined, p.ocrConfig)
	res.Engine = ocrRes.Engine
	res.Warnings = append(res.Warnings, ocrRes.Warnings...)

	if ocrRes.Failed() {
		res.Error = ocrRes.Error
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr_failed:%s:%s", res.FileID, ocrRes.Error))
		p.log.Warnf("ProcessFile: file=%s OCR failed: %s", res.FileID, ocrRes.Error)
		return
	}

	if strings.TrimSpace(ocrRes.Text) == "" {
		res.Warnings = append(res.Warnings, "ocr_empty:"+res.FileID)
		p.textFallback(ctx, res)
		return
	}

	p.chunkExtraction(res, parser.OCRExtraction{Result: ocrRes}, typeOCRPrefix+ocrRes.Engine)
}

// textFallback tries the raw PDF text layer after OCR came back blank.
func (p *Pipeline) textFallback(ctx context.Context, res *FileResult) {
	if !strings.EqualFold(filepath.Ext(res.Path), ".pdf") {
		return
	}
	ext, err := p.extractor.Extract(ctx, res.Path, classify.PDFText)
	if err != nil {
		p.log.Debugf("ProcessFile: file=%s text fallback failed: %v", res.FileID, err)
		return
	}
	p.chunkExtraction(res, ext, TypePDFTextFallback)
}

// chunkExtraction resolves the extraction variant and appends its chunks.
func (p *Pipeline) chunkExtraction(res *FileResult, ext parser.Extraction, chunkType string) {
	switch e := ext.(type) {
	case parser.TextResult:
		res.Chunks = append(res.Chunks, p.chunker.ChunkDocument(processor.CleanText(e.Text), res.FileID, chunkType)...)
	case parser.OCRExtraction:
		res.Chunks = append(res.Chunks, p.chunker.ChunkDocument(processor.CleanText(e.Result.Text), res.FileID, chunkType)...)
	case parser.TabularResult:
		for _, sheet := range e.Sheets {
			res.Chunks = append(res.Chunks, p.chunker.ChunkDocument(processor.CleanText(sheet.Text()), res.FileID, chunkType)...)
		}
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("extraction_failed:%s:unsupported extraction %T", res.FileID, ext))
	}
}

// ProcessBatch processes inputs concurrently, bounded by the configured
// worker count. Results keep input order.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []FileInput) BatchResult {
	files := make([]FileResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, in := range inputs {
		g.Go(func() error {
			files[i] = p.ProcessFile(gctx, in)
			return nil
		})
	}
	_ = g.Wait()

	batch := BatchResult{Files: files}
	total := 0
	for _, f := range files {
		total += len(f.Chunks)
	}
	p.log.Printf("ProcessBatch: files=%d chunks=%d workers=%d", len(files), total, p.workers)
	return batch
}
