package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const documentTextDetection = "DOCUMENT_TEXT_DETECTION"

// VisionEngine runs dense text detection through the Cloud Vision API.
type VisionEngine struct {
	opts []option.ClientOption
}

// NewVisionEngine creates the general vision engine. With no options the
// client uses application default credentials.
func NewVisionEngine(opts ...option.ClientOption) *VisionEngine {
	return &VisionEngine{opts: opts}
}

// Name implements Engine.
func (e *VisionEngine) Name() string { return EngineVision }

// Recognize implements Engine.
func (e *VisionEngine) Recognize(ctx context.Context, path string, cfg Config) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, failure(EngineVision, fmt.Errorf("failed to read file: %w", err))
	}

	svc, err := vision.NewService(ctx, e.opts...)
	if err != nil {
		return Result{}, failure(EngineVision, fmt.Errorf("failed to create Vision client: %w", err))
	}

	features := []*vision.Feature{{Type: documentTextDetection}}
	imageContext := &vision.ImageContext{LanguageHints: cfg.LanguageHints}
	encoded := base64.StdEncoding.EncodeToString(content)

	if !isPDF(path) {
		req := &vision.BatchAnnotateImagesRequest{
			Requests: []*vision.AnnotateImageRequest{{
				Image:        &vision.Image{Content: encoded},
				Features:     features,
				ImageContext: imageContext,
			}},
		}
		resp, err := svc.Images.Annotate(req).Context(ctx).Do()
		if err != nil {
			return Result{}, failure(EngineVision, err)
		}
		return visionResult(resp.Responses, cfg.LanguageHints)
	}

	total, err := pageCount(path)
	if err != nil {
		return Result{}, failure(EngineVision, err)
	}
	if cfg.MaxPages > 0 && total > cfg.MaxPages {
		total = cfg.MaxPages
	}

	var responses []*vision.AnnotateImageResponse
	for _, pages := range pageBatches(total, cfg.visionBatch()) {
		req := &vision.BatchAnnotateFilesRequest{
			Requests: []*vision.AnnotateFileRequest{{
				InputConfig:  &vision.InputConfig{Content: encoded, MimeType: "application/pdf"},
				Features:     features,
				ImageContext: imageContext,
				Pages:        pages,
			}},
		}
		resp, err := svc.Files.Annotate(req).Context(ctx).Do()
		if err != nil {
			return Result{}, failure(EngineVision, err)
		}
		for _, fr := range resp.Responses {
			if fr == nil {
				continue
			}
			if fr.Error != nil && fr.Error.Message != "" {
				return Result{}, &EngineFailure{Engine: EngineVision, Message: fr.Error.Message}
			}
			responses = append(responses, fr.Responses...)
		}
	}
	return visionResult(responses, cfg.LanguageHints)
}

// pageBatches groups 1-based page numbers 1..total into runs of size.
func pageBatches(total, size int) [][]int64 {
	var batches [][]int64
	for start := 1; start <= total; start += size {
		var batch []int64
		for p := start; p < start+size && p <= total; p++ {
			batch = append(batch, int64(p))
		}
		batches = append(batches, batch)
	}
	return batches
}

// visionResult folds per-page annotation responses into one Result. A
// provider error on any page fails the whole file.
func visionResult(responses []*vision.AnnotateImageResponse, hints []string) (Result, error) {
	res := Result{Engine: EngineVision}
	var (
		texts       []string
		confidences []float64
	)

	for _, r := range responses {
		if r == nil {
			continue
		}
		if r.Error != nil && r.Error.Message != "" {
			return Result{}, &EngineFailure{Engine: EngineVision, Message: r.Error.Message}
		}
		ann := r.FullTextAnnotation
		if ann == nil {
			continue
		}
		texts = append(texts, ann.Text)
		res.PagesProcessed += len(ann.Pages)

		for _, page := range ann.Pages {
			if page.Property != nil {
				for _, lang := range page.Property.DetectedLanguages {
					res.LanguageCodes = appendUnique(res.LanguageCodes, lang.LanguageCode)
				}
			}
			for _, block := range page.Blocks {
				for _, para := range block.Paragraphs {
					for _, word := range para.Words {
						for _, sym := range word.Symbols {
							confidences = append(confidences, sym.Confidence)
						}
					}
				}
			}
		}
	}

	res.Text = strings.Join(texts, "\n")
	res.AvgConfidence = mean(confidences)
	if len(res.LanguageCodes) == 0 {
		res.LanguageCodes = appendUnique(nil, hints...)
	}
	return res, nil
}
