package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	documentai "google.golang.org/api/documentai/v1"
	"google.golang.org/api/option"
)

// DocAISettings locates a Document AI processor.
type DocAISettings struct {
	ProjectID       string `mapstructure:"project_id"`
	Location        string `mapstructure:"location"`
	ProcessorID     string `mapstructure:"processor_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// DocAISettingsFromEnv reads PROJECT_ID, LOCATION, PROCESSOR_ID and
// GOOGLE_APPLICATION_CREDENTIALS.
func DocAISettingsFromEnv() DocAISettings {
	return DocAISettings{
		ProjectID:       os.Getenv("PROJECT_ID"),
		Location:        os.Getenv("LOCATION"),
		ProcessorID:     os.Getenv("PROCESSOR_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
}

func (s DocAISettings) complete() bool {
	return s.ProjectID != "" && s.Location != "" && s.ProcessorID != "" && s.CredentialsFile != ""
}

func (s DocAISettings) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", s.ProjectID, s.Location, s.ProcessorID)
}

func (s DocAISettings) endpoint() string {
	return fmt.Sprintf("https://%s-documentai.googleapis.com/", s.Location)
}

// DocAIEngine sends the whole document to a Document AI processor.
type DocAIEngine struct {
	settings DocAISettings
}

// NewDocAIEngine creates the structured document engine.
func NewDocAIEngine(settings DocAISettings) *DocAIEngine {
	return &DocAIEngine{settings: settings}
}

// Name implements Engine.
func (e *DocAIEngine) Name() string { return EngineDocAI }

// Recognize implements Engine.
func (e *DocAIEngine) Recognize(ctx context.Context, path string, cfg Config) (Result, error) {
	if !e.settings.complete() {
		return Result{}, configError(EngineDocAI, "Missing DocumentAI environment configuration")
	}

	input, cleanup, warnings, err := capPages(path, cfg.MaxPages)
	if err != nil {
		return Result{}, failure(EngineDocAI, err)
	}
	defer cleanup()

	content, err := os.ReadFile(input)
	if err != nil {
		return Result{}, failure(EngineDocAI, fmt.Errorf("failed to read file: %w", err))
	}

	svc, err := documentai.NewService(ctx,
		option.WithEndpoint(e.settings.endpoint()),
		option.WithCredentialsFile(e.settings.CredentialsFile),
	)
	if err != nil {
		return Result{}, failure(EngineDocAI, fmt.Errorf("failed to create Document AI client: %w", err))
	}

	req := &documentai.GoogleCloudDocumentaiV1ProcessRequest{
		RawDocument: &documentai.GoogleCloudDocumentaiV1RawDocument{
			Content:  base64.StdEncoding.EncodeToString(content),
			MimeType: mimeFor(path),
		},
	}
	resp, err := svc.Projects.Locations.Processors.Process(e.settings.processorName(), req).Context(ctx).Do()
	if err != nil {
		return Result{}, &EngineFailure{Engine: EngineDocAI, Message: err.Error(), Warnings: warnings, Err: err}
	}

	res := documentResult(resp.Document)
	res.Warnings = append(res.Warnings, warnings...)
	return res, nil
}

// documentResult converts a processed document into a Result.
func documentResult(doc *documentai.GoogleCloudDocumentaiV1Document) Result {
	res := Result{Engine: EngineDocAI}
	if doc == nil {
		return res
	}

	res.Text = doc.Text
	res.PagesProcessed = len(doc.Pages)

	var confidences []float64
	for _, page := range doc.Pages {
		if page == nil {
			continue
		}
		if page.Layout != nil {
			confidences = append(confidences, page.Layout.Confidence)
		}
		for _, lang := range page.DetectedLanguages {
			if lang != nil {
				res.LanguageCodes = appendUnique(res.LanguageCodes, lang.LanguageCode)
			}
		}
	}
	res.AvgConfidence = mean(confidences)
	return res
}
