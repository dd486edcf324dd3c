package ocr

import (
	"context"
	"errors"
	"image"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	documentai "google.golang.org/api/documentai/v1"
	vision "google.golang.org/api/vision/v1"
)

type fakeFrames struct {
	count  int
	closed bool
}

func (f *fakeFrames) Open(path string) (Frames, error) { return f, nil }

func (f *fakeFrames) Frame(i int, dpi float64) (image.Image, error) {
	if i >= f.count {
		return nil, ErrNoMoreFrames
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (f *fakeFrames) Close() error {
	f.closed = true
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	missing bool
	calls   [][]string
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.missing {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + name, nil
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, args)
	r.mu.Unlock()
	if args[len(args)-1] == "tsv" {
		return []byte("level\tpage_num\tconf\ttext\n1\t1\t-1\t\n5\t1\t90\tHello\n5\t1\t70\tworld\n"), nil
	}
	return []byte("Hello world\n\f"), nil
}

func checkConfidence(t *testing.T, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("AvgConfidence is nil, want %v", want)
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Errorf("AvgConfidence = %v, want %v", *got, want)
	}
}

func checkConfigError(t *testing.T, err error) *EngineFailure {
	t.Helper()
	var ef *EngineFailure
	if !errors.As(err, &ef) {
		t.Fatalf("expected *EngineFailure, got %v", err)
	}
	if ef.Message != "config_error" {
		t.Errorf("message = %q, want config_error", ef.Message)
	}
	return ef
}

func TestTesseract_Recognize(t *testing.T) {
	frames := &fakeFrames{count: 2}
	runner := &fakeRunner{}
	engine := NewTesseractEngine(frames, runner)

	res, err := engine.Recognize(context.Background(), "scan.tiff", DefaultConfig())
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if res.Text != "Hello world\nHello world" {
		t.Errorf("text = %q", res.Text)
	}
	if res.PagesProcessed != 2 {
		t.Errorf("pages = %d, want 2", res.PagesProcessed)
	}
	checkConfidence(t, res.AvgConfidence, 0.8)
	if !slices.Equal(res.LanguageCodes, []string{"eng"}) {
		t.Errorf("languages = %v, want [eng]", res.LanguageCodes)
	}
	if !frames.closed {
		t.Error("frames were not closed")
	}

	if len(runner.calls) != 4 {
		t.Fatalf("expected tsv and text runs per page (4), got %d", len(runner.calls))
	}
	if args := strings.Join(runner.calls[0], " "); !strings.Contains(args, "stdout -l eng --oem 1 --psm 3 tsv") {
		t.Errorf("tsv args = %q", args)
	}
	if args := strings.Join(runner.calls[1], " "); strings.Contains(args, "tsv") {
		t.Errorf("text run should not request tsv: %q", args)
	}
}

func TestTesseract_MaxPages(t *testing.T) {
	engine := NewTesseractEngine(&fakeFrames{count: 5}, &fakeRunner{})
	cfg := DefaultConfig()
	cfg.MaxPages = 2

	res, err := engine.Recognize(context.Background(), "scan.pdf", cfg)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.PagesProcessed != 2 {
		t.Errorf("pages = %d, want 2", res.PagesProcessed)
	}
}

func TestTesseract_MissingBinary(t *testing.T) {
	engine := NewTesseractEngine(&fakeFrames{count: 1}, &fakeRunner{missing: true})

	_, err := engine.Recognize(context.Background(), "scan.png", DefaultConfig())
	checkConfigError(t, err)
}

func TestTesseract_NoFrames(t *testing.T) {
	engine := NewTesseractEngine(&fakeFrames{count: 0}, &fakeRunner{})

	if _, err := engine.Recognize(context.Background(), "empty.pdf", DefaultConfig()); err == nil {
		t.Error("expected an error for a file with no frames")
	}
}

func TestParseTSVConfidences(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t20\t10\t96.5\tTotal\n" +
		"5\t1\t1\t1\t1\t2\t40\t10\t20\t10\t0.5\tdue\n"

	got := parseTSVConfidences([]byte(tsv))
	if len(got) != 2 {
		t.Fatalf("expected 2 word confidences, got %v", got)
	}
	if math.Abs(got[0]-0.965) > 1e-9 || math.Abs(got[1]-0.5) > 1e-9 {
		t.Errorf("confidences = %v, want [0.965 0.5]", got)
	}

	if got := parseTSVConfidences([]byte("no header here\n")); got != nil {
		t.Errorf("headerless input = %v, want nil", got)
	}
}

func TestDocAI_MissingConfig(t *testing.T) {
	engine := NewDocAIEngine(DocAISettings{ProjectID: "p", Location: "us"})

	_, err := engine.Recognize(context.Background(), "scan.pdf", DefaultConfig())

	ef := checkConfigError(t, err)
	if want := []string{"Missing DocumentAI environment configuration"}; !slices.Equal(ef.Warnings, want) {
		t.Errorf("warnings = %v, want %v", ef.Warnings, want)
	}
}

func TestDocumentResult(t *testing.T) {
	doc := &documentai.GoogleCloudDocumentaiV1Document{
		Text: "Invoice 42",
		Pages: []*documentai.GoogleCloudDocumentaiV1DocumentPage{
			{
				Layout: &documentai.GoogleCloudDocumentaiV1DocumentPageLayout{Confidence: 0.9},
				DetectedLanguages: []*documentai.GoogleCloudDocumentaiV1DocumentPageDetectedLanguage{
					{LanguageCode: "en"}, {LanguageCode: "fr"},
				},
			},
			{
				Layout: &documentai.GoogleCloudDocumentaiV1DocumentPageLayout{Confidence: 0.7},
				DetectedLanguages: []*documentai.GoogleCloudDocumentaiV1DocumentPageDetectedLanguage{
					{LanguageCode: "en"},
				},
			},
		},
	}

	res := documentResult(doc)

	if res.Text != "Invoice 42" || res.PagesProcessed != 2 {
		t.Errorf("got %q over %d pages", res.Text, res.PagesProcessed)
	}
	checkConfidence(t, res.AvgConfidence, 0.8)
	if !slices.Equal(res.LanguageCodes, []string{"en", "fr"}) {
		t.Errorf("languages = %v, want [en fr]", res.LanguageCodes)
	}

	if empty := documentResult(&documentai.GoogleCloudDocumentaiV1Document{}); empty.AvgConfidence != nil {
		t.Errorf("empty document confidence = %v, want nil", *empty.AvgConfidence)
	}
}

func TestVisionResult(t *testing.T) {
	page := func(lang string, confs ...float64) *vision.Page {
		var symbols []*vision.Symbol
		for _, c := range confs {
			symbols = append(symbols, &vision.Symbol{Confidence: c})
		}
		p := &vision.Page{
			Blocks: []*vision.Block{{Paragraphs: []*vision.Paragraph{{Words: []*vision.Word{{Symbols: symbols}}}}}},
		}
		if lang != "" {
			p.Property = &vision.TextProperty{DetectedLanguages: []*vision.DetectedLanguage{{LanguageCode: lang}}}
		}
		return p
	}

	responses := []*vision.AnnotateImageResponse{
		{FullTextAnnotation: &vision.TextAnnotation{Text: "page one", Pages: []*vision.Page{page("de", 1.0, 0.5)}}},
		{FullTextAnnotation: &vision.TextAnnotation{Text: "page two", Pages: []*vision.Page{page("", 0.75)}}},
	}

	res, err := visionResult(responses, []string{"en"})
	if err != nil {
		t.Fatalf("visionResult failed: %v", err)
	}
	if res.Text != "page one\npage two" || res.PagesProcessed != 2 {
		t.Errorf("got %q over %d pages", res.Text, res.PagesProcessed)
	}
	checkConfidence(t, res.AvgConfidence, 0.75)
	if !slices.Equal(res.LanguageCodes, []string{"de"}) {
		t.Errorf("languages = %v, want [de]", res.LanguageCodes)
	}
}

func TestVisionResult_HintFallbackAndError(t *testing.T) {
	res, err := visionResult([]*vision.AnnotateImageResponse{
		{FullTextAnnotation: &vision.TextAnnotation{Text: "x"}},
	}, []string{"en", "es"})
	if err != nil {
		t.Fatalf("visionResult failed: %v", err)
	}
	if !slices.Equal(res.LanguageCodes, []string{"en", "es"}) {
		t.Errorf("languages = %v, want the hints", res.LanguageCodes)
	}

	_, err = visionResult([]*vision.AnnotateImageResponse{
		{Error: &vision.Status{Message: "Bad image data."}},
	}, nil)
	if err == nil || err.Error() != "Bad image data." {
		t.Errorf("err = %v, want Bad image data.", err)
	}
}

func TestPageBatches(t *testing.T) {
	if got, want := pageBatches(5, 2), [][]int64{{1, 2}, {3, 4}, {5}}; !reflect.DeepEqual(got, want) {
		t.Errorf("pageBatches(5, 2) = %v, want %v", got, want)
	}
	if got := pageBatches(0, 2); got != nil {
		t.Errorf("pageBatches(0, 2) = %v, want nil", got)
	}
}

func TestConfigVisionBatchClamp(t *testing.T) {
	tests := []struct {
		cfg  Config
		want int
	}{
		{Config{VisionBatchSize: 0}, 1},
		{Config{VisionBatchSize: 9}, 5},
		{DefaultConfig(), 2},
	}
	for _, tt := range tests {
		if got := tt.cfg.visionBatch(); got != tt.want {
			t.Errorf("visionBatch(%d) = %d, want %d", tt.cfg.VisionBatchSize, got, tt.want)
		}
	}
}
