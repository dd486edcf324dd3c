package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const tesseractBinary = "tesseract"

// CommandRunner executes external programs.
type CommandRunner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// LookPath implements CommandRunner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements CommandRunner. Stderr is folded into the returned error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// TesseractEngine recognizes text locally with the tesseract CLI, one
// rendered frame at a time.
type TesseractEngine struct {
	frames FrameSource
	runner CommandRunner
}

// NewTesseractEngine creates the local engine. Nil arguments select MuPDF
// rendering and os/exec.
func NewTesseractEngine(frames FrameSource, runner CommandRunner) *TesseractEngine {
	if frames == nil {
		frames = FitzFrames{}
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractEngine{frames: frames, runner: runner}
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return EngineTesseract }

// Recognize implements Engine.
func (e *TesseractEngine) Recognize(ctx context.Context, path string, cfg Config) (Result, error) {
	binary, err := e.runner.LookPath(tesseractBinary)
	if err != nil {
		return Result{}, configError(EngineTesseract, "tesseract binary not found in PATH")
	}

	frames, err := e.frames.Open(path)
	if err != nil {
		return Result{}, failure(EngineTesseract, err)
	}
	defer frames.Close()

	dir, err := os.MkdirTemp("", "segmenter-tesseract-*")
	if err != nil {
		return Result{}, failure(EngineTesseract, fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	dpi := float64(cfg.TesseractDPI)
	if dpi <= 0 {
		dpi = float64(DefaultConfig().TesseractDPI)
	}

	var (
		texts       []string
		confidences []float64
	)
	for i := 0; cfg.MaxPages <= 0 || i < cfg.MaxPages; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, failure(EngineTesseract, err)
		}

		img, err := frames.Frame(i, dpi)
		if errors.Is(err, ErrNoMoreFrames) {
			break
		}
		if err != nil {
			return Result{}, failure(EngineTesseract, err)
		}
		if cfg.EnablePreprocess {
			img = grayscale(img)
		}

		framePath := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", i))
		if err := writePNG(framePath, img); err != nil {
			return Result{}, failure(EngineTesseract, err)
		}

		args := tesseractArgs(framePath, cfg)
		tsvArgs := append(append([]string{}, args...), "tsv")
		tsv, err := e.runner.Run(ctx, binary, tsvArgs...)
		if err != nil {
			return Result{}, failure(EngineTesseract, err)
		}
		confidences = append(confidences, parseTSVConfidences(tsv)...)

		text, err := e.runner.Run(ctx, binary, args...)
		if err != nil {
			return Result{}, failure(EngineTesseract, err)
		}
		texts = append(texts, strings.TrimRight(string(text), "\n\f"))
	}

	if len(texts) == 0 {
		return Result{}, failure(EngineTesseract, errors.New("no frames to recognize"))
	}

	res := Result{
		Engine:         EngineTesseract,
		Text:           strings.Join(texts, "\n"),
		PagesProcessed: len(texts),
		AvgConfidence:  mean(confidences),
	}
	if cfg.TesseractLang != "" {
		res.LanguageCodes = []string{cfg.TesseractLang}
	}
	return res, nil
}

func tesseractArgs(framePath string, cfg Config) []string {
	def := DefaultConfig()
	lang, oem, psm := cfg.TesseractLang, cfg.TesseractOEM, cfg.TesseractPSM
	if lang == "" {
		lang = def.TesseractLang
	}
	if psm <= 0 {
		psm = def.TesseractPSM
	}
	if oem < 0 {
		oem = def.TesseractOEM
	}
	return []string{
		framePath, "stdout",
		"-l", lang,
		"--oem", strconv.Itoa(oem),
		"--psm", strconv.Itoa(psm),
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return f.Close()
}

// parseTSVConfidences reads the conf column of tesseract tsv output. Rows
// without a word carry -1 and are skipped; percentages are scaled to [0,1].
func parseTSVConfidences(tsv []byte) []float64 {
	var (
		out     []float64
		confCol = -1
	)
	scanner := bufio.NewScanner(bytes.NewReader(tsv))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if confCol < 0 {
			for i, name := range fields {
				if name == "conf" {
					confCol = i
				}
			}
			if confCol < 0 {
				return nil
			}
			continue
		}
		if confCol >= len(fields) {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(fields[confCol]), 64)
		if err != nil || conf < 0 {
			continue
		}
		if conf > 1 {
			conf /= 100
		}
		out = append(out, conf)
	}
	return out
}
