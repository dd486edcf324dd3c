// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package ocr recognizes text in scanned documents and images through an
// ordered chain of engines, falling back to the next engine on failure.
package ocr

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Engine identifiers.
const (
	EngineDocAI     = "docai"
	EngineVision    = "vision"
	EngineTesseract = "tesseract"
)

const (
	defaultTimeoutSec = 180
	maxVisionBatch    = 5
)

// ErrAllEnginesFailed is reported when the chain ends without a usable
// error message from the last engine.
var ErrAllEnginesFailed = errors.New("all_engines_failed")

// Config tunes the engine chain and the engines themselves.
type Config struct {
	EnginePriority   []string `mapstructure:"engine_priority" json:"engine_priority"`
	LanguageHints    []string `mapstructure:"language_hints" json:"language_hints"`
	VisionBatchSize  int      `mapstructure:"vision_batch_size" json:"vision_batch_size"`
	TesseractLang    string   `mapstructure:"tesseract_lang" json:"tesseract_lang"`
	TesseractPSM     int      `mapstructure:"tesseract_psm" json:"tesseract_psm"`
	TesseractOEM     int      `mapstructure:"tesseract_oem" json:"tesseract_oem"`
	TesseractDPI     int      `mapstructure:"tesseract_dpi" json:"tesseract_dpi"`
	MaxPages         int      `mapstructure:"max_pages" json:"max_pages"`
	TimeoutSec       int      `mapstructure:"timeout_sec" json:"timeout_sec"`
	EnablePreprocess bool     `mapstructure:"enable_preprocess" json:"enable_preprocess"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		EnginePriority:   []string{EngineDocAI, EngineVision, EngineTesseract},
		LanguageHints:    []string{"en"},
		VisionBatchSize:  2,
		TesseractLang:    "eng",
		TesseractPSM:     3,
		TesseractOEM:     1,
		TesseractDPI:     300,
		TimeoutSec:       defaultTimeoutSec,
		EnablePreprocess: true,
	}
}

func (c Config) priority() []string {
	if len(c.EnginePriority) == 0 {
		return DefaultConfig().EnginePriority
	}
	return c.EnginePriority
}

func (c Config) timeoutSec() int {
	if c.TimeoutSec <= 0 {
		return defaultTimeoutSec
	}
	return c.TimeoutSec
}

func (c Config) visionBatch() int {
	n := c.VisionBatchSize
	if n < 1 {
		n = 1
	}
	if n > maxVisionBatch {
		n = maxVisionBatch
	}
	return n
}

// Result is the outcome of recognizing one file.
type Result struct {
	Text           string   `json:"text"`
	Engine         string   `json:"engine"`
	PagesProcessed int      `json:"pages_processed"`
	AvgConfidence  *float64 `json:"avg_confidence,omitempty"`
	LanguageCodes  []string `json:"language_codes,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool { return r.Error != "" }

// Engine recognizes text in a single file. Implementations return a
// non-nil error, usually an *EngineFailure, when they cannot produce text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, path string, cfg Config) (Result, error)
}

// EngineFailure describes why an engine did not produce a result.
type EngineFailure struct {
	Engine string
	// Message is the short reason recorded in fallback warnings.
	Message string
	// Warnings holds partial diagnostics gathered before the failure.
	Warnings []string
	Err      error
}

func (f *EngineFailure) Error() string {
	switch {
	case f.Message != "":
		return f.Message
	case f.Err != nil:
		return f.Err.Error()
	}
	return "engine failed"
}

func (f *EngineFailure) Unwrap() error { return f.Err }

func failure(engine string, err error) *EngineFailure {
	return &EngineFailure{Engine: engine, Message: err.Error(), Err: err}
}

func configError(engine, warning string) *EngineFailure {
	return &EngineFailure{Engine: engine, Message: "config_error", Warnings: []string{warning}}
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}

// appendUnique adds codes not yet present, keeping first-seen order.
func appendUnique(dst []string, codes ...string) []string {
	for _, code := range codes {
		if code == "" {
			continue
		}
		seen := false
		for _, have := range dst {
			if have == code {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, code)
		}
	}
	return dst
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	}
	return "image/png"
}
