// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package parser pulls text out of documents that carry it directly, without
// OCR.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/the-hive/segmenter/internal/classify"
	"github.com/the-hive/segmenter/internal/ocr"
)

// Extraction engine names recorded on TextResult.
const (
	EngineDocx  = "extractDocx"
	EngineText  = "extractText"
	EnginePDF   = "extractPDF"
	EngineHTML  = "extractHTML"
	EngineEmail = "extractEmail"
	EngineExcel = "extractExcel"
)

// Extraction is the raw content of one file. It is one of TextResult,
// OCRExtraction or TabularResult.
type Extraction interface {
	extraction()
}

// TextResult is plain text pulled from a document.
type TextResult struct {
	Text   string
	Engine string
	Pages  int
}

// OCRExtraction wraps the outcome of the OCR router.
type OCRExtraction struct {
	Result ocr.Result
}

// TabularResult holds one entry per spreadsheet sheet.
type TabularResult struct {
	Sheets []Sheet
}

// Sheet is a spreadsheet sheet rendered as "Row N: Header: Value, ..." lines.
type Sheet struct {
	Name string
	Rows []string
}

// Text joins the sheet rows under a "Sheet: <name>" line.
func (s Sheet) Text() string {
	return fmt.Sprintf("Sheet: %s\n%s", s.Name, strings.Join(s.Rows, "\n"))
}

func (TextResult) extraction()    {}
func (OCRExtraction) extraction() {}
func (TabularResult) extraction() {}

// Extractor reads text from files the classifier placed in a direct type.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the refined type and, for the text family, on the
// file extension.
func (e *Extractor) Extract(ctx context.Context, path string, refined classify.RefinedType) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch refined {
	case classify.Word:
		text, err := parseDOCX(path)
		if err != nil {
			return nil, err
		}
		return TextResult{Text: text, Engine: EngineDocx}, nil

	case classify.Excel:
		sheets, err := parseExcel(path)
		if err != nil {
			return nil, err
		}
		return TabularResult{Sheets: sheets}, nil

	case classify.PDFText, classify.PDFScanned:
		text, pages, err := parsePDF(path)
		if err != nil {
			return nil, err
		}
		return TextResult{Text: text, Engine: EnginePDF, Pages: pages}, nil

	case classify.Text:
		return extractTextFamily(path)
	}

	return nil, fmt.Errorf("unsupported type for direct extraction: %s", refined)
}

func extractTextFamily(path string) (Extraction, error) {
	var (
		text   string
		engine string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = parseHTML(path)
		engine = EngineHTML
	case ".eml":
		text, err = parseEmail(path)
		engine = EngineEmail
	default:
		text, err = parseText(path)
		engine = EngineText
	}
	if err != nil {
		return nil, err
	}
	return TextResult{Text: text, Engine: engine}, nil
}

var supportedExts = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".txt": true, ".md": true, ".csv": true,
	".xlsx": true, ".xls": true, ".html": true, ".htm": true, ".eml": true,
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".bmp": true, ".gif": true,
}

// IsSupportedFile checks if a file extension is supported
func IsSupportedFile(filePath string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(filePath))]
}

// IsTemporaryFile checks if a file is a temporary file (e.g., ~$doc.docx)
func IsTemporaryFile(filePath string) bool {
	base := filepath.Base(filePath)
	return strings.HasPrefix(base, "~$") ||
		strings.HasPrefix(base, "._") ||
		strings.HasPrefix(base, ".~lock.") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".crdownload") ||
		strings.HasSuffix(base, ".part")
}
