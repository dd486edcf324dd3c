// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package classify assigns a refined content type to a downloaded file and
// decides whether it has to go through OCR.
package classify

import (
	"path/filepath"
	"strings"
)

// RefinedType is the fine-grained classification of a file.
type RefinedType string

const (
	PDFText    RefinedType = "pdf_text"
	PDFScanned RefinedType = "pdf_scanned"
	Word       RefinedType = "word"
	Excel      RefinedType = "excel"
	Text       RefinedType = "text"
	Image      RefinedType = "image"
	Encrypted  RefinedType = "encrypted"
	Corrupted  RefinedType = "corrupted"
	Unknown    RefinedType = "unknown"
)

// RequiresOCR reports whether content of this type can only be read by an OCR engine.
func (t RefinedType) RequiresOCR() bool {
	return t == PDFScanned || t == Image
}

// Extractable reports whether any text can be pulled out of this type.
func (t RefinedType) Extractable() bool {
	switch t {
	case Encrypted, Corrupted, Unknown:
		return false
	}
	return true
}

// Coarse categories produced by CoarseType.
const (
	CoarsePDF     = "pdf"
	CoarseWord    = "word"
	CoarseExcel   = "excel"
	CoarseText    = "text"
	CoarseImage   = "image"
	CoarseUnknown = "unknown"
)

// probePages is the number of leading pages sampled for a text layer.
const probePages = 3

var (
	excelExts = map[string]bool{".xlsx": true, ".xls": true}
	wordExts  = map[string]bool{".docx": true, ".doc": true}
	textExts  = map[string]bool{".txt": true, ".md": true, ".csv": true, ".html": true, ".htm": true, ".eml": true}
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".tif": true, ".bmp": true, ".gif": true}
)

// Classifier maps a file to its RefinedType. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	prober PDFProber
}

// New creates a classifier. A nil prober selects the MuPDF-backed FitzProber.
func New(prober PDFProber) *Classifier {
	if prober == nil {
		prober = FitzProber{}
	}
	return &Classifier{prober: prober}
}

// Classify returns the refined type of the file at path and whether OCR is
// required. It never fails: anything it cannot place is Unknown without OCR.
func (c *Classifier) Classify(path, mime, coarse string) (refined RefinedType, needsOCR bool) {
	defer func() {
		if r := recover(); r != nil {
			refined, needsOCR = Unknown, false
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	mime = strings.ToLower(strings.TrimSpace(mime))
	if coarse == "" {
		coarse = CoarseType(mime)
	}

	switch {
	case coarse == CoarseExcel || excelExts[ext]:
		return Excel, false
	case coarse == CoarseWord || wordExts[ext]:
		return Word, false
	case coarse == CoarseText || textExts[ext]:
		return Text, false
	case coarse == CoarseImage || strings.HasPrefix(mime, "image/") || imageExts[ext]:
		return Image, true
	case coarse == CoarsePDF || mime == "application/pdf" || ext == ".pdf":
		return c.probePDF(path)
	}
	return Unknown, false
}

func (c *Classifier) probePDF(path string) (refined RefinedType, needsOCR bool) {
	defer func() {
		if r := recover(); r != nil {
			refined, needsOCR = Corrupted, false
		}
	}()

	probe, err := c.prober.Probe(path, probePages)
	if err != nil {
		return Corrupted, false
	}
	if probe.Encrypted {
		return Encrypted, false
	}
	if probe.HasText {
		return PDFText, false
	}
	return PDFScanned, true
}
