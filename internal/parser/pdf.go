// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// parsePDF reads the text layer of every page using go-fitz (MuPDF)
func parsePDF(filePath string) (string, int, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]string, 0, numPages)
	for i := 0; i < numPages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			// Unreadable pages are skipped
			continue
		}
		pages = append(pages, pageText)
	}

	text := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if text == "" {
		return "", numPages, fmt.Errorf("no text extracted from PDF: %s", filePath)
	}
	return text, numPages, nil
}
