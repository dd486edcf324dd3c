package ocr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func noop() {}

// pageCount returns the number of pages of a PDF.
func pageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// capPages writes a copy of a PDF holding only its first maxPages pages when
// the document is longer. Non-PDF inputs and a zero cap pass through.
func capPages(path string, maxPages int) (string, func(), []string, error) {
	if maxPages <= 0 || !isPDF(path) {
		return path, noop, nil, nil
	}

	total, err := pageCount(path)
	if err != nil {
		return "", noop, nil, err
	}
	if total <= maxPages {
		return path, noop, nil, nil
	}

	dir, err := os.MkdirTemp("", "segmenter-pages-*")
	if err != nil {
		return "", noop, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	out := filepath.Join(dir, filepath.Base(path))
	selection := []string{fmt.Sprintf("1-%d", maxPages)}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.TrimFile(path, out, selection, conf); err != nil {
		cleanup()
		return "", noop, nil, fmt.Errorf("failed to trim pages: %w", err)
	}

	return out, cleanup, []string{fmt.Sprintf("pages_capped:%d", maxPages)}, nil
}
