package classify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ProbeResult is what a PDFProber learned from the leading pages of a PDF.
type ProbeResult struct {
	Encrypted    bool
	PageCount    int
	SampledPages int
	HasText      bool
}

// PDFProber opens a PDF and samples up to maxPages pages for a text layer.
// A returned error means the document could not be parsed.
type PDFProber interface {
	Probe(path string, maxPages int) (ProbeResult, error)
}

// FitzProber probes PDFs with go-fitz (MuPDF).
type FitzProber struct{}

// Probe implements PDFProber.
func (FitzProber) Probe(path string, maxPages int) (ProbeResult, error) {
	doc, err := fitz.New(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return ProbeResult{Encrypted: true}, nil
		}
		return ProbeResult{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	res := ProbeResult{PageCount: doc.NumPage()}
	sample := res.PageCount
	if sample > maxPages {
		sample = maxPages
	}

	for i := 0; i < sample; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return res, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		res.SampledPages++
		if strings.TrimSpace(text) != "" {
			res.HasText = true
			break
		}
	}
	return res, nil
}
