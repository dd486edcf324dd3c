package ocr

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/gen2brain/go-fitz"
)

// ErrNoMoreFrames is returned by Frames.Frame past the last frame.
var ErrNoMoreFrames = errors.New("no more frames")

// FrameSource opens a document or image as a sequence of rasterized frames.
type FrameSource interface {
	Open(path string) (Frames, error)
}

// Frames renders individual frames of an opened document.
type Frames interface {
	// Frame renders frame i at dpi. It returns ErrNoMoreFrames once i is past
	// the end.
	Frame(i int, dpi float64) (image.Image, error)
	Close() error
}

// FitzFrames renders PDF pages and multi-frame images with MuPDF.
type FitzFrames struct{}

// Open implements FrameSource.
func (FitzFrames) Open(path string) (Frames, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &fitzFrames{doc: doc}, nil
}

type fitzFrames struct {
	doc *fitz.Document
}

func (f *fitzFrames) Frame(i int, dpi float64) (image.Image, error) {
	img, err := f.doc.ImageDPI(i, dpi)
	if err != nil {
		if errors.Is(err, fitz.ErrPageMissing) {
			return nil, ErrNoMoreFrames
		}
		return nil, fmt.Errorf("failed to render frame %d: %w", i, err)
	}
	return img, nil
}

func (f *fitzFrames) Close() error {
	return f.doc.Close()
}

// grayscale converts img to 8-bit gray.
func grayscale(img image.Image) image.Image {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray
}
