package pdfengine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/gen2brain/go-fitz"
)

// Rasterizer opens documents with MuPDF for thumbnail rendering.
type Rasterizer struct{}

var _ reorganizer.Renderer = Rasterizer{}

func NewRasterizer() Rasterizer {
	return Rasterizer{}
}

func (Rasterizer) Open(ctx context.Context, data []byte) (reorganizer.RenderDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &fitzDocument{doc: doc, pages: doc.NumPage()}, nil
}

// fitzDocument serializes access to the MuPDF context, which is not safe for
// concurrent use. Renders still overlap with encoding and state updates.
type fitzDocument struct {
	mu     sync.Mutex
	doc    *fitz.Document
	pages  int
	closed bool
}

func (d *fitzDocument) PageCount() int {
	return d.pages
}

func (d *fitzDocument) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("page %d outside [0, %d)", index, d.pages)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("document is closed")
	}
	img, err := d.doc.ImageDPI(index, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", index+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}

// PageCounter is a Renderer that only reads the page structure. Every render
// fails, so pages end up with the placeholder state. It serves headless tools
// that reorder without previews.
type PageCounter struct{}

var _ reorganizer.Renderer = PageCounter{}

func (PageCounter) Open(ctx context.Context, data []byte) (reorganizer.RenderDocument, error) {
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	return countedDocument(n), nil
}

type countedDocument int

func (d countedDocument) PageCount() int { return int(d) }

func (d countedDocument) RenderPage(context.Context, int, float64) (image.Image, error) {
	return nil, errors.New("previews disabled")
}

func (d countedDocument) Close() error { return nil }
