// Package pdfengine binds the reorganizer to real PDF libraries: pdfcpu for
// page counting and rebuilding, go-fitz (MuPDF) for rasterizing thumbnails.
package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// newConfig returns a fresh relaxed configuration. pdfcpu mutates the
// configuration while processing, so it is never shared between calls.
func newConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Rebuilder writes a new document containing the pages of a source document in
// a given order. Page content, page-level resources and annotations travel with
// each page; nothing is re-rendered.
type Rebuilder struct{}

var _ reorganizer.Rebuilder = Rebuilder{}

func NewRebuilder() Rebuilder {
	return Rebuilder{}
}

// Rebuild copies every page of src into a new document. order holds zero-based
// source indices and must be a permutation of the source pages.
func (Rebuilder) Rebuild(ctx context.Context, src []byte, order []int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := api.PageCount(bytes.NewReader(src), newConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to read source document: %w", err)
	}
	if len(order) != n {
		return nil, fmt.Errorf("order has %d pages, source has %d: %w", len(order), n, reorganizer.ErrInvalidOrder)
	}

	pages := make([]string, len(order))
	for i, idx := range order {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("page index %d outside [0, %d): %w", idx, n, reorganizer.ErrInvalidOrder)
		}
		pages[i] = strconv.Itoa(idx + 1)
	}

	var out bytes.Buffer
	if err := api.Collect(bytes.NewReader(src), &out, pages, newConfig()); err != nil {
		return nil, fmt.Errorf("failed to collect pages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfig())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
