package raster

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/logging"
)

var log = logging.For("raster")

// FitzRasterizer renders pages through MuPDF. MuPDF documents are not safe
// for concurrent use, so every call holds the document lock.
type FitzRasterizer struct {
	mu     sync.Mutex
	doc    *fitz.Document
	path   string
	pages  int
	closed bool
}

// OpenFitz opens the PDF at path for rasterization.
func OpenFitz(path string) (*FitzRasterizer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fillerr.Conversion(-1, fmt.Errorf("open %s: %w", path, err))
	}
	return &FitzRasterizer{
		doc:   doc,
		path:  path,
		pages: doc.NumPage(),
	}, nil
}

// PageCount returns the number of pages of the document.
func (r *FitzRasterizer) PageCount() int {
	return r.pages
}

// Rasterize renders pageIndex at dpi.
func (r *FitzRasterizer) Rasterize(ctx context.Context, pageIndex int, dpi float64) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fillerr.Conversion(pageIndex, err)
	}
	if dpi <= 0 {
		return nil, fillerr.Conversion(pageIndex, fmt.Errorf("dpi must be positive, got %v", dpi))
	}
	if pageIndex < 0 || pageIndex >= r.pages {
		return nil, fillerr.Conversion(pageIndex, fmt.Errorf("page out of range [0, %d)", r.pages))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fillerr.Conversion(pageIndex, fmt.Errorf("document closed"))
	}

	img, err := r.doc.ImageDPI(pageIndex, dpi)
	if err != nil {
		return nil, fillerr.Conversion(pageIndex, err)
	}

	page := NewPage(pageIndex, img, dpi)
	if b, err := r.doc.Bound(pageIndex); err == nil && !b.Empty() {
		page.WidthPt, page.HeightPt = float64(b.Dx()), float64(b.Dy())
	}
	w, h := page.Size()
	log.WithFields(logrus.Fields{
		"file":   r.path,
		"page":   pageIndex,
		"dpi":    dpi,
		"width":  w,
		"height": h,
	}).Debug("Rasterized page")
	return page, nil
}

// PageSize returns the size of pageIndex in points without rendering it.
func (r *FitzRasterizer) PageSize(pageIndex int) (float64, float64, error) {
	if pageIndex < 0 || pageIndex >= r.pages {
		return 0, 0, fillerr.Conversion(pageIndex, fmt.Errorf("page out of range [0, %d)", r.pages))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, 0, fillerr.Conversion(pageIndex, fmt.Errorf("document closed"))
	}
	b, err := r.doc.Bound(pageIndex)
	if err != nil {
		return 0, 0, fillerr.Conversion(pageIndex, err)
	}
	return float64(b.Dx()), float64(b.Dy()), nil
}

// Close releases the MuPDF document.
func (r *FitzRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.doc.Close()
}
