// Package raster renders PDF pages to bitmaps. The rendered image is both the
// visual input of the placement model and the pixel space of every placement
// before it is committed.
package raster

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/a3tai/pdf-formfill/internal/geometry"
)

// DefaultDPI is the resolution used when none is configured.
const DefaultDPI = 150.0

// Page is one rasterized PDF page.
type Page struct {
	Index    int
	Image    *image.RGBA
	DPI      float64
	WidthPt  float64
	HeightPt float64
}

// Rasterizer renders pages of a single open document.
type Rasterizer interface {
	PageCount() int
	Rasterize(ctx context.Context, pageIndex int, dpi float64) (*Page, error)
	// PageSize returns the page's width and height in points.
	PageSize(pageIndex int) (float64, float64, error)
	Close() error
}

// Scale returns points per pixel.
func (p *Page) Scale() float64 {
	return geometry.PointsPerInch / p.DPI
}

// Size returns the image size in pixels.
func (p *Page) Size() (int, int) {
	b := p.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Mapper returns the coordinate mapper for this page.
func (p *Page) Mapper() (*geometry.PageMapper, error) {
	return geometry.NewPageMapper(p.HeightPt, p.DPI)
}

// NewPage wraps img rendered at dpi, deriving the page size in points from the pixel size.
func NewPage(index int, img *image.RGBA, dpi float64) *Page {
	b := img.Bounds()
	s := geometry.PointsPerInch / dpi
	return &Page{
		Index:    index,
		Image:    img,
		DPI:      dpi,
		WidthPt:  float64(b.Dx()) * s,
		HeightPt: float64(b.Dy()) * s,
	}
}

// EncodePNG encodes the page image as PNG.
func (p *Page) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
